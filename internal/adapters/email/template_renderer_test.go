package email

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"occasio/internal/domain"
)

func TestTemplateRenderer_Render(t *testing.T) {
	r := NewTemplateRenderer()
	date := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

	t.Run("verification", func(t *testing.T) {
		subject, html, text, err := r.Render("verification", &domain.VerificationEmailData{
			Email: "a@example.com", Name: "Ana", Code: "123456", VerifyURL: "http://app/verify?code=123456", ExpiresInMinutes: 30,
		})
		require.NoError(t, err)
		assert.Equal(t, "Verify your Occasio account", subject)
		assert.Contains(t, html, "123456")
		assert.Contains(t, text, "30 minutes")
	})

	t.Run("registration confirmation escapes html", func(t *testing.T) {
		subject, html, text, err := r.Render("registration_confirmation", &domain.RegistrationEmailData{
			Name: "<b>Ana</b>", EventTitle: "Go Meetup", EventDate: date, Location: "Hall A", City: "Pune", State: "MH", Badge: "none",
		})
		require.NoError(t, err)
		assert.Equal(t, "You're registered for Go Meetup", subject)
		assert.NotContains(t, html, "<b>Ana</b>")
		assert.Contains(t, text, "Sun, 01 Jun 2025 18:00 UTC")
	})

	t.Run("reminder", func(t *testing.T) {
		subject, _, text, err := r.Render("event_reminder", &domain.EventReminderEmailData{
			EventTitle: "Go Meetup", EventDate: date, Location: "Hall A", StartsInMins: 30,
		})
		require.NoError(t, err)
		assert.Equal(t, "Reminder: Go Meetup starts in 30 minutes", subject)
		assert.Contains(t, text, "Hall A")
	})

	t.Run("rsvp invitation", func(t *testing.T) {
		_, html, _, err := r.Render("rsvp_invitation", &domain.RSVPInvitationEmailData{
			EventTitle: "Go Meetup", EventDate: date, Location: "Hall A", RSVPURL: "http://app/events/ev-1",
		})
		require.NoError(t, err)
		assert.Contains(t, html, `href="http://app/events/ev-1"`)
	})

	t.Run("unknown template", func(t *testing.T) {
		_, _, _, err := r.Render("nope", nil)
		require.Error(t, err)
	})
}
