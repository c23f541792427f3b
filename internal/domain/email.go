package domain

import (
	"context"
	"time"
)

// EmailMessage is a single outgoing email. Batch sends put recipients in Bcc
// so attendees never see each other's addresses.
type EmailMessage struct {
	To      []string
	Bcc     []string
	Subject string
	HTML    string
	Text    string
}

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// VerificationEmailData holds data for the sign-up verification email.
type VerificationEmailData struct {
	Email            string
	Name             string
	Code             string
	VerifyURL        string
	ExpiresInMinutes int
}

// RegistrationEmailData holds data for the registration confirmation email.
type RegistrationEmailData struct {
	Email         string
	Name          string
	EventTitle    string
	EventDate     time.Time
	Location      string
	City          string
	State         string
	Badge         string
	Preferences   string
	OrganizerName string
}

// EventReminderEmailData holds data for the batch reminder sent before an event starts.
type EventReminderEmailData struct {
	Recipients    []string
	EventTitle    string
	EventDate     time.Time
	Location      string
	OrganizerName string
	StartsInMins  int
}

// RSVPInvitationEmailData holds data for the batch RSVP request email.
type RSVPInvitationEmailData struct {
	Recipients    []string
	EventTitle    string
	EventDate     time.Time
	Location      string
	RSVPURL       string
	OrganizerName string
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendVerification(ctx context.Context, data *VerificationEmailData) error
	SendRegistrationConfirmation(ctx context.Context, data *RegistrationEmailData) error
	SendEventReminder(ctx context.Context, data *EventReminderEmailData) error
	SendRSVPInvitation(ctx context.Context, data *RSVPInvitationEmailData) error
}
