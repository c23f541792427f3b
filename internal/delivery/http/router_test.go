package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"occasio/internal/delivery/http/controllers"
	"occasio/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routedEventID = "9b2f6a8e-4c1d-4e7a-9f3b-2d5c8e1a7b40"

type tokenTable map[string]domain.Principal

func (t tokenTable) Verify(token string) (domain.Principal, error) {
	p, ok := t[token]
	if !ok {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	return p, nil
}

// stubEventService answers the calls routed in these tests; any other method panics.
type stubEventService struct {
	domain.EventService
	gotEventID string
}

func (s *stubEventService) GetEvent(ctx context.Context, eventID string) (*domain.EventDetails, error) {
	s.gotEventID = eventID
	return &domain.EventDetails{Event: &domain.Event{ID: eventID}}, nil
}

func (s *stubEventService) ListMyEvents(ctx context.Context, ownerID string, params domain.PaginationParams) ([]*domain.Event, int, error) {
	return nil, 0, nil
}

type stubRegistrationService struct {
	domain.RegistrationService
}

func (stubRegistrationService) ListMyEvents(ctx context.Context, userID string) ([]*domain.EventHistoryItem, error) {
	return nil, nil
}

func newTestHandler(t *testing.T) (http.Handler, *stubEventService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := &stubEventService{}
	regs := stubRegistrationService{}
	c := Controllers{
		Auth:         controllers.NewAuthController(logger, nil),
		Events:       controllers.NewEventController(logger, events, nil),
		Images:       controllers.NewImageController(logger, nil),
		Registration: controllers.NewRegistrationController(logger, regs),
		Users:        controllers.NewUserController(logger, regs),
	}
	verifier := tokenTable{
		"org-token":  {UserID: "org-1", Roles: []string{domain.RoleOrganizer}},
		"user-token": {UserID: "user-1", Roles: []string{domain.RoleUser}},
	}
	return NewHandler(c, verifier, []string{"https://app.test"}, logger), events
}

func TestRouter_Routes(t *testing.T) {
	handler, events := newTestHandler(t)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "public event page", method: http.MethodGet, path: "/api/v1/events/" + routedEventID, wantStatus: http.StatusOK},
		{name: "organizer lists own events", method: http.MethodGet, path: "/api/v1/events/mine", token: "org-token", wantStatus: http.StatusOK},
		{name: "user cannot list organizer events", method: http.MethodGet, path: "/api/v1/events/mine", token: "user-token", wantStatus: http.StatusForbidden},
		{name: "anonymous cannot create", method: http.MethodPost, path: "/api/v1/events", wantStatus: http.StatusUnauthorized},
		{name: "organizer cannot register", method: http.MethodPost, path: "/api/v1/events/" + routedEventID + "/registrations", token: "org-token", wantStatus: http.StatusForbidden},
		{name: "user history", method: http.MethodGet, path: "/api/v1/users/me/events", token: "user-token", wantStatus: http.StatusOK},
		{name: "bad token", method: http.MethodGet, path: "/api/v1/users/me/events", token: "forged", wantStatus: http.StatusUnauthorized},
		{name: "unversioned path", method: http.MethodGet, path: "/events/mine", token: "org-token", wantStatus: http.StatusNotFound},
		{name: "wrong method", method: http.MethodPost, path: "/api/v1/users/me/events", token: "user-token", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "http://test"+tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}

	assert.Equal(t, routedEventID, events.gotEventID)
}

func TestRouter_CORSPreflight(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodOptions, "http://test/api/v1/events", nil)
	req.Header.Set("Origin", "https://app.test")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://app.test", rr.Header().Get("Access-Control-Allow-Origin"))
}
