package controllers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"occasio/internal/delivery/http/helpers"
	"occasio/internal/delivery/http/middleware"
	"occasio/internal/domain"

	"github.com/stretchr/testify/require"
)

// testLogger is a no-op logger for controller tests so we don't assert on log output.
var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

const (
	testEventID = "9b2f6a8e-4c1d-4e7a-9f3b-2d5c8e1a7b40"
	testUserID  = "user-1"
)

// withUser returns r carrying an authenticated principal.
func withUser(r *http.Request, userID string, roles ...string) *http.Request {
	return r.WithContext(middleware.SetPrincipal(r.Context(), domain.Principal{UserID: userID, Roles: roles}))
}

// envelope decodes an APIResponse whose data is decoded into T.
type envelope[T any] struct {
	Data     T                 `json:"data"`
	Error    *helpers.APIError `json:"error"`
	Warnings []string          `json:"warnings"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env
}

// requireErrorCode asserts the recorder holds an error envelope with code.
func requireErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rr.Code)
	env := decode[any](t, rr)
	require.NotNil(t, env.Error)
	require.Equal(t, code, env.Error.Code)
	require.Nil(t, env.Data)
}

type fakeAuthService struct {
	signUpUser *domain.User
	signUpErr  error
	verifyErr  error
	loginToken string
	loginUser  *domain.User
	loginErr   error
	lastSignUp []string
	lastVerify []string
	lastLogin  []string
}

func (f *fakeAuthService) SignUp(ctx context.Context, email, name, mobile, password, role string) (*domain.User, error) {
	f.lastSignUp = []string{email, name, mobile, password, role}
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return f.signUpUser, nil
}

func (f *fakeAuthService) VerifyEmail(ctx context.Context, email, code string) error {
	f.lastVerify = []string{email, code}
	return f.verifyErr
}

func (f *fakeAuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	f.lastLogin = []string{email, password}
	if f.loginErr != nil {
		return "", nil, f.loginErr
	}
	return f.loginToken, f.loginUser, nil
}

type fakeEventService struct {
	createErr   error
	created     *domain.Event
	details     *domain.EventDetails
	getErr      error
	listEvents  []*domain.Event
	listTotal   int
	listErr     error
	lastParams  domain.PaginationParams
	lastOwnerID string
	lastEventID string
	lastUpdate  domain.EventUpdate
	updated     *domain.Event
	updateErr   error
	disabled    *domain.Event
	disableErr  error
	deleteErr   error
	invited     int
	inviteErr   error
}

func (f *fakeEventService) CreateEvent(ctx context.Context, event *domain.Event) error {
	f.created = event
	if f.createErr != nil {
		return f.createErr
	}
	event.ID = testEventID
	return nil
}

func (f *fakeEventService) GetEvent(ctx context.Context, eventID string) (*domain.EventDetails, error) {
	f.lastEventID = eventID
	return f.details, f.getErr
}

func (f *fakeEventService) ListMyEvents(ctx context.Context, ownerID string, params domain.PaginationParams) ([]*domain.Event, int, error) {
	f.lastOwnerID, f.lastParams = ownerID, params
	return f.listEvents, f.listTotal, f.listErr
}

func (f *fakeEventService) UpdateEvent(ctx context.Context, eventID, ownerID string, upd domain.EventUpdate) (*domain.Event, error) {
	f.lastEventID, f.lastOwnerID, f.lastUpdate = eventID, ownerID, upd
	return f.updated, f.updateErr
}

func (f *fakeEventService) DisableRegistrations(ctx context.Context, eventID, ownerID string) (*domain.Event, error) {
	f.lastEventID, f.lastOwnerID = eventID, ownerID
	return f.disabled, f.disableErr
}

func (f *fakeEventService) DeleteEvent(ctx context.Context, eventID, ownerID string) error {
	f.lastEventID, f.lastOwnerID = eventID, ownerID
	return f.deleteErr
}

func (f *fakeEventService) SendRSVPInvitations(ctx context.Context, eventID, ownerID string) (int, error) {
	f.lastEventID, f.lastOwnerID = eventID, ownerID
	return f.invited, f.inviteErr
}

type fakeCheckInService struct {
	participant *domain.Participant
	err         error
	lastArgs    []string
}

func (f *fakeCheckInService) CheckIn(ctx context.Context, organizerID, eventID, token string) (*domain.Participant, error) {
	f.lastArgs = []string{organizerID, eventID, token}
	return f.participant, f.err
}

type fakeImageService struct {
	setErr      error
	lastKind    domain.ImageKind
	lastUploads []domain.ImageUpload
	bodies      []string
	addErr      error
	removed     int
	removeErr   error
	lastIDs     []string
}

func (f *fakeImageService) record(uploads ...domain.ImageUpload) {
	f.lastUploads = append(f.lastUploads, uploads...)
	for _, u := range uploads {
		b, _ := io.ReadAll(u.Body)
		f.bodies = append(f.bodies, string(b))
	}
}

func (f *fakeImageService) SetEventImage(ctx context.Context, eventID, ownerID string, kind domain.ImageKind, upload domain.ImageUpload) (*domain.Image, error) {
	f.lastKind = kind
	f.record(upload)
	if f.setErr != nil {
		return nil, f.setErr
	}
	return &domain.Image{ID: "img-1", EventID: eventID, Kind: kind, Title: upload.Title, URL: "https://cdn.test/" + upload.Filename}, nil
}

func (f *fakeImageService) AddGalleryImages(ctx context.Context, eventID, ownerID string, uploads []domain.ImageUpload) ([]*domain.Image, error) {
	f.record(uploads...)
	if f.addErr != nil {
		return nil, f.addErr
	}
	imgs := make([]*domain.Image, 0, len(uploads))
	for _, u := range uploads {
		imgs = append(imgs, &domain.Image{EventID: eventID, Kind: domain.ImageKindGallery, URL: "https://cdn.test/" + u.Filename})
	}
	return imgs, nil
}

func (f *fakeImageService) RemoveGalleryImages(ctx context.Context, eventID, ownerID string, imageIDs []string) (int, error) {
	f.lastIDs = imageIDs
	return f.removed, f.removeErr
}

func (f *fakeImageService) DeleteEventImages(ctx context.Context, eventID string) error {
	return nil
}

type fakeRegistrationService struct {
	result      *domain.RegistrationResult
	registerErr error
	lastDetails []string
	participant *domain.Participant
	err         error
	lastStatus  domain.RSVPStatus
	qr          []byte
	history     []*domain.EventHistoryItem
}

func (f *fakeRegistrationService) Register(ctx context.Context, eventID, userID, badge, preferences string) (*domain.RegistrationResult, error) {
	f.lastDetails = []string{eventID, userID, badge, preferences}
	return f.result, f.registerErr
}

func (f *fakeRegistrationService) Unregister(ctx context.Context, eventID, userID string) error {
	return f.err
}

func (f *fakeRegistrationService) CheckRegistration(ctx context.Context, eventID, userID string) (*domain.Participant, error) {
	return f.participant, f.err
}

func (f *fakeRegistrationService) UpdateDetails(ctx context.Context, eventID, userID, badge, preferences string) (*domain.Participant, error) {
	f.lastDetails = []string{eventID, userID, badge, preferences}
	return f.participant, f.err
}

func (f *fakeRegistrationService) UpdateRSVP(ctx context.Context, eventID, userID string, status domain.RSVPStatus) (*domain.Participant, error) {
	f.lastStatus = status
	return f.participant, f.err
}

func (f *fakeRegistrationService) ParticipantQRCode(ctx context.Context, eventID, userID string) ([]byte, error) {
	return f.qr, f.err
}

func (f *fakeRegistrationService) ListMyEvents(ctx context.Context, userID string) ([]*domain.EventHistoryItem, error) {
	return f.history, f.err
}
