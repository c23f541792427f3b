package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"occasio/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// newTestEvent returns an open event starting two days after testNow.
func newTestEvent(ownerID string, capacity int) *domain.Event {
	return domain.NewEvent(ownerID, "Go Meetup", "Monthly meetup", "Main Hall", "Austin", "TX",
		domain.EventTypeOpen, testNow.Add(48*time.Hour), testNow.Add(24*time.Hour), capacity, testNow)
}

// fakeEventRepo is an in-memory EventRepository. Ledger methods run under
// the mutex and use the domain ledger rules, so concurrent admits behave
// like the conditional UPDATE.
type fakeEventRepo struct {
	mu     sync.Mutex
	byID   map[string]*domain.Event
	nextID int
	err    error // if set, Create returns this error
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{byID: make(map[string]*domain.Event), nextID: 1}
}

func (f *fakeEventRepo) add(e *domain.Event) *domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID == "" {
		e.ID = fmt.Sprintf("ev-%d", f.nextID)
		f.nextID++
	}
	f.byID[e.ID] = e
	return e
}

func (f *fakeEventRepo) snapshot(id string) domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.byID[id]
}

func (f *fakeEventRepo) Create(ctx context.Context, e *domain.Event) error {
	if f.err != nil {
		return f.err
	}
	f.add(e)
	return nil
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.byID[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) ListByOwnerID(ctx context.Context, ownerID string, params domain.PaginationParams) ([]*domain.Event, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Event
	for _, e := range f.byID {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	total := len(out)
	start := min(params.Offset(), total)
	end := min(start+params.PageSize, total)
	return out[start:end], total, nil
}

func (f *fakeEventRepo) Update(ctx context.Context, eventID string, upd domain.EventUpdate) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[eventID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	if err := cp.Resize(upd.Capacity); err != nil {
		return nil, err
	}
	cp.Title, cp.Description, cp.Location = upd.Title, upd.Description, upd.Location
	cp.City, cp.State, cp.Type = upd.City, upd.State, upd.Type
	cp.Date, cp.Deadline = upd.Date, upd.Deadline
	*e = cp
	return &cp, nil
}

func (f *fakeEventRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeEventRepo) Admit(ctx context.Context, eventID string, now time.Time) (*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[eventID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := e.Admit(now); err != nil {
		return nil, err
	}
	return &domain.Reservation{EventID: e.ID, RemainingCapacity: e.RemainingCapacity, RegistrationsEnabled: e.RegistrationsEnabled}, nil
}

func (f *fakeEventRepo) Release(ctx context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[eventID]
	if !ok {
		return domain.ErrNotFound
	}
	e.Release()
	return nil
}

func (f *fakeEventRepo) Disable(ctx context.Context, eventID string) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[eventID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	e.Disable()
	cp := *e
	return &cp, nil
}

// fakeParticipantRepo is an in-memory ParticipantRepository keyed by participant ID.
type fakeParticipantRepo struct {
	mu   sync.Mutex
	byID map[string]*domain.Participant
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{byID: make(map[string]*domain.Participant)}
}

// insert enforces the (user, event) uniqueness of the participants table.
func (f *fakeParticipantRepo) insert(p *domain.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.EventID == p.EventID && existing.UserID == p.UserID {
			return domain.ErrAlreadyRegistered
		}
	}
	p.ID = uuid.NewString()
	cp := *p
	f.byID[p.ID] = &cp
	return nil
}

func (f *fakeParticipantRepo) find(eventID, userID string) *domain.Participant {
	for _, p := range f.byID {
		if p.EventID == eventID && p.UserID == userID {
			return p
		}
	}
	return nil
}

func (f *fakeParticipantRepo) count(eventID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.byID {
		if p.EventID == eventID {
			n++
		}
	}
	return n
}

func (f *fakeParticipantRepo) GetByID(ctx context.Context, id string) (*domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.byID[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeParticipantRepo) GetByEventAndUser(ctx context.Context, eventID, userID string) (*domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p := f.find(eventID, userID); p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeParticipantRepo) list(match func(*domain.Participant) bool) []*domain.Participant {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Participant
	for _, p := range f.byID {
		if match(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (f *fakeParticipantRepo) ListByEvent(ctx context.Context, eventID string) ([]*domain.Participant, error) {
	return f.list(func(p *domain.Participant) bool { return p.EventID == eventID }), nil
}

func (f *fakeParticipantRepo) ListByEventAndStatus(ctx context.Context, eventID string, status domain.RSVPStatus) ([]*domain.Participant, error) {
	return f.list(func(p *domain.Participant) bool { return p.EventID == eventID && p.RSVPStatus == status }), nil
}

func (f *fakeParticipantRepo) UpdateDetails(ctx context.Context, eventID, userID, badge, preferences string) (*domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.find(eventID, userID)
	if p == nil {
		return nil, domain.ErrNotFound
	}
	p.Badge, p.Preferences = badge, preferences
	cp := *p
	return &cp, nil
}

func (f *fakeParticipantRepo) UpdateRSVP(ctx context.Context, eventID, userID string, status domain.RSVPStatus) (*domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.find(eventID, userID)
	if p == nil {
		return nil, domain.ErrNotFound
	}
	if p.RSVPStatus == domain.RSVPCheckedIn {
		return nil, domain.ErrInvalidTransition
	}
	p.RSVPStatus = status
	cp := *p
	return &cp, nil
}

func (f *fakeParticipantRepo) MarkCheckedIn(ctx context.Context, participantID string) (*domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[participantID]
	if !ok || p.RSVPStatus != domain.RSVPGoing {
		return nil, domain.ErrInvalidState
	}
	p.RSVPStatus = domain.RSVPCheckedIn
	cp := *p
	return &cp, nil
}

func (f *fakeParticipantRepo) DeleteByEvent(ctx context.Context, eventID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, p := range f.byID {
		if p.EventID == eventID {
			delete(f.byID, id)
			n++
		}
	}
	return n, nil
}

// fakeRegistrationStore mirrors the registration transaction: a failed
// participant insert gives the admitted slot back.
type fakeRegistrationStore struct {
	events       *fakeEventRepo
	participants *fakeParticipantRepo
	users        *fakeUserRepo
}

func (f *fakeRegistrationStore) Register(ctx context.Context, p *domain.Participant, now time.Time) (*domain.Reservation, error) {
	res, err := f.events.Admit(ctx, p.EventID, now)
	if err != nil {
		return nil, err
	}
	if err := f.participants.insert(p); err != nil {
		_ = f.events.Release(ctx, p.EventID)
		return nil, err
	}
	f.users.addHistory(p.UserID, p.EventID)
	return res, nil
}

func (f *fakeRegistrationStore) Unregister(ctx context.Context, eventID, userID string) error {
	f.participants.mu.Lock()
	p := f.participants.find(eventID, userID)
	if p == nil {
		f.participants.mu.Unlock()
		return domain.ErrNotFound
	}
	if p.RSVPStatus.Terminal() {
		f.participants.mu.Unlock()
		return domain.ErrInvalidState
	}
	delete(f.participants.byID, p.ID)
	f.participants.mu.Unlock()

	if err := f.events.Release(ctx, eventID); err != nil {
		return err
	}
	f.users.removeHistory(userID, eventID)
	return nil
}

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	roles   map[string][]string
	history map[string][]string
	deleted []string
	nextID  int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    make(map[string]*domain.User),
		roles:   make(map[string][]string),
		history: make(map[string][]string),
		nextID:  1,
	}
}

func (f *fakeUserRepo) addUser(id, email, name string) *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &domain.User{ID: id, Email: email, Name: name, Verified: true}
	f.byID[id] = u
	return u
}

func (f *fakeUserRepo) addHistory(userID, eventID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[userID] = append([]string{eventID}, f.history[userID]...)
}

func (f *fakeUserRepo) removeHistory(userID, eventID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []string
	for _, id := range f.history[userID] {
		if id != eventID {
			kept = append(kept, id)
		}
	}
	f.history[userID] = kept
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == user.Email {
			return domain.ErrDuplicateEmail
		}
	}
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserRepo) ListByIDs(ctx context.Context, ids []string) ([]*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.User
	for _, id := range ids {
		if u, ok := f.byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) MarkVerified(ctx context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			u.Verified = true
			return nil
		}
	}
	return domain.ErrUserNotFound
}

func (f *fakeUserRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeUserRepo) AssignRole(ctx context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[userID] = append(f.roles[userID], roleID)
	return nil
}

func (f *fakeUserRepo) ListEventHistory(ctx context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.history[userID]...), nil
}

// fakeEmailService records every email it is asked to send.
type fakeEmailService struct {
	mu            sync.Mutex
	verifications []*domain.VerificationEmailData
	registrations []*domain.RegistrationEmailData
	reminders     []*domain.EventReminderEmailData
	invitations   []*domain.RSVPInvitationEmailData
	err           error // if set, every send fails
}

func (f *fakeEmailService) SendVerification(ctx context.Context, data *domain.VerificationEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.verifications = append(f.verifications, data)
	return nil
}

func (f *fakeEmailService) SendRegistrationConfirmation(ctx context.Context, data *domain.RegistrationEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.registrations = append(f.registrations, data)
	return nil
}

func (f *fakeEmailService) SendEventReminder(ctx context.Context, data *domain.EventReminderEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reminders = append(f.reminders, data)
	return nil
}

func (f *fakeEmailService) SendRSVPInvitation(ctx context.Context, data *domain.RSVPInvitationEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.invitations = append(f.invitations, data)
	return nil
}

type fakeQR struct{}

func (fakeQR) Encode(payload string) ([]byte, error) { return []byte("png:" + payload), nil }

// fakeScheduler records Schedule and Cancel calls.
type fakeScheduler struct {
	scheduled map[string]time.Time
	canceled  []string
	err       error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(map[string]time.Time)}
}

func (f *fakeScheduler) Schedule(ctx context.Context, eventID string, date time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.scheduled[eventID] = date
	return nil
}

func (f *fakeScheduler) Cancel(ctx context.Context, eventID string) error {
	f.canceled = append(f.canceled, eventID)
	delete(f.scheduled, eventID)
	return nil
}

// fakeReminderStore is an in-memory ReminderStore.
type fakeReminderStore struct {
	mu       sync.Mutex
	pending  map[string]time.Time
	claimed  []string
	canceled []string
}

func newFakeReminderStore() *fakeReminderStore {
	return &fakeReminderStore{pending: make(map[string]time.Time)}
}

func (f *fakeReminderStore) Upsert(ctx context.Context, eventID string, fireAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[eventID] = fireAt
	return nil
}

func (f *fakeReminderStore) Claim(ctx context.Context, eventID string, fireAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.pending[eventID]
	if !ok || !at.Equal(fireAt) {
		return false, nil
	}
	delete(f.pending, eventID)
	f.claimed = append(f.claimed, eventID)
	return true, nil
}

func (f *fakeReminderStore) Cancel(ctx context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, eventID)
	f.canceled = append(f.canceled, eventID)
	return nil
}

func (f *fakeReminderStore) list(match func(time.Time) bool) []domain.Reminder {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reminder
	for id, at := range f.pending {
		if match(at) {
			out = append(out, domain.Reminder{EventID: id, FireAt: at})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out
}

func (f *fakeReminderStore) ListDue(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	return f.list(func(at time.Time) bool { return !at.After(now) }), nil
}

func (f *fakeReminderStore) ListPending(ctx context.Context) ([]domain.Reminder, error) {
	return f.list(func(time.Time) bool { return true }), nil
}

// fakeImageRepo is an in-memory ImageRepository.
type fakeImageRepo struct {
	byID      map[string]*domain.Image
	nextID    int
	createErr error
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{byID: make(map[string]*domain.Image), nextID: 1}
}

func (f *fakeImageRepo) Create(ctx context.Context, img *domain.Image) error {
	if f.createErr != nil {
		return f.createErr
	}
	img.ID = fmt.Sprintf("img-%d", f.nextID)
	f.nextID++
	f.byID[img.ID] = img
	return nil
}

func (f *fakeImageRepo) list(match func(*domain.Image) bool) []*domain.Image {
	out := []*domain.Image{}
	for _, img := range f.byID {
		if match(img) {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeImageRepo) ListByEvent(ctx context.Context, eventID string) ([]*domain.Image, error) {
	return f.list(func(img *domain.Image) bool { return img.EventID == eventID }), nil
}

func (f *fakeImageRepo) ListByEventAndKind(ctx context.Context, eventID string, kind domain.ImageKind) ([]*domain.Image, error) {
	return f.list(func(img *domain.Image) bool { return img.EventID == eventID && img.Kind == kind }), nil
}

func (f *fakeImageRepo) GetByIDs(ctx context.Context, eventID string, ids []string) ([]*domain.Image, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return f.list(func(img *domain.Image) bool { return img.EventID == eventID && want[img.ID] }), nil
}

func (f *fakeImageRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

// fakeBlobStore keeps objects in memory.
type fakeBlobStore struct {
	objects  map[string][]byte
	storeErr error
	failOn   int // if > 0, the failOn-th Store call fails with storeErr
	calls    int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Store(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	f.calls++
	if f.storeErr != nil && (f.failOn == 0 || f.failOn == f.calls) {
		return "", f.storeErr
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(body); err != nil {
		return "", err
	}
	f.objects[key] = buf.Bytes()
	return "https://cdn.test/" + key, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}
