package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"occasio/internal/domain"
)

type reminderTimer struct {
	stop   func() bool
	fireAt time.Time
}

// ReminderScheduler persists one reminder per event and fires it
// domain.ReminderLead before the event starts. Armed timers cover the
// common case; the sweep loop started by Start picks up reminders whose
// timer was lost to a restart.
type ReminderScheduler struct {
	store         domain.ReminderStore
	events        domain.EventRepository
	participants  domain.ParticipantRepository
	users         domain.UserRepository
	emailService  domain.EmailService
	logger        *slog.Logger
	sweepInterval time.Duration
	fireTimeout   time.Duration

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) (stop func() bool)

	mu      sync.Mutex
	timers  map[string]reminderTimer
	stopped bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

var _ domain.ReminderScheduler = (*ReminderScheduler)(nil)

func NewReminderScheduler(
	store domain.ReminderStore,
	events domain.EventRepository,
	participants domain.ParticipantRepository,
	users domain.UserRepository,
	emailService domain.EmailService,
	sweepInterval time.Duration,
	fireTimeout time.Duration,
	logger *slog.Logger,
) *ReminderScheduler {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	if fireTimeout <= 0 {
		fireTimeout = 30 * time.Second
	}
	return &ReminderScheduler{
		store:         store,
		events:        events,
		participants:  participants,
		users:         users,
		emailService:  emailService,
		logger:        logger,
		sweepInterval: sweepInterval,
		fireTimeout:   fireTimeout,
		now:           time.Now,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		timers: make(map[string]reminderTimer),
	}
}

// Schedule stores and arms the reminder of an event starting at date. When
// the fire time is not in the future nothing is armed and any earlier
// reminder is withdrawn.
func (s *ReminderScheduler) Schedule(ctx context.Context, eventID string, date time.Time) error {
	fireAt := domain.ReminderFireAt(date)
	now := s.now()
	if !fireAt.After(now) {
		s.disarm(eventID)
		if err := s.store.Cancel(ctx, eventID); err != nil {
			return fmt.Errorf("cancel stale reminder: %w", err)
		}
		s.logger.Info("reminder skipped", "event_id", eventID, "fire_at", fireAt)
		return nil
	}
	if err := s.store.Upsert(ctx, eventID, fireAt); err != nil {
		return fmt.Errorf("store reminder: %w", err)
	}
	s.arm(eventID, fireAt, fireAt.Sub(now))
	s.logger.Debug("reminder scheduled", "event_id", eventID, "fire_at", fireAt)
	return nil
}

func (s *ReminderScheduler) Cancel(ctx context.Context, eventID string) error {
	s.disarm(eventID)
	if err := s.store.Cancel(ctx, eventID); err != nil {
		return fmt.Errorf("cancel reminder: %w", err)
	}
	return nil
}

func (s *ReminderScheduler) arm(eventID string, fireAt time.Time, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.timers[eventID]; ok {
		t.stop()
	}
	s.timers[eventID] = reminderTimer{
		stop:   s.afterFunc(d, func() { s.onTimer(eventID, fireAt) }),
		fireAt: fireAt,
	}
}

func (s *ReminderScheduler) disarm(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[eventID]; ok {
		t.stop()
		delete(s.timers, eventID)
	}
}

func (s *ReminderScheduler) onTimer(eventID string, fireAt time.Time) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if t, ok := s.timers[eventID]; ok && t.fireAt.Equal(fireAt) {
		delete(s.timers, eventID)
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.fireTimeout)
	defer cancel()
	s.fire(ctx, eventID, fireAt)
}

// fire claims the reminder and emails every going participant. Failures are
// logged and never retried.
func (s *ReminderScheduler) fire(ctx context.Context, eventID string, fireAt time.Time) {
	ctx, span := tracer.Start(ctx, "reminder.fire", trace.WithAttributes(attribute.String("event.id", eventID)))
	defer span.End()
	log := s.logger.With("event_id", eventID, "fire_at", fireAt)

	claimed, err := s.store.Claim(ctx, eventID, fireAt)
	if err != nil {
		log.Error("claim reminder", "error", err)
		return
	}
	if !claimed {
		log.Debug("reminder already handled")
		return
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Info("reminder for deleted event dropped")
			return
		}
		log.Error("get event for reminder", "error", err)
		return
	}
	now := s.now()
	if event.Concluded(now) {
		log.Info("reminder expired")
		return
	}

	going, err := s.participants.ListByEventAndStatus(ctx, eventID, domain.RSVPGoing)
	if err != nil {
		log.Error("list going participants", "error", err)
		return
	}
	if len(going) == 0 {
		log.Info("no going participants to remind")
		return
	}
	ids := make([]string, 0, len(going))
	for _, p := range going {
		ids = append(ids, p.UserID)
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		log.Error("resolve reminder recipients", "error", err)
		return
	}
	recipients := make([]string, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, u.Email)
	}

	data := &domain.EventReminderEmailData{
		Recipients:   recipients,
		EventTitle:   event.Title,
		EventDate:    event.Date,
		Location:     event.Location,
		StartsInMins: int(event.Date.Sub(now).Round(time.Minute) / time.Minute),
	}
	if organizer, err := s.users.GetByID(ctx, event.OwnerID); err == nil {
		data.OrganizerName = organizer.Name
	}
	if err := s.emailService.SendEventReminder(ctx, data); err != nil {
		span.RecordError(err)
		log.Error("send event reminder", "error", err)
		return
	}
	log.Info("event reminder sent", "recipients", len(recipients))
}

// Start re-arms pending reminders and runs the sweep loop until Stop is
// called or ctx is done.
func (s *ReminderScheduler) Start(ctx context.Context) error {
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending reminders: %w", err)
	}
	now := s.now()
	for _, r := range pending {
		if r.FireAt.After(now) {
			s.arm(r.EventID, r.FireAt, r.FireAt.Sub(now))
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(loopCtx)
	s.logger.Info("reminder scheduler started", "pending", len(pending), "sweep_interval", s.sweepInterval)
	return nil
}

func (s *ReminderScheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep fires every reminder that is due. Claim keeps this safe against
// armed timers and other processes firing the same reminder.
func (s *ReminderScheduler) sweep(ctx context.Context) {
	due, err := s.store.ListDue(ctx, s.now())
	if err != nil {
		s.logger.Error("list due reminders", "error", err)
		return
	}
	for _, r := range due {
		if ctx.Err() != nil {
			return
		}
		fireCtx, cancel := context.WithTimeout(ctx, s.fireTimeout)
		s.fire(fireCtx, r.EventID, r.FireAt)
		cancel()
	}
}

// Stop disarms every timer, ends the sweep loop and waits for in-flight
// reminders to finish.
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.timers {
		t.stop()
		delete(s.timers, id)
	}
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
