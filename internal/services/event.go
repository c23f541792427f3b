package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"occasio/internal/domain"
)

type eventService struct {
	eventRepo       domain.EventRepository
	participantRepo domain.ParticipantRepository
	userRepo        domain.UserRepository
	imageRepo       domain.ImageRepository
	images          domain.ImageService
	reminders       domain.ReminderScheduler
	emailService    domain.EmailService
	frontendURL     string
	logger          *slog.Logger
	contextTimeout  time.Duration
	now             func() time.Time
}

func NewEventService(eventRepo domain.EventRepository,
	participantRepo domain.ParticipantRepository,
	userRepo domain.UserRepository,
	imageRepo domain.ImageRepository,
	images domain.ImageService,
	reminders domain.ReminderScheduler,
	emailService domain.EmailService,
	frontendURL string,
	logger *slog.Logger,
	timeout time.Duration,
) domain.EventService {
	return &eventService{
		eventRepo:       eventRepo,
		participantRepo: participantRepo,
		userRepo:        userRepo,
		imageRepo:       imageRepo,
		images:          images,
		reminders:       reminders,
		emailService:    emailService,
		frontendURL:     strings.TrimRight(frontendURL, "/"),
		logger:          logger,
		contextTimeout:  timeout,
		now:             time.Now,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, event *domain.Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if event.OwnerID == "" {
		return fmt.Errorf("%w: event owner is required", domain.ErrInvalidInput)
	}
	now := s.now()
	if err := event.Validate(now); err != nil {
		return err
	}
	event.RemainingCapacity = event.Capacity
	event.RegistrationsEnabled = true
	event.ClosedByOrganizer = false
	event.CreatedAt = now
	event.UpdatedAt = now

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	if err := s.reminders.Schedule(ctx, event.ID, event.Date); err != nil {
		s.logger.Error("schedule reminder", "event_id", event.ID, "error", err)
	}
	return nil
}

func (s *eventService) GetEvent(ctx context.Context, eventID string) (*domain.EventDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	images, err := s.imageRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	if images == nil {
		images = []*domain.Image{}
	}
	return &domain.EventDetails{Event: event, Images: images}, nil
}

func (s *eventService) ListMyEvents(ctx context.Context, ownerID string, params domain.PaginationParams) ([]*domain.Event, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	events, total, err := s.eventRepo.ListByOwnerID(ctx, ownerID, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	return events, total, nil
}

func (s *eventService) getEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// getOwnedEvent loads the event and checks that ownerID owns it.
func (s *eventService) getOwnedEvent(ctx context.Context, eventID, ownerID string) (*domain.Event, error) {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return event, nil
}

func (s *eventService) UpdateEvent(ctx context.Context, eventID, ownerID string, upd domain.EventUpdate) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	current, err := s.getOwnedEvent(ctx, eventID, ownerID)
	if err != nil {
		return nil, err
	}

	candidate := *current
	candidate.Title = upd.Title
	candidate.Description = upd.Description
	candidate.Location = upd.Location
	candidate.City = upd.City
	candidate.State = upd.State
	candidate.Type = upd.Type
	candidate.Date = upd.Date
	candidate.Deadline = upd.Deadline
	candidate.Capacity = upd.Capacity
	if err := candidate.Validate(s.now()); err != nil {
		return nil, err
	}
	candidate.Capacity = current.Capacity
	if err := candidate.Resize(upd.Capacity); err != nil {
		return nil, err
	}

	updated, err := s.eventRepo.Update(ctx, eventID, upd)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	if !updated.Date.Equal(current.Date) {
		if err := s.reminders.Schedule(ctx, eventID, updated.Date); err != nil {
			s.logger.Error("reschedule reminder", "event_id", eventID, "error", err)
		}
	}
	return updated, nil
}

func (s *eventService) DisableRegistrations(ctx context.Context, eventID, ownerID string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.getOwnedEvent(ctx, eventID, ownerID); err != nil {
		return nil, err
	}
	event, err := s.eventRepo.Disable(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("disable registrations: %w", err)
	}
	return event, nil
}

// DeleteEvent removes the event and everything hanging off it. Each step is
// idempotent, so a failed delete can be retried from the top.
func (s *eventService) DeleteEvent(ctx context.Context, eventID, ownerID string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "event.DeleteEvent", trace.WithAttributes(attribute.String("event.id", eventID)))
	defer func() { endSpan(span, err) }()

	if _, err := s.getOwnedEvent(ctx, eventID, ownerID); err != nil {
		return err
	}
	if err := s.reminders.Cancel(ctx, eventID); err != nil {
		return fmt.Errorf("cancel reminder: %w", err)
	}
	if err := s.images.DeleteEventImages(ctx, eventID); err != nil {
		return fmt.Errorf("delete images: %w", err)
	}
	removed, err := s.participantRepo.DeleteByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("delete participants: %w", err)
	}
	if err := s.eventRepo.Delete(ctx, eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete event: %w", err)
	}
	s.logger.Info("event deleted", "event_id", eventID, "participants", removed)
	return nil
}

// SendRSVPInvitations emails every participant a link asking them to update
// their RSVP and returns how many were invited.
func (s *eventService) SendRSVPInvitations(ctx context.Context, eventID, ownerID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.getOwnedEvent(ctx, eventID, ownerID)
	if err != nil {
		return 0, err
	}
	participants, err := s.participantRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("list participants: %w", err)
	}
	if len(participants) == 0 {
		return 0, fmt.Errorf("%w: event has no participants", domain.ErrNotFound)
	}
	recipients, err := s.recipientEmails(ctx, participants)
	if err != nil {
		return 0, err
	}

	data := &domain.RSVPInvitationEmailData{
		Recipients: recipients,
		EventTitle: event.Title,
		EventDate:  event.Date,
		Location:   event.Location,
		RSVPURL:    fmt.Sprintf("%s/events/%s", s.frontendURL, event.ID),
	}
	if organizer, err := s.userRepo.GetByID(ctx, event.OwnerID); err == nil {
		data.OrganizerName = organizer.Name
	}
	if err := s.emailService.SendRSVPInvitation(ctx, data); err != nil {
		return 0, err
	}
	return len(recipients), nil
}

func (s *eventService) recipientEmails(ctx context.Context, participants []*domain.Participant) ([]string, error) {
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	users, err := s.userRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	emails := make([]string, 0, len(users))
	for _, u := range users {
		emails = append(emails, u.Email)
	}
	return emails, nil
}
