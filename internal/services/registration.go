package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"occasio/internal/domain"
)

type registrationService struct {
	eventRepo       domain.EventRepository
	participantRepo domain.ParticipantRepository
	store           domain.RegistrationStore
	userRepo        domain.UserRepository
	emailService    domain.EmailService
	qr              domain.QRCodeEncoder
	defaultStatus   domain.RSVPStatus
	logger          *slog.Logger
	contextTimeout  time.Duration
	now             func() time.Time
}

// NewRegistrationService creates the attendee registration workflow.
// defaultStatus is the RSVP status new participants start with.
func NewRegistrationService(
	eventRepo domain.EventRepository,
	participantRepo domain.ParticipantRepository,
	store domain.RegistrationStore,
	userRepo domain.UserRepository,
	emailService domain.EmailService,
	qr domain.QRCodeEncoder,
	defaultStatus domain.RSVPStatus,
	logger *slog.Logger,
	timeout time.Duration,
) domain.RegistrationService {
	if !defaultStatus.SelfService() {
		defaultStatus = domain.RSVPNotGoing
	}
	return &registrationService{
		eventRepo:       eventRepo,
		participantRepo: participantRepo,
		store:           store,
		userRepo:        userRepo,
		emailService:    emailService,
		qr:              qr,
		defaultStatus:   defaultStatus,
		logger:          logger,
		contextTimeout:  timeout,
		now:             time.Now,
	}
}

func (s *registrationService) getEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (s *registrationService) getParticipant(ctx context.Context, eventID, userID string) (*domain.Participant, error) {
	p, err := s.participantRepo.GetByEventAndUser(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

func (s *registrationService) Register(ctx context.Context, eventID, userID, badge, preferences string) (result *domain.RegistrationResult, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "registration.Register", trace.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.String("user.id", userID),
	))
	defer func() { endSpan(span, err) }()

	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if _, err := s.participantRepo.GetByEventAndUser(ctx, eventID, userID); err == nil {
		return nil, domain.ErrAlreadyRegistered
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get participant: %w", err)
	}

	now := s.now()
	if err := event.AdmitError(now); err != nil {
		return nil, err
	}

	p := domain.NewParticipant(eventID, userID, s.defaultStatus, badge, preferences, now, now)
	res, err := s.store.Register(ctx, p, now)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEventFull),
			errors.Is(err, domain.ErrRegistrationClosed),
			errors.Is(err, domain.ErrAlreadyRegistered),
			errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
		return nil, fmt.Errorf("register participant: %w", err)
	}

	result = &domain.RegistrationResult{Participant: p, Reservation: res}
	if err := s.sendConfirmation(ctx, event, p); err != nil {
		s.logger.Warn("registration confirmation not sent", "event_id", eventID, "user_id", userID, "error", err)
		span.AddEvent("confirmation email failed")
		result.NotificationFailed = true
	}
	return result, nil
}

func (s *registrationService) sendConfirmation(ctx context.Context, event *domain.Event, p *domain.Participant) error {
	user, err := s.userRepo.GetByID(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	data := &domain.RegistrationEmailData{
		Email:       user.Email,
		Name:        user.Name,
		EventTitle:  event.Title,
		EventDate:   event.Date,
		Location:    event.Location,
		City:        event.City,
		State:       event.State,
		Badge:       p.Badge,
		Preferences: p.Preferences,
	}
	if organizer, err := s.userRepo.GetByID(ctx, event.OwnerID); err == nil {
		data.OrganizerName = organizer.Name
	}
	return s.emailService.SendRegistrationConfirmation(ctx, data)
}

func (s *registrationService) Unregister(ctx context.Context, eventID, userID string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "registration.Unregister", trace.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.String("user.id", userID),
	))
	defer func() { endSpan(span, err) }()

	if err := s.store.Unregister(ctx, eventID, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidState) {
			return err
		}
		return fmt.Errorf("unregister participant: %w", err)
	}
	return nil
}

// CheckRegistration returns the caller's participant record. Like registering,
// it reports closed registrations before looking the participant up.
func (s *registrationService) CheckRegistration(ctx context.Context, eventID, userID string) (*domain.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.RegistrationsEnabled {
		return nil, domain.ErrRegistrationClosed
	}
	return s.getParticipant(ctx, eventID, userID)
}

func (s *registrationService) UpdateDetails(ctx context.Context, eventID, userID, badge, preferences string) (*domain.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if badge == "" {
		badge = domain.DefaultBadge
	}
	p, err := s.participantRepo.UpdateDetails(ctx, eventID, userID, badge, preferences)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update participant: %w", err)
	}
	return p, nil
}

func (s *registrationService) UpdateRSVP(ctx context.Context, eventID, userID string, status domain.RSVPStatus) (*domain.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Concluded(s.now()) {
		return nil, fmt.Errorf("%w: event has already started", domain.ErrInvalidTransition)
	}
	p, err := s.getParticipant(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if err := p.RSVPStatus.TransitionTo(status); err != nil {
		return nil, err
	}
	updated, err := s.participantRepo.UpdateRSVP(ctx, eventID, userID, status)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("update rsvp: %w", err)
	}
	return updated, nil
}

// ParticipantQRCode renders the caller's check-in token as a PNG QR code.
func (s *registrationService) ParticipantQRCode(ctx context.Context, eventID, userID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	p, err := s.getParticipant(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	png, err := s.qr.Encode(p.ID)
	if err != nil {
		return nil, fmt.Errorf("encode participant token: %w", err)
	}
	return png, nil
}

func (s *registrationService) ListMyEvents(ctx context.Context, userID string) ([]*domain.EventHistoryItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	eventIDs, err := s.userRepo.ListEventHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list event history: %w", err)
	}
	items := make([]*domain.EventHistoryItem, 0, len(eventIDs))
	for _, eventID := range eventIDs {
		event, err := s.eventRepo.GetByID(ctx, eventID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get event for history: %w", err)
		}
		p, err := s.participantRepo.GetByEventAndUser(ctx, eventID, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get participant for history: %w", err)
		}
		items = append(items, &domain.EventHistoryItem{Participant: p, Event: event})
	}
	return items, nil
}
