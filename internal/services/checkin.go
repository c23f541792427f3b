package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"occasio/internal/domain"
)

type checkInService struct {
	eventRepo       domain.EventRepository
	participantRepo domain.ParticipantRepository
	logger          *slog.Logger
	contextTimeout  time.Duration
}

// NewCheckInService creates the door check-in workflow.
func NewCheckInService(eventRepo domain.EventRepository, participantRepo domain.ParticipantRepository, logger *slog.Logger, timeout time.Duration) domain.CheckInService {
	return &checkInService{
		eventRepo:       eventRepo,
		participantRepo: participantRepo,
		logger:          logger,
		contextTimeout:  timeout,
	}
}

// CheckIn marks the participant identified by token as checked in.
// Only the event owner may check participants in, and only going
// participants of this event qualify.
func (s *checkInService) CheckIn(ctx context.Context, organizerID, eventID, token string) (p *domain.Participant, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "checkin.CheckIn", trace.WithAttributes(attribute.String("event.id", eventID)))
	defer func() { endSpan(span, err) }()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event.OwnerID != organizerID {
		return nil, domain.ErrUnauthorized
	}
	if _, err := uuid.Parse(token); err != nil {
		return nil, fmt.Errorf("%w: unknown participant token", domain.ErrNotFound)
	}
	p, err = s.participantRepo.GetByID(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	if p.EventID != eventID {
		return nil, fmt.Errorf("%w: participant belongs to another event", domain.ErrNotFound)
	}
	if _, err := p.RSVPStatus.CheckIn(); err != nil {
		return nil, fmt.Errorf("%w: participant is %s", domain.ErrInvalidState, p.RSVPStatus)
	}
	checked, err := s.participantRepo.MarkCheckedIn(ctx, p.ID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) || errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("check in participant: %w", err)
	}
	s.logger.Info("participant checked in", "event_id", eventID, "participant_id", p.ID)
	return checked, nil
}
