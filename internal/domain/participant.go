package domain

import (
	"context"
	"time"
)

// DefaultBadge is the badge a participant gets when none is supplied.
const DefaultBadge = "none"

// Participant represents a user's registration for an event.
// The participant ID doubles as the check-in token carried by the QR code.
// swagger:model Participant
type Participant struct {
	ID          string     `json:"id"`
	EventID     string     `json:"event_id"`
	UserID      string     `json:"user_id"`
	RSVPStatus  RSVPStatus `json:"rsvp_status"`
	Badge       string     `json:"badge"`
	Preferences string     `json:"preferences"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewParticipant creates a new Participant. ID is set by the repository on create.
func NewParticipant(eventID, userID string, status RSVPStatus, badge, preferences string, createdAt, updatedAt time.Time) *Participant {
	if badge == "" {
		badge = DefaultBadge
	}
	return &Participant{
		EventID:     eventID,
		UserID:      userID,
		RSVPStatus:  status,
		Badge:       badge,
		Preferences: preferences,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

// ParticipantRepository defines storage operations for participants.
type ParticipantRepository interface {
	GetByID(ctx context.Context, id string) (*Participant, error)
	GetByEventAndUser(ctx context.Context, eventID, userID string) (*Participant, error)
	ListByEvent(ctx context.Context, eventID string) ([]*Participant, error)
	ListByEventAndStatus(ctx context.Context, eventID string, status RSVPStatus) ([]*Participant, error)
	UpdateDetails(ctx context.Context, eventID, userID, badge, preferences string) (*Participant, error)
	// UpdateRSVP sets a self-service status unless the participant is checked in.
	UpdateRSVP(ctx context.Context, eventID, userID string, status RSVPStatus) (*Participant, error)
	// MarkCheckedIn moves a going participant to checked-in; ErrInvalidState otherwise.
	MarkCheckedIn(ctx context.Context, participantID string) (*Participant, error)
	// DeleteByEvent removes every participant of the event and their history rows.
	DeleteByEvent(ctx context.Context, eventID string) (int, error)
}

// RegistrationStore runs the multi-row parts of the registration workflow
// atomically: either every step is applied or none is.
type RegistrationStore interface {
	// Register admits one slot, inserts the participant and appends the
	// event to the user's history.
	Register(ctx context.Context, p *Participant, now time.Time) (*Reservation, error)
	// Unregister deletes the participant, releases its slot and removes the
	// event from the user's history.
	Unregister(ctx context.Context, eventID, userID string) error
}

// RegistrationResult is the outcome of a successful registration.
// NotificationFailed marks a degraded outcome: the registration stands but
// the confirmation email could not be sent.
type RegistrationResult struct {
	Participant        *Participant `json:"participant"`
	Reservation        *Reservation `json:"reservation"`
	NotificationFailed bool         `json:"notification_failed"`
}

// EventHistoryItem bundles a participant record with its event.
type EventHistoryItem struct {
	Participant *Participant `json:"participant"`
	Event       *Event       `json:"event"`
}

// RegistrationService defines the attendee-facing registration workflow.
type RegistrationService interface {
	Register(ctx context.Context, eventID, userID, badge, preferences string) (*RegistrationResult, error)
	Unregister(ctx context.Context, eventID, userID string) error
	CheckRegistration(ctx context.Context, eventID, userID string) (*Participant, error)
	UpdateDetails(ctx context.Context, eventID, userID, badge, preferences string) (*Participant, error)
	UpdateRSVP(ctx context.Context, eventID, userID string, status RSVPStatus) (*Participant, error)
	ParticipantQRCode(ctx context.Context, eventID, userID string) ([]byte, error)
	ListMyEvents(ctx context.Context, userID string) ([]*EventHistoryItem, error)
}

// CheckInService validates participant tokens presented at the door.
type CheckInService interface {
	CheckIn(ctx context.Context, organizerID, eventID, token string) (*Participant, error)
}

// QRCodeEncoder renders a payload as a PNG QR code.
type QRCodeEncoder interface {
	Encode(payload string) ([]byte, error)
}
