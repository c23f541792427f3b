package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Event types.
const (
	EventTypeOpen       = "open"
	EventTypeInviteOnly = "invite-only"
)

// Event represents an event created by an organizer.
// Capacity fields are owned by the capacity ledger: they change only through
// Admit, Release, Disable and Resize (and their SQL counterparts).
// swagger:model Event
type Event struct {
	ID                   string    `json:"id"`
	OwnerID              string    `json:"owner_id"`
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	Location             string    `json:"location"`
	City                 string    `json:"city"`
	State                string    `json:"state"`
	Type                 string    `json:"type"`
	Date                 time.Time `json:"date"`
	Deadline             time.Time `json:"deadline"`
	Capacity             int       `json:"capacity"`
	RemainingCapacity    int       `json:"remaining_capacity"`
	RegistrationsEnabled bool      `json:"registrations_enabled"`
	ClosedByOrganizer    bool      `json:"closed_by_organizer"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// NewEvent returns an open Event with remaining capacity equal to capacity.
// ID is set by the repository on create.
func NewEvent(ownerID, title, description, location, city, state, eventType string, date, deadline time.Time, capacity int, now time.Time) *Event {
	return &Event{
		OwnerID:              ownerID,
		Title:                title,
		Description:          description,
		Location:             location,
		City:                 city,
		State:                state,
		Type:                 eventType,
		Date:                 date,
		Deadline:             deadline,
		Capacity:             capacity,
		RemainingCapacity:    capacity,
		RegistrationsEnabled: true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Validate checks the fields an organizer supplies on create and update.
// It returns ErrInvalidInput wrapped with the first problem found.
func (e *Event) Validate(now time.Time) error {
	for name, v := range map[string]string{
		"title":       e.Title,
		"description": e.Description,
		"location":    e.Location,
		"city":        e.City,
		"state":       e.State,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, name)
		}
	}
	if e.Type != EventTypeOpen && e.Type != EventTypeInviteOnly {
		return fmt.Errorf("%w: type must be %q or %q", ErrInvalidInput, EventTypeOpen, EventTypeInviteOnly)
	}
	if e.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be greater than 0", ErrInvalidInput)
	}
	if e.Date.IsZero() || !e.Date.After(now) {
		return fmt.Errorf("%w: date must be in the future", ErrInvalidInput)
	}
	if e.Deadline.IsZero() || !e.Deadline.After(now) {
		return fmt.Errorf("%w: deadline must be in the future", ErrInvalidInput)
	}
	if e.Deadline.After(e.Date) {
		return fmt.Errorf("%w: deadline must not be after the event date", ErrInvalidInput)
	}
	return nil
}

// AdmitError reports why a registration attempt at now would be rejected,
// or nil if a slot can be reserved. An organizer close or a passed deadline
// is ErrRegistrationClosed even when seats remain; exhaustion is ErrEventFull.
func (e *Event) AdmitError(now time.Time) error {
	if e.ClosedByOrganizer || now.After(e.Deadline) {
		return ErrRegistrationClosed
	}
	if e.RemainingCapacity <= 0 {
		return ErrEventFull
	}
	if !e.RegistrationsEnabled {
		return ErrRegistrationClosed
	}
	return nil
}

// Admit reserves one slot. When the last slot is taken registrations are
// disabled, keeping remaining == 0 => !RegistrationsEnabled.
func (e *Event) Admit(now time.Time) error {
	if err := e.AdmitError(now); err != nil {
		return err
	}
	e.RemainingCapacity--
	e.RegistrationsEnabled = e.RemainingCapacity > 0
	return nil
}

// Release returns one slot, capped at Capacity. Registrations reopen only
// when the organizer has not closed them.
func (e *Event) Release() {
	if e.RemainingCapacity < e.Capacity {
		e.RemainingCapacity++
	}
	e.RegistrationsEnabled = !e.ClosedByOrganizer && e.RemainingCapacity > 0
}

// Disable closes registrations on behalf of the organizer.
func (e *Event) Disable() {
	e.ClosedByOrganizer = true
	e.RegistrationsEnabled = false
}

// Resize changes Capacity and shifts RemainingCapacity by the same delta.
// Shrinking below the number of taken slots is rejected.
func (e *Event) Resize(capacity int) error {
	if capacity <= 0 {
		return fmt.Errorf("%w: capacity must be greater than 0", ErrInvalidInput)
	}
	remaining := e.RemainingCapacity + (capacity - e.Capacity)
	if remaining < 0 {
		return fmt.Errorf("%w: capacity is below the number of registered participants", ErrInvalidInput)
	}
	e.Capacity = capacity
	e.RemainingCapacity = remaining
	e.RegistrationsEnabled = !e.ClosedByOrganizer && remaining > 0
	return nil
}

// Concluded reports whether the event has started at now.
func (e *Event) Concluded(now time.Time) bool {
	return !now.Before(e.Date)
}

// EventUpdate carries the organizer-editable fields of an event.
type EventUpdate struct {
	Title       string
	Description string
	Location    string
	City        string
	State       string
	Type        string
	Date        time.Time
	Deadline    time.Time
	Capacity    int
}

// CapacityLedger is the storage-side authority over an event's remaining
// capacity. Every method is a single atomic conditional update.
type CapacityLedger interface {
	// Admit reserves one slot or returns ErrEventFull, ErrRegistrationClosed or ErrNotFound.
	Admit(ctx context.Context, eventID string, now time.Time) (*Reservation, error)
	Release(ctx context.Context, eventID string) error
	Disable(ctx context.Context, eventID string) (*Event, error)
}

// Reservation is the ledger state right after a successful admit.
type Reservation struct {
	EventID              string `json:"event_id"`
	RemainingCapacity    int    `json:"remaining_capacity"`
	RegistrationsEnabled bool   `json:"registrations_enabled"`
}

// EventRepository defines the interface for event storage.
type EventRepository interface {
	CapacityLedger
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	// ListByOwnerID returns one page of the owner's events and the total count.
	ListByOwnerID(ctx context.Context, ownerID string, params PaginationParams) ([]*Event, int, error)
	Update(ctx context.Context, eventID string, upd EventUpdate) (*Event, error)
	Delete(ctx context.Context, id string) error
}

// EventDetails bundles an event with its images.
type EventDetails struct {
	Event  *Event   `json:"event"`
	Images []*Image `json:"images"`
}

// EventService defines organizer-facing event operations.
type EventService interface {
	CreateEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, eventID string) (*EventDetails, error)
	ListMyEvents(ctx context.Context, ownerID string, params PaginationParams) ([]*Event, int, error)
	UpdateEvent(ctx context.Context, eventID, ownerID string, upd EventUpdate) (*Event, error)
	DisableRegistrations(ctx context.Context, eventID, ownerID string) (*Event, error)
	DeleteEvent(ctx context.Context, eventID, ownerID string) error
	SendRSVPInvitations(ctx context.Context, eventID, ownerID string) (int, error)
}
