package domain

import (
	"context"
	"time"
)

// ReminderLead is how long before an event starts its reminder fires.
const ReminderLead = 30 * time.Minute

// ReminderFireAt returns the fire time for an event starting at date,
// truncated to milliseconds so every store round-trips it exactly.
func ReminderFireAt(date time.Time) time.Time {
	return date.Add(-ReminderLead).Truncate(time.Millisecond)
}

// Reminder is a pending one-shot reminder for an event.
type Reminder struct {
	EventID string
	FireAt  time.Time
}

// ReminderStore persists pending reminders so they survive restarts.
type ReminderStore interface {
	// Upsert records or replaces the pending reminder of an event.
	Upsert(ctx context.Context, eventID string, fireAt time.Time) error
	// Claim marks the reminder due at fireAt as fired. It returns true for
	// exactly one caller; false when the reminder was already fired, canceled,
	// rescheduled to another time or never stored.
	Claim(ctx context.Context, eventID string, fireAt time.Time) (bool, error)
	// Cancel withdraws a pending reminder. Canceling an unknown event is not an error.
	Cancel(ctx context.Context, eventID string) error
	// ListDue returns pending reminders whose fire time is at or before now.
	ListDue(ctx context.Context, now time.Time) ([]Reminder, error)
	// ListPending returns every pending reminder.
	ListPending(ctx context.Context) ([]Reminder, error)
}

// ReminderScheduler arms one reminder per event.
type ReminderScheduler interface {
	// Schedule arms the reminder for an event starting at date, replacing any
	// earlier one. It is a no-op (and cancels the old one) when the fire time
	// is not in the future.
	Schedule(ctx context.Context, eventID string, date time.Time) error
	Cancel(ctx context.Context, eventID string) error
}
