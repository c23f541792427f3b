package postgres

import (
	"context"
	"database/sql"
	"time"

	"occasio/internal/domain"
)

type reminderStore struct {
	DB *sql.DB
}

// NewReminderStore returns a domain.ReminderStore backed by the event_reminders table.
func NewReminderStore(db *sql.DB) domain.ReminderStore {
	return &reminderStore{DB: db}
}

func (s *reminderStore) Upsert(ctx context.Context, eventID string, fireAt time.Time) error {
	query := `
		INSERT INTO event_reminders (event_id, fire_at)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO UPDATE
		SET fire_at = EXCLUDED.fire_at, fired_at = NULL, canceled_at = NULL
	`
	_, err := s.DB.ExecContext(ctx, query, eventID, fireAt)
	return err
}

func (s *reminderStore) Claim(ctx context.Context, eventID string, fireAt time.Time) (bool, error) {
	query := `
		UPDATE event_reminders
		SET fired_at = NOW()
		WHERE event_id = $1 AND fire_at = $2 AND fired_at IS NULL AND canceled_at IS NULL
	`
	result, err := s.DB.ExecContext(ctx, query, eventID, fireAt)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

func (s *reminderStore) Cancel(ctx context.Context, eventID string) error {
	query := `
		UPDATE event_reminders
		SET canceled_at = NOW()
		WHERE event_id = $1 AND fired_at IS NULL AND canceled_at IS NULL
	`
	_, err := s.DB.ExecContext(ctx, query, eventID)
	return err
}

func (s *reminderStore) ListDue(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	query := `
		SELECT event_id, fire_at
		FROM event_reminders
		WHERE fired_at IS NULL AND canceled_at IS NULL AND fire_at <= $1
		ORDER BY fire_at ASC
	`
	return s.list(ctx, query, now)
}

func (s *reminderStore) ListPending(ctx context.Context) ([]domain.Reminder, error) {
	query := `
		SELECT event_id, fire_at
		FROM event_reminders
		WHERE fired_at IS NULL AND canceled_at IS NULL
		ORDER BY fire_at ASC
	`
	return s.list(ctx, query)
}

func (s *reminderStore) list(ctx context.Context, query string, args ...any) ([]domain.Reminder, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []domain.Reminder
	for rows.Next() {
		var rem domain.Reminder
		if err := rows.Scan(&rem.EventID, &rem.FireAt); err != nil {
			return nil, err
		}
		reminders = append(reminders, rem)
	}
	return reminders, rows.Err()
}
