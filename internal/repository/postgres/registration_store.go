package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"occasio/internal/domain"
)

type registrationStore struct {
	DB *sql.DB
}

// NewRegistrationStore returns a domain.RegistrationStore that runs each
// workflow in a single transaction.
func NewRegistrationStore(db *sql.DB) domain.RegistrationStore {
	return &registrationStore{DB: db}
}

func (s *registrationStore) Register(ctx context.Context, p *domain.Participant, now time.Time) (*domain.Reservation, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := admitSlot(ctx, tx, p.EventID, now)
	if err != nil {
		return nil, err
	}

	insert := `
		INSERT INTO participants (event_id, user_id, rsvp_status, badge, preferences, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, insert,
		p.EventID, p.UserID, string(p.RSVPStatus), p.Badge, p.Preferences, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAlreadyRegistered
		}
		return nil, err
	}

	history := `
		INSERT INTO user_event_history (user_id, event_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, event_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, history, p.UserID, p.EventID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *registrationStore) Unregister(ctx context.Context, eventID, userID string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id, status string
	lock := `SELECT id, rsvp_status FROM participants WHERE event_id = $1 AND user_id = $2 FOR UPDATE`
	if err := tx.QueryRowContext(ctx, lock, eventID, userID).Scan(&id, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	if domain.RSVPStatus(status).Terminal() {
		return domain.ErrInvalidState
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM participants WHERE id = $1`, id); err != nil {
		return err
	}
	if err := releaseSlot(ctx, tx, eventID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_event_history WHERE user_id = $1 AND event_id = $2`, userID, eventID); err != nil {
		return err
	}
	return tx.Commit()
}
