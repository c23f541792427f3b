package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"occasio/internal/domain"
)

const participantColumns = `id, event_id, user_id, rsvp_status, badge, preferences, created_at, updated_at`

type participantRepository struct {
	DB *sql.DB
}

func NewParticipantRepository(db *sql.DB) domain.ParticipantRepository {
	return &participantRepository{DB: db}
}

func scanParticipant(s scanner) (*domain.Participant, error) {
	p := &domain.Participant{}
	var status string
	if err := s.Scan(&p.ID, &p.EventID, &p.UserID, &status, &p.Badge, &p.Preferences, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.RSVPStatus = domain.RSVPStatus(status)
	return p, nil
}

func scanParticipantRow(row *sql.Row) (*domain.Participant, error) {
	p, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *participantRepository) GetByID(ctx context.Context, id string) (*domain.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`
	return scanParticipantRow(r.DB.QueryRowContext(ctx, query, id))
}

func (r *participantRepository) GetByEventAndUser(ctx context.Context, eventID, userID string) (*domain.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE event_id = $1 AND user_id = $2`
	return scanParticipantRow(r.DB.QueryRowContext(ctx, query, eventID, userID))
}

func (r *participantRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Participant, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := []*domain.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *participantRepository) ListByEvent(ctx context.Context, eventID string) ([]*domain.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE event_id = $1 ORDER BY created_at ASC`
	return r.list(ctx, query, eventID)
}

func (r *participantRepository) ListByEventAndStatus(ctx context.Context, eventID string, status domain.RSVPStatus) ([]*domain.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE event_id = $1 AND rsvp_status = $2 ORDER BY created_at ASC`
	return r.list(ctx, query, eventID, string(status))
}

func (r *participantRepository) UpdateDetails(ctx context.Context, eventID, userID, badge, preferences string) (*domain.Participant, error) {
	query := `
		UPDATE participants
		SET badge = $3, preferences = $4, updated_at = NOW()
		WHERE event_id = $1 AND user_id = $2
		RETURNING ` + participantColumns
	return scanParticipantRow(r.DB.QueryRowContext(ctx, query, eventID, userID, badge, preferences))
}

func (r *participantRepository) UpdateRSVP(ctx context.Context, eventID, userID string, status domain.RSVPStatus) (*domain.Participant, error) {
	query := `
		UPDATE participants
		SET rsvp_status = $3, updated_at = NOW()
		WHERE event_id = $1 AND user_id = $2 AND rsvp_status <> 'checked-in'
		RETURNING ` + participantColumns
	p, err := scanParticipantRow(r.DB.QueryRowContext(ctx, query, eventID, userID, string(status)))
	if !errors.Is(err, domain.ErrNotFound) {
		return p, err
	}
	// distinguish a missing participant from one that is already checked in
	if _, err := r.GetByEventAndUser(ctx, eventID, userID); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: participant is already checked in", domain.ErrInvalidTransition)
}

func (r *participantRepository) MarkCheckedIn(ctx context.Context, participantID string) (*domain.Participant, error) {
	query := `
		UPDATE participants
		SET rsvp_status = 'checked-in', updated_at = NOW()
		WHERE id = $1 AND rsvp_status = 'going'
		RETURNING ` + participantColumns
	p, err := scanParticipantRow(r.DB.QueryRowContext(ctx, query, participantID))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidState
	}
	return p, err
}

func (r *participantRepository) DeleteByEvent(ctx context.Context, eventID string) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_event_history WHERE event_id = $1`, eventID); err != nil {
		return 0, err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM participants WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}
