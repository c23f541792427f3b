package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"occasio/internal/domain"
)

// admitAttempts bounds re-reads when the conditional admit misses a row that
// turns out to be admissible (capacity changed between statements).
const admitAttempts = 3

const eventColumns = `id, owner_id, title, description, location, city, state, type, date, deadline,
		capacity, remaining_capacity, registrations_enabled, closed_by_organizer, created_at, updated_at`

type eventRepository struct {
	DB *sql.DB
}

func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

func scanEvent(s scanner) (*domain.Event, error) {
	e := &domain.Event{}
	err := s.Scan(
		&e.ID, &e.OwnerID, &e.Title, &e.Description, &e.Location, &e.City, &e.State, &e.Type, &e.Date, &e.Deadline,
		&e.Capacity, &e.RemainingCapacity, &e.RegistrationsEnabled, &e.ClosedByOrganizer, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func getEvent(ctx context.Context, q querier, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// admitSlot takes one slot with a single conditional update. When no row
// matches, the event is re-read and the rejection classified by the same rule
// the domain model applies.
func admitSlot(ctx context.Context, q querier, eventID string, now time.Time) (*domain.Reservation, error) {
	query := `
		UPDATE events
		SET remaining_capacity = remaining_capacity - 1,
			registrations_enabled = remaining_capacity - 1 > 0,
			updated_at = $2
		WHERE id = $1
			AND registrations_enabled
			AND NOT closed_by_organizer
			AND remaining_capacity > 0
			AND deadline >= $2
		RETURNING id, remaining_capacity, registrations_enabled
	`
	for range admitAttempts {
		res := &domain.Reservation{}
		err := q.QueryRowContext(ctx, query, eventID, now).Scan(&res.EventID, &res.RemainingCapacity, &res.RegistrationsEnabled)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		e, err := getEvent(ctx, q, eventID)
		if err != nil {
			return nil, err
		}
		if err := e.AdmitError(now); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("admit event %s: capacity kept changing", eventID)
}

// releaseSlot returns one slot, capped at capacity. Registrations reopen
// unless the organizer closed them.
func releaseSlot(ctx context.Context, q querier, eventID string) error {
	query := `
		UPDATE events
		SET remaining_capacity = LEAST(remaining_capacity + 1, capacity),
			registrations_enabled = NOT closed_by_organizer AND LEAST(remaining_capacity + 1, capacity) > 0,
			updated_at = NOW()
		WHERE id = $1
	`
	result, err := q.ExecContext(ctx, query, eventID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	query := `
		INSERT INTO events (owner_id, title, description, location, city, state, type, date, deadline,
			capacity, remaining_capacity, registrations_enabled, closed_by_organizer, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		e.OwnerID, e.Title, e.Description, e.Location, e.City, e.State, e.Type, e.Date, e.Deadline,
		e.Capacity, e.RemainingCapacity, e.RegistrationsEnabled, e.ClosedByOrganizer, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	return getEvent(ctx, r.DB, id)
}

func (r *eventRepository) ListByOwnerID(ctx context.Context, ownerID string, params domain.PaginationParams) ([]*domain.Event, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + eventColumns + `
		FROM events
		WHERE owner_id = $1
		ORDER BY date ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.DB.QueryContext(ctx, query, ownerID, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	events := make([]*domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

// Update replaces the editable fields. A capacity change shifts
// remaining_capacity by the same delta in the same statement and is refused
// when it would drop below zero.
func (r *eventRepository) Update(ctx context.Context, eventID string, upd domain.EventUpdate) (*domain.Event, error) {
	query := `
		UPDATE events
		SET title = $2, description = $3, location = $4, city = $5, state = $6, type = $7,
			date = $8, deadline = $9,
			capacity = $10,
			remaining_capacity = remaining_capacity + ($10 - capacity),
			registrations_enabled = NOT closed_by_organizer AND remaining_capacity + ($10 - capacity) > 0,
			updated_at = NOW()
		WHERE id = $1 AND remaining_capacity + ($10 - capacity) >= 0
		RETURNING ` + eventColumns
	e, err := scanEvent(r.DB.QueryRowContext(ctx, query,
		eventID, upd.Title, upd.Description, upd.Location, upd.City, upd.State, upd.Type,
		upd.Date, upd.Deadline, upd.Capacity,
	))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, err := getEvent(ctx, r.DB, eventID); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: capacity is below the number of registered participants", domain.ErrInvalidInput)
}

func (r *eventRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM events WHERE id = $1`
	result, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *eventRepository) Admit(ctx context.Context, eventID string, now time.Time) (*domain.Reservation, error) {
	return admitSlot(ctx, r.DB, eventID, now)
}

func (r *eventRepository) Release(ctx context.Context, eventID string) error {
	return releaseSlot(ctx, r.DB, eventID)
}

func (r *eventRepository) Disable(ctx context.Context, eventID string) (*domain.Event, error) {
	query := `
		UPDATE events
		SET closed_by_organizer = TRUE, registrations_enabled = FALSE, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + eventColumns
	e, err := scanEvent(r.DB.QueryRowContext(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}
