package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"occasio/internal/domain"
)

const imageColumns = `id, event_id, kind, storage_key, url, title, created_at, updated_at`

type imageRepository struct {
	DB *sql.DB
}

func NewImageRepository(db *sql.DB) domain.ImageRepository {
	return &imageRepository{DB: db}
}

func scanImage(s scanner) (*domain.Image, error) {
	img := &domain.Image{}
	var kind string
	if err := s.Scan(&img.ID, &img.EventID, &kind, &img.Key, &img.URL, &img.Title, &img.CreatedAt, &img.UpdatedAt); err != nil {
		return nil, err
	}
	img.Kind = domain.ImageKind(kind)
	return img, nil
}

func (r *imageRepository) Create(ctx context.Context, img *domain.Image) error {
	query := `
		INSERT INTO images (event_id, kind, storage_key, url, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		img.EventID, string(img.Kind), img.Key, img.URL, img.Title, img.CreatedAt, img.UpdatedAt,
	).Scan(&img.ID)
	var perr *pq.Error
	if errors.As(err, &perr) && perr.Code == "23503" {
		return domain.ErrNotFound
	}
	return err
}

func (r *imageRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Image, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []*domain.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (r *imageRepository) ListByEvent(ctx context.Context, eventID string) ([]*domain.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE event_id = $1 ORDER BY created_at ASC`
	return r.list(ctx, query, eventID)
}

func (r *imageRepository) ListByEventAndKind(ctx context.Context, eventID string, kind domain.ImageKind) ([]*domain.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE event_id = $1 AND kind = $2 ORDER BY created_at ASC`
	return r.list(ctx, query, eventID, string(kind))
}

func (r *imageRepository) GetByIDs(ctx context.Context, eventID string, ids []string) ([]*domain.Image, error) {
	if len(ids) == 0 {
		return []*domain.Image{}, nil
	}
	query := `SELECT ` + imageColumns + ` FROM images WHERE event_id = $1 AND id = ANY($2) ORDER BY created_at ASC`
	return r.list(ctx, query, eventID, pq.Array(ids))
}

func (r *imageRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
