package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"occasio/internal/domain"
)

type verificationRepository struct {
	DB *sql.DB
}

// NewVerificationRepository returns a domain.VerificationRepository implemented with Postgres.
func NewVerificationRepository(db *sql.DB) domain.VerificationRepository {
	return &verificationRepository{DB: db}
}

func (r *verificationRepository) Create(ctx context.Context, email, codeHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO email_verifications (email, code_hash, expires_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.DB.ExecContext(ctx, query, strings.ToLower(email), codeHash, expiresAt)
	return err
}

// Consume deletes a matching unexpired code in one statement, so a code
// verifies at most once even under concurrent requests.
func (r *verificationRepository) Consume(ctx context.Context, email, codeHash string) (consumed bool, err error) {
	query := `
		DELETE FROM email_verifications
		WHERE id = (
			SELECT id FROM email_verifications
			WHERE email = $1 AND code_hash = $2 AND expires_at > NOW()
			LIMIT 1
		)
		RETURNING id
	`
	var id string
	err = r.DB.QueryRowContext(ctx, query, strings.ToLower(email), codeHash).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
