package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// querier is satisfied by *sql.DB and *sql.Tx so ledger statements can run
// standalone or inside the registration transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var perr *pq.Error
	return errors.As(err, &perr) && perr.Code == "23505"
}
