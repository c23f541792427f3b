package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"occasio/internal/domain"

	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "email", "name", "mobile", "password_hash", "salt", "verified", "created_at", "updated_at"}

func TestUserRepository_Create(t *testing.T) {
	created := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mock    func(mock sqlmock.Sqlmock)
		wantID  string
		errIs   error
		wantErr bool
	}{
		{
			name: "success lower-cases email",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("alice@example.com", "Alice", "", "hash", "salt", false, created, created).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("user-uuid-1"))
			},
			wantID: "user-uuid-1",
		},
		{
			name: "unique violation returns ErrDuplicateEmail",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO users`).WillReturnError(&pq.Error{Code: "23505"})
			},
			wantErr: true,
			errIs:   domain.ErrDuplicateEmail,
		},
		{
			name: "db error",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO users`).WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
			errIs:   sql.ErrConnDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			u := domain.NewUser(" Alice@Example.com ", "Alice", "", "hash", "salt", created, created)
			err = NewUserRepository(db).Create(context.Background(), u)
			if tt.wantErr {
				require.ErrorIs(t, err, tt.errIs)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.wantID, u.ID)
				require.Equal(t, "alice@example.com", u.Email)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	created := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`FROM users WHERE email = \$1`).
			WithArgs("alice@example.com").
			WillReturnRows(sqlmock.NewRows(userCols).AddRow("user-1", "alice@example.com", "Alice", nil, "hash", "salt", true, created, created))

		got, err := NewUserRepository(db).GetByEmail(context.Background(), "ALICE@example.com")
		require.NoError(t, err)
		require.Equal(t, &domain.User{
			ID: "user-1", Email: "alice@example.com", Name: "Alice", PasswordHash: "hash", Salt: "salt",
			Verified: true, CreatedAt: created, UpdatedAt: created,
		}, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`FROM users WHERE email = \$1`).WillReturnRows(sqlmock.NewRows(userCols))

		_, err = NewUserRepository(db).GetByEmail(context.Background(), "nobody@example.com")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_ListByIDs(t *testing.T) {
	created := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM users WHERE id = ANY\(\$1\)`).
		WithArgs(pq.Array([]string{"user-1", "user-2"})).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("user-1", "a@example.com", "A", "555", "h", "s", true, created, created).
			AddRow("user-2", "b@example.com", "B", nil, "h", "s", true, created, created))

	repo := NewUserRepository(db)
	got, err := repo.ListByIDs(context.Background(), []string{"user-1", "user-2"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "555", got[0].Mobile)
	require.Equal(t, "b@example.com", got[1].Email)

	got, err = repo.ListByIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_MarkVerified(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE users SET verified = TRUE`).WithArgs("alice@example.com").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET verified = TRUE`).WithArgs("ghost@example.com").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewUserRepository(db)
	require.NoError(t, repo.MarkVerified(context.Background(), "alice@example.com"))
	require.ErrorIs(t, repo.MarkVerified(context.Background(), "ghost@example.com"), domain.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListEventHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT event_id FROM user_event_history WHERE user_id = \$1 ORDER BY created_at DESC`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow("ev-2").AddRow("ev-1"))

	got, err := NewUserRepository(db).ListEventHistory(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, []string{"ev-2", "ev-1"}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepository_GetByCode(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, code FROM roles WHERE code = \$1`).
		WithArgs("organizer").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).AddRow("role-1", "organizer"))
	mock.ExpectQuery(`SELECT id, code FROM roles WHERE code = \$1`).
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}))

	repo := NewRoleRepository(db)
	got, err := repo.GetByCode(context.Background(), "organizer")
	require.NoError(t, err)
	require.Equal(t, &domain.Role{ID: "role-1", Code: "organizer"}, got)

	_, err = repo.GetByCode(context.Background(), "admin")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepository_Consume(t *testing.T) {
	consumeSQL := `DELETE FROM email_verifications WHERE id = \(`

	tests := []struct {
		name    string
		mock    func(mock sqlmock.Sqlmock)
		want    bool
		wantErr bool
	}{
		{
			name: "valid code is consumed",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(consumeSQL).WithArgs("alice@example.com", "code-hash").
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ver-1"))
			},
			want: true,
		},
		{
			name: "unknown or expired code",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(consumeSQL).WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			want: false,
		},
		{
			name: "db error",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(consumeSQL).WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			got, err := NewVerificationRepository(db).Consume(context.Background(), "Alice@example.com", "code-hash")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, got)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
