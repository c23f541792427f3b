package domain

import (
	"context"
	"time"
)

// Role codes.
const (
	RoleOrganizer = "organizer"
	RoleUser      = "user"
)

// User represents a registered account (attendee or organizer).
// swagger:model User
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Mobile       string    `json:"mobile,omitempty"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser returns a new unverified User. ID is typically set by the repository on create.
func NewUser(email, name, mobile, passwordHash, salt string, createdAt, updatedAt time.Time) *User {
	return &User{
		Email:        email,
		Name:         name,
		Mobile:       mobile,
		PasswordHash: passwordHash,
		Salt:         salt,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
}

// Role represents an application role (organizer or user).
type Role struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Roles  []string
}

// HasRole reports whether the principal carries the role code.
func (p Principal) HasRole(code string) bool {
	for _, r := range p.Roles {
		if r == code {
			return true
		}
	}
	return false
}

// PasswordHasher handles salt generation, hashing, and verification.
type PasswordHasher interface {
	GenerateSalt() (string, error)
	Hash(salt, password string) (hash string, err error)
	Compare(hash, salt, password string) error
}

// TokenIssuer issues tokens (e.g. JWT) for an authenticated user.
type TokenIssuer interface {
	Issue(userID, email string, roles []string, expiry time.Duration) (string, error)
}

// TokenVerifier verifies a token and returns the authenticated principal.
type TokenVerifier interface {
	Verify(token string) (Principal, error)
}

// UserRepository defines the interface for user storage.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	ListByIDs(ctx context.Context, ids []string) ([]*User, error)
	MarkVerified(ctx context.Context, email string) error
	Delete(ctx context.Context, id string) error
	AssignRole(ctx context.Context, userID, roleID string) error
	// ListEventHistory returns the IDs of events in the user's history, newest first.
	ListEventHistory(ctx context.Context, userID string) ([]string, error)
}

// RoleRepository defines the interface for role storage.
type RoleRepository interface {
	GetByCode(ctx context.Context, code string) (*Role, error)
	ListByUserID(ctx context.Context, userID string) ([]*Role, error)
}

// VerificationRepository stores one-time email verification codes.
type VerificationRepository interface {
	Create(ctx context.Context, email, codeHash string, expiresAt time.Time) error
	Consume(ctx context.Context, email, codeHash string) (consumed bool, err error)
}

// AuthService defines sign-up, email verification and login.
type AuthService interface {
	SignUp(ctx context.Context, email, name, mobile, password, role string) (*User, error)
	VerifyEmail(ctx context.Context, email, code string) error
	Login(ctx context.Context, email, password string) (token string, user *User, err error)
}
