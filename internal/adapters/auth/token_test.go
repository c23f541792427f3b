package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"occasio/internal/domain"
)

func TestJWTIssuer_Issue(t *testing.T) {
	secret := "test-secret"
	issuer := NewJWTIssuer(secret)

	token, err := issuer.Issue("user-123", "u@example.com", []string{"organizer", "user"}, 24*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	parsed, err := jwt.ParseWithClaims(token, &jwtClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	claims, ok := parsed.Claims.(*jwtClaims)
	require.True(t, ok)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "u@example.com", claims.Email)
	assert.Equal(t, []string{"organizer", "user"}, claims.Roles)
}

func TestJWTVerifier_Verify(t *testing.T) {
	issuer := NewJWTIssuer("secret-a")
	valid, err := issuer.Issue("user-1", "a@example.com", []string{"organizer"}, time.Hour)
	require.NoError(t, err)

	expiredIssuer := &jwtIssuer{secret: []byte("secret-a"), now: func() time.Time { return time.Now().Add(-2 * time.Hour) }}
	expired, err := expiredIssuer.Issue("user-1", "a@example.com", nil, time.Hour)
	require.NoError(t, err)

	otherKey, err := NewJWTIssuer("secret-b").Issue("user-1", "a@example.com", nil, time.Hour)
	require.NoError(t, err)

	verifier := NewJWTVerifier("secret-a")

	t.Run("valid token yields principal", func(t *testing.T) {
		p, err := verifier.Verify(valid)
		require.NoError(t, err)
		assert.Equal(t, "user-1", p.UserID)
		assert.True(t, p.HasRole(domain.RoleOrganizer))
		assert.False(t, p.HasRole(domain.RoleUser))
	})

	for name, tok := range map[string]string{
		"expired":     expired,
		"wrong key":   otherKey,
		"malformed":   "not-a-jwt",
		"empty token": "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := verifier.Verify(tok)
			require.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}
