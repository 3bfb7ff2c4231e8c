package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("super-secret", time.Hour)
	tok, err := m.Generate("+15551234567", RoleAdmin)
	require.NoError(t, err)

	claims, err := m.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestParse_Expired(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("secret", -time.Second)
	tok, err := m.Generate("+15551234567", RoleUser)
	require.NoError(t, err)

	_, err = m.Parse(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParse_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewTokenManager("right-secret", time.Hour).Generate("+15551234567", RoleUser)
	require.NoError(t, err)

	_, err = NewTokenManager("wrong-secret", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Garbage(t *testing.T) {
	t.Parallel()

	_, err := NewTokenManager("secret", time.Hour).Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
