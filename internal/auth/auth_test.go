package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/config"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:   "test-secret-not-for-production",
		TokenExpiry: time.Hour,
		Issuer:      "ripple",
	})
	require.NoError(t, err)
	return m
}

func TestManagerRequiresSecret(t *testing.T) {
	_, err := NewManager(config.AuthConfig{})
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	m := testManager(t)

	token, err := m.IssueToken("user-1", "alice@example.com")
	require.NoError(t, err)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m := testManager(t)
	other, err := NewManager(config.AuthConfig{JWTSecret: "different-secret", Issuer: "ripple"})
	require.NoError(t, err)

	token, err := other.IssueToken("user-1", "alice@example.com")
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:   "test-secret-not-for-production",
		TokenExpiry: -time.Hour,
		Issuer:      "ripple",
	})
	require.NoError(t, err)
	// Negative expiry falls back to the default, so force it.
	m.expiry = -time.Hour

	token, err := m.IssueToken("user-1", "alice@example.com")
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := testManager(t)
	_, err := m.VerifyToken("not-a-token")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, CheckPassword(hash, "correct horse battery staple"))
	assert.False(t, CheckPassword(hash, "wrong password"))
}

func TestPasswordMinLength(t *testing.T) {
	_, err := HashPassword("short")
	assert.Error(t, err)
}
