package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestVerificationTokens(t *testing.T) {
	clock := &fakeClock{t: time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)}
	tokens := NewVerificationTokens("secret", clock.Now, 24*time.Hour)

	token, err := tokens.Generate("alice")
	require.NoError(t, err)

	clock.t = clock.t.Add(23 * time.Hour)
	username, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	other := NewVerificationTokens("other-secret", clock.Now, 24*time.Hour)
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	clock.t = clock.t.Add(2 * time.Hour)
	_, err = tokens.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = tokens.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerificationTokens_RejectsSessionToken(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour, time.Hour)
	access, err := tm.GenerateAccessToken(1, false)
	require.NoError(t, err)

	_, err = NewVerificationTokens("secret", nil, 0).Verify(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	tm := NewTokenManager("secret", time.Hour, 7*24*time.Hour).WithClock(clock.Now)

	pair, err := tm.GeneratePair(42, true)
	require.NoError(t, err)

	claims, err := tm.ValidateToken(pair.Access, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.True(t, claims.IsStaff)
	assert.Equal(t, "42", claims.Subject)

	_, err = tm.ValidateToken(pair.Refresh, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	refresh, err := tm.ValidateToken(pair.Refresh, TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, int64(42), refresh.UserID)

	clock.t = clock.t.Add(2 * time.Hour)
	_, err = tm.ValidateToken(pair.Access, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrExpiredToken)
	_, err = tm.ValidateToken(pair.Refresh, TokenTypeRefresh)
	assert.NoError(t, err)

	_, err = NewTokenManager("other", time.Hour, time.Hour).ValidateToken(pair.Refresh, TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)
	assert.True(t, CheckPassword(hash, "s3cret!"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("not-a-hash", "s3cret!"))
}
