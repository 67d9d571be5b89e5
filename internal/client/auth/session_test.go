package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/packsync/internal/client/storage/memory"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func makeToken(t *testing.T, userID int64, exp time.Time) string {
	t.Helper()

	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "packsync",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-secret-the-client-never-sees"))
	require.NoError(t, err)
	return token
}

func newTestSession() *Session {
	s := NewSession(memory.New())
	s.now = func() time.Time { return testNow }
	return s
}

func TestParseToken(t *testing.T) {
	claims, err := ParseToken(" " + makeToken(t, 7, testNow.Add(time.Hour)) + "\n")
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "packsync", claims.Issuer)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: "  "},
		{name: "garbage", token: "not-a-jwt"},
		{name: "no user", token: makeToken(t, 0, testNow.Add(time.Hour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestSession_LoginAndCurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestSession()

	_, err := s.Current(ctx)
	require.ErrorIs(t, err, ErrNotAuthenticated)

	token := makeToken(t, 3, testNow.Add(24*time.Hour))
	data, err := s.Login(ctx, "http://hub.local:8080", token)
	require.NoError(t, err)
	assert.Equal(t, int64(3), data.UserID)
	assert.Equal(t, testNow.Unix(), data.SavedAt)

	current, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, current.AccessToken)
	assert.Equal(t, "http://hub.local:8080", current.ServerURL)

	exp, err := s.ExpiresAt(ctx)
	require.NoError(t, err)
	assert.True(t, exp.Equal(testNow.Add(24*time.Hour)))
}

func TestSession_Login_Rejects(t *testing.T) {
	ctx := context.Background()
	s := newTestSession()

	_, err := s.Login(ctx, "http://hub", makeToken(t, 3, testNow.Add(-time.Minute)))
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = s.Login(ctx, "http://hub", "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Current(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestSession_CurrentExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestSession()

	_, err := s.Login(ctx, "http://hub", makeToken(t, 3, testNow.Add(time.Hour)))
	require.NoError(t, err)

	s.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	data, err := s.Current(ctx)
	assert.ErrorIs(t, err, ErrTokenExpired)
	require.NotNil(t, data)
	assert.Equal(t, int64(3), data.UserID)
}

func TestSession_Logout(t *testing.T) {
	ctx := context.Background()
	s := newTestSession()

	assert.ErrorIs(t, s.Logout(ctx), ErrNotAuthenticated)

	_, err := s.Login(ctx, "http://hub", makeToken(t, 3, testNow.Add(time.Hour)))
	require.NoError(t, err)
	require.NoError(t, s.Logout(ctx))

	_, err = s.Current(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
