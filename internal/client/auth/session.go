// Package auth manages the CLI session: the hub access token, the server it
// was issued for and the user id it carries.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/packsync/internal/client/storage"
)

var (
	// ErrNotAuthenticated indicates that no session is stored
	ErrNotAuthenticated = errors.New("not authenticated, run 'packsync login' first")

	// ErrTokenExpired indicates that the stored token is past its expiry
	ErrTokenExpired = errors.New("access token expired, run 'packsync login' again")

	// ErrInvalidToken indicates a token without a usable user id
	ErrInvalidToken = errors.New("invalid access token")
)

// Claims поля токена, нужные клиенту. Подпись проверяет только хаб.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// ParseToken reads the claims of an access token without verifying its signature.
func ParseToken(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	return claims, nil
}

// Session stores and checks the CLI session.
type Session struct {
	store storage.AuthStorage
	now   func() time.Time
}

// NewSession creates a session manager over store.
func NewSession(store storage.AuthStorage) *Session {
	return &Session{store: store, now: time.Now}
}

// Login parses token and saves it together with serverURL.
func (s *Session) Login(ctx context.Context, serverURL, token string) (*storage.AuthData, error) {
	claims, err := ParseToken(token)
	if err != nil {
		return nil, err
	}
	if expired(claims, s.now()) {
		return nil, ErrTokenExpired
	}

	data := &storage.AuthData{
		AccessToken: strings.TrimSpace(token),
		ServerURL:   serverURL,
		UserID:      claims.UserID,
		SavedAt:     s.now().Unix(),
	}
	if err := s.store.SaveAuth(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return data, nil
}

// Current returns the stored session.
// Returns ErrNotAuthenticated or ErrTokenExpired.
func (s *Session) Current(ctx context.Context) (*storage.AuthData, error) {
	data, err := s.store.GetAuth(ctx)
	if errors.Is(err, storage.ErrAuthNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	claims, err := ParseToken(data.AccessToken)
	if err != nil {
		return nil, err
	}
	if expired(claims, s.now()) {
		return data, ErrTokenExpired
	}
	return data, nil
}

// ExpiresAt returns the token expiry of the stored session, zero if it has none.
func (s *Session) ExpiresAt(ctx context.Context) (time.Time, error) {
	data, err := s.Current(ctx)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return time.Time{}, err
	}
	claims, perr := ParseToken(data.AccessToken)
	if perr != nil || claims.ExpiresAt == nil {
		return time.Time{}, perr
	}
	return claims.ExpiresAt.Time, err
}

// Logout removes the stored session. Локальные операции и кэш остаются.
func (s *Session) Logout(ctx context.Context) error {
	err := s.store.DeleteAuth(ctx)
	if errors.Is(err, storage.ErrAuthNotFound) {
		return ErrNotAuthenticated
	}
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func expired(c *Claims, now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(c.ExpiresAt.Time)
}
