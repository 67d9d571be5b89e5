package storage

import (
	"context"
)

// AuthStorage defines interface for storing the CLI session on the client.
type AuthStorage interface {
	// SaveAuth stores session data, replacing any previous session
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth retrieves the stored session
	// Returns ErrAuthNotFound if no session exists
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth removes stored session data (logout)
	DeleteAuth(ctx context.Context) error
}

// AuthData represents the session used to talk to the hub
type AuthData struct {
	AccessToken string `json:"access_token"`
	ServerURL   string `json:"server_url"`
	UserID      int64  `json:"user_id"`
	SavedAt     int64  `json:"saved_at"`
}
