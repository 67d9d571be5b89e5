package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/packsync/internal/client/storage"
)

// authKey единственная сессия CLI
var authKey = []byte("session")

// SaveAuth replaces the stored session
func (s *Storage) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	if auth == nil {
		return fmt.Errorf("auth data is nil")
	}
	data, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return s.update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketAuth)
		if err != nil {
			return err
		}
		return b.Put(authKey, data)
	})
}

// GetAuth returns the stored session or storage.ErrAuthNotFound
func (s *Storage) GetAuth(ctx context.Context) (*storage.AuthData, error) {
	var auth storage.AuthData

	err := s.view(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketAuth)
		if err != nil {
			return err
		}
		raw := b.Get(authKey)
		if raw == nil {
			return storage.ErrAuthNotFound
		}
		return json.Unmarshal(raw, &auth)
	})
	if err != nil {
		return nil, err
	}
	return &auth, nil
}

// DeleteAuth removes the session (logout)
func (s *Storage) DeleteAuth(ctx context.Context) error {
	return s.update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketAuth)
		if err != nil {
			return err
		}
		if b.Get(authKey) == nil {
			return storage.ErrAuthNotFound
		}
		return b.Delete(authKey)
	})
}
