// Package localstore wraps a storage.Backend with lazy initialization,
// monotonic operation timestamps and the client's failure policy:
// reads degrade to empty results, writes report errors.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iudanet/packsync/internal/client/storage"
	"github.com/iudanet/packsync/internal/client/storage/memory"
	"github.com/iudanet/packsync/internal/clock"
	"github.com/iudanet/packsync/internal/models"
)

// ErrInvalidOperation is returned when an operation has an unknown kind or entity type.
var ErrInvalidOperation = errors.New("invalid operation")

// Opener opens the durable backend.
type Opener func(ctx context.Context) (storage.Backend, error)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the timestamp source for new operations.
func WithClock(c *clock.Monotonic) Option {
	return func(s *Store) { s.clock = c }
}

// WithNow sets the wall clock used for SyncedAt stamps.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the local persistence used by the sync engine, the data service and the CLI.
type Store struct {
	open    Opener
	logger  *slog.Logger
	clock   *clock.Monotonic
	now     func() time.Time
	backend storage.Backend
	initErr error
	group   singleflight.Group
	mu      sync.RWMutex
}

// New creates a store. Nothing is opened until first use.
func New(open Opener, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		open:   open,
		logger: logger,
		clock:  clock.NewMonotonic(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize opens the backend once; concurrent callers share one attempt.
// If the durable backend cannot be opened the store switches to memory and
// returns an error wrapping storage.ErrStorageUnavailable. Repeated calls
// return the same result.
func (s *Store) Initialize(ctx context.Context) error {
	_, err := s.ensure(ctx)
	return err
}

// Degraded reports whether the store runs on the in-memory fallback.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initErr != nil
}

func (s *Store) ensure(ctx context.Context) (storage.Backend, error) {
	s.mu.RLock()
	b, initErr := s.backend, s.initErr
	s.mu.RUnlock()
	if b != nil {
		return b, initErr
	}

	_, _, _ = s.group.Do("init", func() (any, error) {
		s.mu.RLock()
		ready := s.backend != nil
		s.mu.RUnlock()
		if ready {
			return nil, nil
		}

		backend, err := s.open(ctx)
		if err != nil {
			s.logger.Warn("Durable storage unavailable, falling back to memory", "error", err)
			backend = memory.New()
			if !errors.Is(err, storage.ErrStorageUnavailable) {
				err = fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
			}
		}

		// Новые операции должны идти после уже сохраненных
		if ops, lerr := backend.ListUnsyncedOperations(ctx, storage.AllLists); lerr == nil {
			for _, op := range ops {
				s.clock.Observe(op.Timestamp)
			}
		}

		s.mu.Lock()
		s.backend = backend
		s.initErr = err
		s.mu.Unlock()
		return nil, nil
	})

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend, s.initErr
}

// get возвращает backend, игнорируя ошибку деградации
func (s *Store) get(ctx context.Context) storage.Backend {
	b, _ := s.ensure(ctx)
	return b
}

// Close closes the backend. A later call reopens it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	s.initErr = nil
	return err
}

// EnqueueOperation records a local mutation with a fresh monotonic timestamp.
func (s *Store) EnqueueOperation(
	ctx context.Context,
	kind models.OperationKind,
	entityType models.EntityType,
	entityID *int64,
	payload json.RawMessage,
	listID int64,
) (*models.PendingOperation, error) {
	if !kind.Valid() || !entityType.Valid() {
		return nil, fmt.Errorf("%w: %s %s", ErrInvalidOperation, kind, entityType)
	}

	op := &models.PendingOperation{
		Kind:       kind,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    payload,
		ListID:     listID,
		Synced:     false,
	}

	b := s.get(ctx)
	op.Timestamp = s.clock.Now()

	id, err := b.EnqueueOperation(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue operation: %w", err)
	}
	op.ID = id
	return op, nil
}

// ListUnsyncedOperations returns pending operations in replay order, or none on failure.
func (s *Store) ListUnsyncedOperations(ctx context.Context, listID int64) []*models.PendingOperation {
	ops, err := s.get(ctx).ListUnsyncedOperations(ctx, listID)
	if err != nil {
		s.logger.Error("Failed to list unsynced operations", "list_id", listID, "error", err)
		return nil
	}
	return ops
}

// MarkSynced flags an operation as delivered.
func (s *Store) MarkSynced(ctx context.Context, id int64) error {
	if err := s.get(ctx).MarkSynced(ctx, id, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to mark operation %d synced: %w", id, err)
	}
	return nil
}

// CountPending returns the number of pending operations, or 0 on failure.
func (s *Store) CountPending(ctx context.Context, listID int64) int {
	n, err := s.get(ctx).CountPending(ctx, listID)
	if err != nil {
		s.logger.Error("Failed to count pending operations", "list_id", listID, "error", err)
		return 0
	}
	return n
}

// PruneSynced deletes synced operations older than before.
func (s *Store) PruneSynced(ctx context.Context, before time.Time) (int, error) {
	n, err := s.get(ctx).PruneSynced(ctx, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune synced operations: %w", err)
	}
	return n, nil
}

// PutEntity upserts a cached snapshot.
func (s *Store) PutEntity(ctx context.Context, entity *models.CachedEntity) error {
	if entity.LastModified == 0 {
		entity.LastModified = s.now().UnixMilli()
	}
	if err := s.get(ctx).PutEntity(ctx, entity); err != nil {
		return fmt.Errorf("failed to cache entity %s: %w", models.EntityKey(entity.EntityType, entity.ID), err)
	}
	return nil
}

// GetEntity returns a cached snapshot, or nil when absent or on failure.
func (s *Store) GetEntity(ctx context.Context, entityType models.EntityType, id int64) *models.CachedEntity {
	e, err := s.get(ctx).GetEntity(ctx, entityType, id)
	if err != nil {
		if !errors.Is(err, storage.ErrEntityNotFound) {
			s.logger.Error("Failed to read cached entity", "entity", entityType, "id", id, "error", err)
		}
		return nil
	}
	return e
}

// GetAllEntities returns cached snapshots of one type in a list, or none on failure.
func (s *Store) GetAllEntities(ctx context.Context, entityType models.EntityType, listID int64) []*models.CachedEntity {
	es, err := s.get(ctx).GetAllEntities(ctx, entityType, listID)
	if err != nil {
		s.logger.Error("Failed to read cached entities", "entity", entityType, "list_id", listID, "error", err)
		return nil
	}
	return es
}

// DeleteEntity removes a cached snapshot.
func (s *Store) DeleteEntity(ctx context.Context, entityType models.EntityType, id int64) error {
	if err := s.get(ctx).DeleteEntity(ctx, entityType, id); err != nil {
		return fmt.Errorf("failed to delete cached entity: %w", err)
	}
	return nil
}

// ClearList drops the cached entities of a list (storage.AllLists for all).
func (s *Store) ClearList(ctx context.Context, listID int64) error {
	if err := s.get(ctx).ClearList(ctx, listID); err != nil {
		return fmt.Errorf("failed to clear cached list %d: %w", listID, err)
	}
	return nil
}

// LastSyncTimestamp returns the persisted last sync time, or 0 on failure.
func (s *Store) LastSyncTimestamp(ctx context.Context) int64 {
	ts, err := s.get(ctx).GetLastSyncTimestamp(ctx)
	if err != nil {
		s.logger.Error("Failed to read last sync timestamp", "error", err)
		return 0
	}
	return ts
}

// SaveLastSyncTimestamp persists the last sync time.
func (s *Store) SaveLastSyncTimestamp(ctx context.Context, ts int64) error {
	if err := s.get(ctx).SaveLastSyncTimestamp(ctx, ts); err != nil {
		return fmt.Errorf("failed to save last sync timestamp: %w", err)
	}
	return nil
}

// DeviceID returns the persistent device identifier.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	return s.get(ctx).GetDeviceID(ctx)
}

// SaveAuth stores the CLI session.
func (s *Store) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	return s.get(ctx).SaveAuth(ctx, auth)
}

// GetAuth returns the CLI session or storage.ErrAuthNotFound.
func (s *Store) GetAuth(ctx context.Context) (*storage.AuthData, error) {
	return s.get(ctx).GetAuth(ctx)
}

// DeleteAuth removes the CLI session.
func (s *Store) DeleteAuth(ctx context.Context) error {
	return s.get(ctx).DeleteAuth(ctx)
}
