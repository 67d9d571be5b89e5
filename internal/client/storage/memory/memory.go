// Package memory implements the client storage contracts in process memory.
// It is used when the durable store cannot be opened; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/iudanet/packsync/internal/client/storage"
	"github.com/iudanet/packsync/internal/models"
)

// Storage is an in-memory storage.Backend
type Storage struct {
	ops      map[int64]*models.PendingOperation
	entities map[string]*models.CachedEntity
	auth     *storage.AuthData
	deviceID string
	lastSync int64
	nextID   int64
	closed   bool
	mu       sync.RWMutex
}

var _ storage.Backend = (*Storage)(nil)

// New creates an empty in-memory storage
func New() *Storage {
	return &Storage{
		ops:      make(map[int64]*models.PendingOperation),
		entities: make(map[string]*models.CachedEntity),
	}
}

// Close marks the storage closed; subsequent calls fail with ErrStorageClosed
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// EnqueueOperation appends an operation
func (s *Storage) EnqueueOperation(ctx context.Context, op *models.PendingOperation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, storage.ErrStorageClosed
	}

	s.nextID++
	stored := op.Clone()
	stored.ID = s.nextID
	stored.Synced = false
	stored.SyncedAt = 0
	s.ops[stored.ID] = stored
	return stored.ID, nil
}

// GetOperation retrieves an operation by id
func (s *Storage) GetOperation(ctx context.Context, id int64) (*models.PendingOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}

	op, ok := s.ops[id]
	if !ok {
		return nil, storage.ErrOperationNotFound
	}
	return op.Clone(), nil
}

// ListUnsyncedOperations returns unsynced operations ordered by timestamp, then id
func (s *Storage) ListUnsyncedOperations(ctx context.Context, listID int64) ([]*models.PendingOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}

	result := make([]*models.PendingOperation, 0)
	for _, op := range s.ops {
		if op.Synced || (listID != storage.AllLists && op.ListID != listID) {
			continue
		}
		result = append(result, op.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp == result[j].Timestamp {
			return result[i].ID < result[j].ID
		}
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}

// MarkSynced flips the synced flag. Idempotent
func (s *Storage) MarkSynced(ctx context.Context, id int64, syncedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}

	op, ok := s.ops[id]
	if !ok {
		return storage.ErrOperationNotFound
	}
	if !op.Synced {
		op.Synced = true
		op.SyncedAt = syncedAt
	}
	return nil
}

// CountPending counts unsynced operations
func (s *Storage) CountPending(ctx context.Context, listID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, storage.ErrStorageClosed
	}

	count := 0
	for _, op := range s.ops {
		if !op.Synced && (listID == storage.AllLists || op.ListID == listID) {
			count++
		}
	}
	return count, nil
}

// PruneSynced removes synced operations older than before
func (s *Storage) PruneSynced(ctx context.Context, before int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, storage.ErrStorageClosed
	}

	removed := 0
	for id, op := range s.ops {
		if op.Synced && op.SyncedAt < before {
			delete(s.ops, id)
			removed++
		}
	}
	return removed, nil
}

// PutEntity upserts an entity snapshot
func (s *Storage) PutEntity(ctx context.Context, entity *models.CachedEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}

	stored := entity.Clone()
	stored.Key = models.EntityKey(stored.EntityType, stored.ID)
	s.entities[stored.Key] = stored
	return nil
}

// GetEntity retrieves an entity snapshot
func (s *Storage) GetEntity(ctx context.Context, entityType models.EntityType, id int64) (*models.CachedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}

	e, ok := s.entities[models.EntityKey(entityType, id)]
	if !ok {
		return nil, storage.ErrEntityNotFound
	}
	return e.Clone(), nil
}

// GetAllEntities returns entities of a type within a list ordered by id
func (s *Storage) GetAllEntities(ctx context.Context, entityType models.EntityType, listID int64) ([]*models.CachedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}

	result := make([]*models.CachedEntity, 0)
	for _, e := range s.entities {
		if e.EntityType == entityType && e.ListID == listID {
			result = append(result, e.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// DeleteEntity removes an entity snapshot
func (s *Storage) DeleteEntity(ctx context.Context, entityType models.EntityType, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}

	delete(s.entities, models.EntityKey(entityType, id))
	return nil
}

// ClearList drops cached entities of a list or of all lists
func (s *Storage) ClearList(ctx context.Context, listID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}

	for key, e := range s.entities {
		if listID == storage.AllLists || e.ListID == listID {
			delete(s.entities, key)
		}
	}
	return nil
}

// SaveLastSyncTimestamp stores the last sync pass time
func (s *Storage) SaveLastSyncTimestamp(ctx context.Context, timestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	s.lastSync = timestamp
	return nil
}

// GetLastSyncTimestamp returns the last sync pass time or 0
func (s *Storage) GetLastSyncTimestamp(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, storage.ErrStorageClosed
	}
	return s.lastSync, nil
}

// GetDeviceID returns a device id stable for the lifetime of this storage
func (s *Storage) GetDeviceID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", storage.ErrStorageClosed
	}
	if s.deviceID == "" {
		s.deviceID = uuid.NewString()
	}
	return s.deviceID, nil
}

// SaveAuth stores session data
func (s *Storage) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	a := *auth
	s.auth = &a
	return nil
}

// GetAuth returns session data
func (s *Storage) GetAuth(ctx context.Context) (*storage.AuthData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}
	if s.auth == nil {
		return nil, storage.ErrAuthNotFound
	}
	a := *s.auth
	return &a, nil
}

// DeleteAuth removes session data
func (s *Storage) DeleteAuth(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	if s.auth == nil {
		return storage.ErrAuthNotFound
	}
	s.auth = nil
	return nil
}
