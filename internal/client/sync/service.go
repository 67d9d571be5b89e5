package sync

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/iudanet/packsync/internal/client/transport"
	"github.com/iudanet/packsync/internal/models"
	"github.com/iudanet/packsync/pkg/api"
)

// ErrInvalidOperation is returned by RecordOperation for malformed mutations.
var ErrInvalidOperation = errors.New("invalid operation")

// ErrNoSnapshotSource is returned by Hydrate when the engine has no snapshot source.
var ErrNoSnapshotSource = errors.New("snapshot source not configured")

//go:generate moq -out service_mock.go . Service

// Service определяет интерфейс движка синхронизации для UI и CLI
type Service interface {
	// RecordOperation durably enqueues a local mutation and triggers a background sync when online
	RecordOperation(ctx context.Context, kind models.OperationKind, entityType models.EntityType, entityID *int64, payload json.RawMessage, listID int64) (int64, error)

	// AttemptSync runs one replay pass over all unsynced operations
	AttemptSync(ctx context.Context) SyncResult

	// ForceSync is AttemptSync on user request
	ForceSync(ctx context.Context) SyncResult

	// HandleRemoteUpdate applies a server-confirmed change to the cache
	HandleRemoteUpdate(ctx context.Context, msg *api.UpdateMessage) error

	// Hydrate replaces stale cache entries of a list with the server snapshot
	Hydrate(ctx context.Context, listID int64) (int, error)

	// PendingCount returns the number of unsynced operations (storage.AllLists for all)
	PendingCount(ctx context.Context, listID int64) int

	// LastSyncTime returns the end of the last pass, zero if none ran
	LastSyncTime() time.Time
}

//go:generate moq -out transport_mock.go . Transport

// Transport is the part of the realtime connection used by the engine.
type Transport interface {
	Send(msg any) bool
	IsJoined(listID int64) bool
	Subscribe(typ api.MessageType, h transport.Handler) func()
}

// Network reports device connectivity.
type Network interface {
	IsOnline() bool
	OnOnline(f func()) func()
}

//go:generate moq -out invalidator_mock.go . Invalidator

// Invalidator drops dependent query results.
type Invalidator interface {
	Invalidate(listID int64, types ...models.EntityType)
}

// SnapshotSource fetches the authoritative state of a list.
type SnapshotSource interface {
	Snapshot(ctx context.Context, listID int64) (*api.SnapshotResponse, error)
}

// Store is the local persistence used by the engine.
type Store interface {
	EnqueueOperation(ctx context.Context, kind models.OperationKind, entityType models.EntityType, entityID *int64, payload json.RawMessage, listID int64) (*models.PendingOperation, error)
	ListUnsyncedOperations(ctx context.Context, listID int64) []*models.PendingOperation
	MarkSynced(ctx context.Context, id int64) error
	CountPending(ctx context.Context, listID int64) int
	PutEntity(ctx context.Context, entity *models.CachedEntity) error
	GetEntity(ctx context.Context, entityType models.EntityType, id int64) *models.CachedEntity
	DeleteEntity(ctx context.Context, entityType models.EntityType, id int64) error
	LastSyncTimestamp(ctx context.Context) int64
	SaveLastSyncTimestamp(ctx context.Context, ts int64) error
	DeviceID(ctx context.Context) (string, error)
}

// SkipReason объясняет, почему проход не выполнялся
type SkipReason string

const (
	SkipNone       SkipReason = ""
	SkipOffline    SkipReason = "offline"
	SkipInProgress SkipReason = "in_progress"
	SkipDestroyed  SkipReason = "destroyed"
)

// SyncResult contains replay pass results
type SyncResult struct {
	Skipped      SkipReason // причина пропуска прохода
	ListsSkipped []int64    // списки без активного join
	Sent         int        // доставлено и отмечено synced
	Queued       int        // ушло в очередь транспорта, осталось unsynced
	Failed       int        // ошибки сборки или отметки, список остановлен
}

// Ran reports whether the pass actually executed.
func (r SyncResult) Ran() bool {
	return r.Skipped == SkipNone
}
