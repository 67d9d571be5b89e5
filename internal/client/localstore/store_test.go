package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/packsync/internal/client/storage"
	"github.com/iudanet/packsync/internal/client/storage/boltdb"
	"github.com/iudanet/packsync/internal/client/storage/memory"
	"github.com/iudanet/packsync/internal/clock"
	"github.com/iudanet/packsync/internal/models"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fixedNow(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func memoryOpener() Opener {
	return func(ctx context.Context) (storage.Backend, error) {
		return memory.New(), nil
	}
}

func boltOpener(path string) Opener {
	return func(ctx context.Context) (storage.Backend, error) {
		return boltdb.New(ctx, path)
	}
}

var errDisk = errors.New("disk on fire")

// brokenBackend проваливает каждый вызов
type brokenBackend struct {
	*memory.Storage
}

func (brokenBackend) ListUnsyncedOperations(context.Context, int64) ([]*models.PendingOperation, error) {
	return nil, errDisk
}
func (brokenBackend) CountPending(context.Context, int64) (int, error) { return 0, errDisk }
func (brokenBackend) GetEntity(context.Context, models.EntityType, int64) (*models.CachedEntity, error) {
	return nil, errDisk
}
func (brokenBackend) GetAllEntities(context.Context, models.EntityType, int64) ([]*models.CachedEntity, error) {
	return nil, errDisk
}
func (brokenBackend) GetLastSyncTimestamp(context.Context) (int64, error) { return 0, errDisk }
func (brokenBackend) EnqueueOperation(context.Context, *models.PendingOperation) (int64, error) {
	return 0, errDisk
}
func (brokenBackend) MarkSynced(context.Context, int64, int64) error { return errDisk }
func (brokenBackend) PutEntity(context.Context, *models.CachedEntity) error { return errDisk }
func (brokenBackend) DeleteEntity(context.Context, models.EntityType, int64) error { return errDisk }
func (brokenBackend) ClearList(context.Context, int64) error { return errDisk }
func (brokenBackend) PruneSynced(context.Context, int64) (int, error) { return 0, errDisk }
func (brokenBackend) SaveLastSyncTimestamp(context.Context, int64) error { return errDisk }

func TestInitialize_ConcurrentCallersShareOneOpen(t *testing.T) {
	var opens atomic.Int32
	release := make(chan struct{})

	s := New(func(ctx context.Context) (storage.Backend, error) {
		opens.Add(1)
		<-release
		return memory.New(), nil
	}, setupTestLogger())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Initialize(context.Background())
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
	for _, err := range errs {
		assert.NoError(t, err)
	}

	// Повторный вызов ничего не открывает
	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, int32(1), opens.Load())
	assert.False(t, s.Degraded())
}

func TestInitialize_FallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	s := New(func(ctx context.Context) (storage.Backend, error) {
		return nil, errDisk
	}, setupTestLogger())

	err := s.Initialize(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrStorageUnavailable)
	assert.ErrorIs(t, err, errDisk)
	assert.True(t, s.Degraded())

	// Повторный вызов возвращает тот же результат
	assert.ErrorIs(t, s.Initialize(ctx), storage.ErrStorageUnavailable)

	// Работа продолжается из памяти
	op, err := s.EnqueueOperation(ctx, models.OperationCreate, models.EntityItem, nil, json.RawMessage(`{}`), 1)
	require.NoError(t, err)
	assert.NotZero(t, op.ID)
	assert.Equal(t, 1, s.CountPending(ctx, 1))
}

func TestInitialize_LazyOnFirstUse(t *testing.T) {
	var opens atomic.Int32
	s := New(func(ctx context.Context) (storage.Backend, error) {
		opens.Add(1)
		return memory.New(), nil
	}, setupTestLogger())

	assert.Equal(t, int32(0), opens.Load())
	assert.Equal(t, 0, s.CountPending(context.Background(), storage.AllLists))
	assert.Equal(t, int32(1), opens.Load())
}

func TestEnqueueOperation(t *testing.T) {
	ctx := context.Background()
	s := New(memoryOpener(), setupTestLogger(),
		WithClock(clock.NewMonotonicWithSource(fixedNow(1000))))

	first, err := s.EnqueueOperation(ctx, models.OperationCreate, models.EntityItem, nil, json.RawMessage(`{"name":"a"}`), 1)
	require.NoError(t, err)
	second, err := s.EnqueueOperation(ctx, models.OperationUpdate, models.EntityItem, models.Int64Ptr(5), json.RawMessage(`{"name":"b"}`), 1)
	require.NoError(t, err)

	assert.False(t, first.Synced)
	assert.Equal(t, int64(1000), first.Timestamp)
	// Время стоит на месте, но timestamps строго возрастают
	assert.Equal(t, int64(1001), second.Timestamp)
	assert.Greater(t, second.ID, first.ID)

	ops := s.ListUnsyncedOperations(ctx, 1)
	require.Len(t, ops, 2)
	assert.Equal(t, first.ID, ops[0].ID)
	assert.Equal(t, second.ID, ops[1].ID)
}

func TestEnqueueOperation_Invalid(t *testing.T) {
	s := New(memoryOpener(), setupTestLogger())

	_, err := s.EnqueueOperation(context.Background(), "upsert", models.EntityItem, nil, nil, 1)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = s.EnqueueOperation(context.Background(), models.OperationCreate, "suitcase", nil, nil, 1)
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestMarkSynced_StampsTime(t *testing.T) {
	ctx := context.Background()
	s := New(memoryOpener(), setupTestLogger(), WithNow(fixedNow(4242)))

	op, err := s.EnqueueOperation(ctx, models.OperationDelete, models.EntityBag, models.Int64Ptr(3), nil, 2)
	require.NoError(t, err)
	require.NoError(t, s.MarkSynced(ctx, op.ID))

	assert.Empty(t, s.ListUnsyncedOperations(ctx, 2))

	n, err := s.PruneSynced(ctx, time.UnixMilli(4243))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	err = s.MarkSynced(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
}

func TestTimestampsContinueAfterRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "client.db")

	s := New(boltOpener(path), setupTestLogger(),
		WithClock(clock.NewMonotonicWithSource(fixedNow(5000))))
	_, err := s.EnqueueOperation(ctx, models.OperationCreate, models.EntityItem, nil, json.RawMessage(`{}`), 1)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Часы после перезапуска отстают от сохраненных операций
	reopened := New(boltOpener(path), setupTestLogger(),
		WithClock(clock.NewMonotonicWithSource(fixedNow(10))))
	defer func() {
		require.NoError(t, reopened.Close())
	}()

	op, err := reopened.EnqueueOperation(ctx, models.OperationCreate, models.EntityItem, nil, json.RawMessage(`{}`), 1)
	require.NoError(t, err)
	assert.Greater(t, op.Timestamp, int64(5000))

	ops := reopened.ListUnsyncedOperations(ctx, 1)
	require.Len(t, ops, 2)
	assert.Equal(t, op.ID, ops[1].ID)
}

func TestFailurePolicy(t *testing.T) {
	ctx := context.Background()
	s := New(func(ctx context.Context) (storage.Backend, error) {
		return brokenBackend{memory.New()}, nil
	}, setupTestLogger())

	t.Run("reads degrade to empty", func(t *testing.T) {
		assert.Empty(t, s.ListUnsyncedOperations(ctx, storage.AllLists))
		assert.Equal(t, 0, s.CountPending(ctx, 1))
		assert.Nil(t, s.GetEntity(ctx, models.EntityItem, 1))
		assert.Empty(t, s.GetAllEntities(ctx, models.EntityItem, 1))
		assert.Equal(t, int64(0), s.LastSyncTimestamp(ctx))
	})

	t.Run("writes propagate errors", func(t *testing.T) {
		_, err := s.EnqueueOperation(ctx, models.OperationCreate, models.EntityItem, nil, nil, 1)
		assert.ErrorIs(t, err, errDisk)
		assert.ErrorIs(t, s.MarkSynced(ctx, 1), errDisk)
		assert.ErrorIs(t, s.PutEntity(ctx, &models.CachedEntity{EntityType: models.EntityItem, ID: 1}), errDisk)
		assert.ErrorIs(t, s.DeleteEntity(ctx, models.EntityItem, 1), errDisk)
		assert.ErrorIs(t, s.ClearList(ctx, 1), errDisk)
		assert.ErrorIs(t, s.SaveLastSyncTimestamp(ctx, 1), errDisk)
		_, err = s.PruneSynced(ctx, time.Now())
		assert.ErrorIs(t, err, errDisk)
	})
}

func TestEntitiesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(memoryOpener(), setupTestLogger(), WithNow(fixedNow(777)))

	e := &models.CachedEntity{EntityType: models.EntityCategory, ID: 4, ListID: 1, Version: 2, Data: json.RawMessage(`{"name":"Clothes"}`)}
	require.NoError(t, s.PutEntity(ctx, e))

	got := s.GetEntity(ctx, models.EntityCategory, 4)
	require.NotNil(t, got)
	assert.Equal(t, int64(777), got.LastModified)
	assert.Len(t, s.GetAllEntities(ctx, models.EntityCategory, 1), 1)

	require.NoError(t, s.ClearList(ctx, 1))
	assert.Nil(t, s.GetEntity(ctx, models.EntityCategory, 4))
}
