package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/packsync/internal/client/storage"
	"github.com/iudanet/packsync/internal/models"
)

func TestOperations(t *testing.T) {
	ctx := context.Background()
	s := New()

	payload := json.RawMessage(`{"name":"Tent"}`)
	late, err := s.EnqueueOperation(ctx, &models.PendingOperation{Kind: models.OperationCreate, EntityType: models.EntityItem, ListID: 1, Timestamp: 200, Payload: payload})
	require.NoError(t, err)
	early, err := s.EnqueueOperation(ctx, &models.PendingOperation{Kind: models.OperationCreate, EntityType: models.EntityItem, ListID: 1, Timestamp: 100, Payload: payload})
	require.NoError(t, err)
	_, err = s.EnqueueOperation(ctx, &models.PendingOperation{Kind: models.OperationDelete, EntityType: models.EntityBag, ListID: 2, Timestamp: 150})
	require.NoError(t, err)

	ops, err := s.ListUnsyncedOperations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, early, ops[0].ID)
	assert.Equal(t, late, ops[1].ID)

	all, err := s.ListUnsyncedOperations(ctx, storage.AllLists)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Возвращаются копии
	ops[0].Synced = true
	count, err := s.CountPending(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.MarkSynced(ctx, early, 10))
	require.NoError(t, s.MarkSynced(ctx, early, 20))
	op, err := s.GetOperation(ctx, early)
	require.NoError(t, err)
	assert.Equal(t, int64(10), op.SyncedAt)

	assert.ErrorIs(t, s.MarkSynced(ctx, 99, 1), storage.ErrOperationNotFound)

	removed, err := s.PruneSynced(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	count, err = s.CountPending(ctx, storage.AllLists)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEntities(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.PutEntity(ctx, &models.CachedEntity{EntityType: models.EntityItem, ID: 2, ListID: 1, Version: 1}))
	require.NoError(t, s.PutEntity(ctx, &models.CachedEntity{EntityType: models.EntityItem, ID: 1, ListID: 1, Version: 1}))
	require.NoError(t, s.PutEntity(ctx, &models.CachedEntity{EntityType: models.EntityItem, ID: 3, ListID: 2, Version: 1}))

	items, err := s.GetAllEntities(ctx, models.EntityItem, 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].ID)
	assert.Equal(t, "item:1", items[0].Key)

	require.NoError(t, s.DeleteEntity(ctx, models.EntityItem, 1))
	require.NoError(t, s.DeleteEntity(ctx, models.EntityItem, 1))
	_, err = s.GetEntity(ctx, models.EntityItem, 1)
	assert.ErrorIs(t, err, storage.ErrEntityNotFound)

	require.NoError(t, s.ClearList(ctx, 1))
	_, err = s.GetEntity(ctx, models.EntityItem, 3)
	assert.NoError(t, err)

	require.NoError(t, s.ClearList(ctx, storage.AllLists))
	_, err = s.GetEntity(ctx, models.EntityItem, 3)
	assert.ErrorIs(t, err, storage.ErrEntityNotFound)
}

func TestMetadataAndAuth(t *testing.T) {
	ctx := context.Background()
	s := New()

	id1, err := s.GetDeviceID(ctx)
	require.NoError(t, err)
	id2, err := s.GetDeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	require.NoError(t, s.SaveLastSyncTimestamp(ctx, 77))
	ts, err := s.GetLastSyncTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(77), ts)

	_, err = s.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)
	require.NoError(t, s.SaveAuth(ctx, &storage.AuthData{UserID: 3, AccessToken: "t"}))
	a, err := s.GetAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), a.UserID)
	require.NoError(t, s.DeleteAuth(ctx))
	assert.ErrorIs(t, s.DeleteAuth(ctx), storage.ErrAuthNotFound)
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Close())

	_, err := s.EnqueueOperation(ctx, &models.PendingOperation{})
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	_, err = s.GetEntity(ctx, models.EntityItem, 1)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
