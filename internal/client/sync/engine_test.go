package sync

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

	"github.com/iudanet/packsync/internal/client/localstore"
	"github.com/iudanet/packsync/internal/client/storage"
	"github.com/iudanet/packsync/internal/client/storage/boltdb"
	"github.com/iudanet/packsync/internal/client/storage/memory"
	"github.com/iudanet/packsync/internal/client/transport"
	"github.com/iudanet/packsync/internal/clock/clocktest"
	"github.com/iudanet/packsync/internal/models"
	"github.com/iudanet/packsync/pkg/api"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeNetwork ручное управление онлайном
type fakeNetwork struct {
	listeners []func()
	online    atomic.Bool
	mu        sync.Mutex
}

func (n *fakeNetwork) IsOnline() bool { return n.online.Load() }

func (n *fakeNetwork) OnOnline(f func()) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, f)
	idx := len(n.listeners) - 1
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.listeners[idx] = nil
	}
}

func (n *fakeNetwork) goOnline() {
	n.online.Store(true)
	n.mu.Lock()
	fs := append([]func(){}, n.listeners...)
	n.mu.Unlock()
	for _, f := range fs {
		if f != nil {
			f()
		}
	}
}

type snapshotFunc func(ctx context.Context, listID int64) (*api.SnapshotResponse, error)

func (f snapshotFunc) Snapshot(ctx context.Context, listID int64) (*api.SnapshotResponse, error) {
	return f(ctx, listID)
}

type harness struct {
	engine      *Engine
	store       *localstore.Store
	transport   *TransportMock
	network     *fakeNetwork
	invalidator *InvalidatorMock
	scheduler   *clocktest.Scheduler

	handlers map[api.MessageType][]transport.Handler
	unsubs   atomic.Int32
	sent     []*api.UpdateMessage
	deliver  func(msg *api.UpdateMessage) bool
	mu       sync.Mutex
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	return newHarnessOver(t, opts, func(ctx context.Context) (storage.Backend, error) {
		return memory.New(), nil
	})
}

func newHarnessOver(t *testing.T, opts Options, open localstore.Opener) *harness {
	t.Helper()

	h := &harness{
		network:   &fakeNetwork{},
		scheduler: clocktest.NewScheduler(),
		handlers:  make(map[api.MessageType][]transport.Handler),
	}

	h.store = localstore.New(open, setupTestLogger())
	require.NoError(t, h.store.Initialize(context.Background()))
	t.Cleanup(func() { _ = h.store.Close() })

	h.transport = &TransportMock{
		SendFunc: func(msg any) bool {
			update, ok := msg.(*api.UpdateMessage)
			if !ok {
				return false
			}
			h.mu.Lock()
			deliver := h.deliver
			h.mu.Unlock()
			if deliver != nil && !deliver(update) {
				return false
			}
			h.mu.Lock()
			h.sent = append(h.sent, update)
			h.mu.Unlock()
			return true
		},
		IsJoinedFunc: func(listID int64) bool { return true },
		SubscribeFunc: func(typ api.MessageType, handler transport.Handler) func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.handlers[typ] = append(h.handlers[typ], handler)
			return func() { h.unsubs.Add(1) }
		},
	}
	h.invalidator = &InvalidatorMock{
		InvalidateFunc: func(listID int64, types ...models.EntityType) {},
	}

	h.engine = New(h.store, h.transport, h.network, h.invalidator, h.scheduler, setupTestLogger(), opts)
	t.Cleanup(func() {
		h.engine.Destroy()
		h.engine.Wait()
	})
	return h
}

func (h *harness) sentMessages() []*api.UpdateMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*api.UpdateMessage, len(h.sent))
	copy(out, h.sent)
	return out
}

func (h *harness) emit(t *testing.T, frame string) {
	t.Helper()
	env, err := api.DecodeInbound([]byte(frame))
	require.NoError(t, err)

	h.mu.Lock()
	hs := append([]transport.Handler{}, h.handlers[env.Type]...)
	h.mu.Unlock()
	require.NotEmpty(t, hs, "no handler for %s", env.Type)
	for _, handler := range hs {
		handler(env)
	}
}

func (h *harness) record(t *testing.T, kind models.OperationKind, entityType models.EntityType, id int64, payload string, listID int64) int64 {
	t.Helper()
	var entityID *int64
	if id != 0 {
		entityID = models.Int64Ptr(id)
	}
	opID, err := h.engine.RecordOperation(context.Background(), kind, entityType, entityID, json.RawMessage(payload), listID)
	require.NoError(t, err)
	return opID
}

func TestEngine_OfflineEnqueueThenReconnect(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.engine.Start(ctx)

	opID := h.record(t, models.OperationUpdate, models.EntityItem, 42, `{"packed":true}`, 7)

	assert.Equal(t, 1, h.engine.PendingCount(ctx, 7))
	assert.Empty(t, h.transport.SendCalls(), "nothing is sent while offline")

	h.network.goOnline()
	h.engine.Wait()

	assert.Equal(t, 0, h.engine.PendingCount(ctx, 7))

	sent := h.sentMessages()
	require.Len(t, sent, 1)
	deviceID, err := h.store.DeviceID(ctx)
	require.NoError(t, err)

	msg := sent[0]
	assert.Equal(t, api.MessageTypeUpdate, msg.Type)
	assert.Equal(t, "update", msg.Operation)
	assert.Equal(t, "item", msg.Entity)
	require.NotNil(t, msg.EntityID)
	assert.Equal(t, int64(42), *msg.EntityID)
	assert.Equal(t, int64(7), msg.PackingListID)
	assert.JSONEq(t, `{"packed":true}`, string(msg.Changes))
	assert.Equal(t, OperationID(deviceID, opID), msg.OperationID)
}

func TestEngine_AttemptSync_PreservesOrderPerList(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	h.record(t, models.OperationUpdate, models.EntityItem, 1, `{"n":1}`, 10)
	h.record(t, models.OperationUpdate, models.EntityItem, 2, `{"n":2}`, 20)
	h.record(t, models.OperationUpdate, models.EntityItem, 3, `{"n":3}`, 10)
	h.record(t, models.OperationDelete, models.EntityItem, 4, ``, 20)

	h.network.online.Store(true)
	result := h.engine.AttemptSync(ctx)

	require.True(t, result.Ran())
	assert.Equal(t, 4, result.Sent)
	assert.Zero(t, result.Queued)
	assert.Zero(t, result.Failed)

	var got []int64
	for _, msg := range h.sentMessages() {
		got = append(got, *msg.EntityID)
	}
	assert.Equal(t, []int64{1, 3, 2, 4}, got, "lists in first-appearance order, operations in enqueue order")

	last := h.sentMessages()[3]
	assert.Equal(t, "delete", last.Operation)
	assert.JSONEq(t, `{}`, string(last.Changes), "empty payload goes out as an empty object")

	assert.Zero(t, h.engine.PendingCount(ctx, storage.AllLists))
}

func TestEngine_AttemptSync_HaltsListOnUndelivered(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	h.record(t, models.OperationUpdate, models.EntityItem, 1, `{}`, 10)
	h.record(t, models.OperationUpdate, models.EntityItem, 2, `{}`, 10)
	h.record(t, models.OperationUpdate, models.EntityItem, 3, `{}`, 10)
	h.record(t, models.OperationUpdate, models.EntityItem, 4, `{}`, 20)

	h.deliver = func(msg *api.UpdateMessage) bool { return *msg.EntityID != 2 }
	h.network.online.Store(true)

	result := h.engine.AttemptSync(ctx)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Queued)

	assert.Equal(t, 2, h.engine.PendingCount(ctx, 10), "the undelivered operation and the one after it stay pending")
	assert.Zero(t, h.engine.PendingCount(ctx, 20), "other lists keep going")

	// Item 3 не отправлялся: список остановился на item 2
	for _, c := range h.transport.SendCalls() {
		assert.NotEqual(t, int64(3), *c.Msg.(*api.UpdateMessage).EntityID)
	}

	h.deliver = nil
	result = h.engine.AttemptSync(ctx)
	assert.Equal(t, 2, result.Sent)
	assert.Zero(t, h.engine.PendingCount(ctx, storage.AllLists))
}

// failingMarkBackend отказывает в MarkSynced для одной операции
type failingMarkBackend struct {
	storage.Backend
	fail int64
}

var errDiskFull = errors.New("disk full")

func (b *failingMarkBackend) MarkSynced(ctx context.Context, id int64, syncedAt int64) error {
	if id == b.fail {
		return errDiskFull
	}
	return b.Backend.MarkSynced(ctx, id, syncedAt)
}

func TestEngine_AttemptSync_FailureHaltsOnlyThatList(t *testing.T) {
	backend := &failingMarkBackend{Backend: memory.New()}
	h := newHarnessOver(t, Options{}, func(ctx context.Context) (storage.Backend, error) {
		return backend, nil
	})
	ctx := context.Background()

	h.record(t, models.OperationUpdate, models.EntityItem, 1, `{}`, 10)
	backend.fail = h.record(t, models.OperationUpdate, models.EntityItem, 2, `{}`, 10)
	_, err := h.store.EnqueueOperation(ctx, models.OperationUpdate, models.EntityBag, models.Int64Ptr(9), json.RawMessage(`{broken`), 30)
	require.NoError(t, err)
	h.record(t, models.OperationUpdate, models.EntityItem, 3, `{}`, 10)
	h.record(t, models.OperationUpdate, models.EntityItem, 4, `{}`, 20)

	h.network.online.Store(true)
	result := h.engine.AttemptSync(ctx)

	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 2, result.Failed, "one mark failure and one unbuildable payload")
	assert.Zero(t, result.Queued)

	var got []int64
	for _, msg := range h.sentMessages() {
		got = append(got, *msg.EntityID)
	}
	assert.Equal(t, []int64{1, 2, 4}, got, "item 3 waits behind the operation that failed to mark")

	assert.Equal(t, 2, h.engine.PendingCount(ctx, 10))
	assert.Equal(t, 1, h.engine.PendingCount(ctx, 30))
	assert.Zero(t, h.engine.PendingCount(ctx, 20), "other lists keep going")

	backend.fail = 0
	result = h.engine.AttemptSync(ctx)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, h.engine.PendingCount(ctx, 10))
	assert.Equal(t, 1, h.engine.PendingCount(ctx, 30))
}

func TestEngine_PendingOperationsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "packsync.db")
	open := func(ctx context.Context) (storage.Backend, error) {
		return boltdb.New(ctx, path)
	}

	first := newHarnessOver(t, Options{}, open)
	opID := first.record(t, models.OperationUpdate, models.EntityItem, 42, `{"packed":true}`, 7)
	deviceID, err := first.store.DeviceID(ctx)
	require.NoError(t, err)
	assert.Empty(t, first.transport.SendCalls())

	first.engine.Destroy()
	first.engine.Wait()
	require.NoError(t, first.store.Close())

	second := newHarnessOver(t, Options{}, open)
	assert.Equal(t, 1, second.engine.PendingCount(ctx, 7))

	second.engine.Start(ctx)
	second.network.goOnline()
	second.engine.Wait()

	sent := second.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, OperationID(deviceID, opID), sent[0].OperationID, "device id and op id survive the restart")
	assert.JSONEq(t, `{"packed":true}`, string(sent[0].Changes))
	assert.Zero(t, second.engine.PendingCount(ctx, 7))
}

func TestEngine_AttemptSync_SkipsListsWithoutJoin(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	h.record(t, models.OperationUpdate, models.EntityItem, 1, `{}`, 10)
	h.record(t, models.OperationUpdate, models.EntityItem, 2, `{}`, 20)

	h.transport.IsJoinedFunc = func(listID int64) bool { return listID == 10 }
	h.network.online.Store(true)

	result := h.engine.AttemptSync(ctx)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, []int64{20}, result.ListsSkipped)
	assert.Equal(t, 1, h.engine.PendingCount(ctx, 20))
}

func TestEngine_AttemptSync_SkipReasons(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	result := h.engine.AttemptSync(ctx)
	assert.Equal(t, SkipOffline, result.Skipped)
	assert.False(t, result.Ran())
	assert.True(t, h.engine.LastSyncTime().IsZero(), "skipped pass does not count as a sync")

	h.network.online.Store(true)
	h.engine.Destroy()
	assert.Equal(t, SkipDestroyed, h.engine.AttemptSync(ctx).Skipped)
}

func TestEngine_AttemptSync_NoConcurrentPasses(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	h.record(t, models.OperationUpdate, models.EntityItem, 1, `{}`, 10)
	h.record(t, models.OperationUpdate, models.EntityItem, 2, `{}`, 10)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.deliver = func(*api.UpdateMessage) bool {
		once.Do(func() {
			close(entered)
			<-release
		})
		return true
	}
	h.network.online.Store(true)

	done := make(chan SyncResult, 1)
	go func() { done <- h.engine.AttemptSync(ctx) }()

	<-entered
	second := h.engine.AttemptSync(ctx)
	assert.Equal(t, SkipInProgress, second.Skipped)
	assert.Equal(t, SkipInProgress, h.engine.ForceSync(ctx).Skipped)

	close(release)
	first := <-done
	assert.Equal(t, 2, first.Sent)
	assert.Len(t, h.transport.SendCalls(), 2, "each operation is sent exactly once")

	// После завершения прохода новый проход снова возможен
	assert.True(t, h.engine.AttemptSync(ctx).Ran())
}

func TestEngine_LastSyncTime(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.network.online.Store(true)

	h.engine.AttemptSync(ctx)
	first := h.scheduler.Now()
	assert.Equal(t, first.UnixMilli(), h.engine.LastSyncTime().UnixMilli())

	h.scheduler.Advance(100 * time.Millisecond)
	h.engine.AttemptSync(ctx)
	assert.Equal(t, first.Add(100*time.Millisecond).UnixMilli(), h.engine.LastSyncTime().UnixMilli())
	assert.Equal(t, h.engine.LastSyncTime().UnixMilli(), h.store.LastSyncTimestamp(ctx), "sync time is persisted")

	// Новый движок поверх того же хранилища подхватывает сохраненное значение
	again := New(h.store, h.transport, h.network, h.invalidator, h.scheduler, setupTestLogger(), Options{})
	again.Start(ctx)
	defer again.Destroy()
	assert.Equal(t, h.engine.LastSyncTime(), again.LastSyncTime())
}

func TestEngine_PeriodicTrigger(t *testing.T) {
	h := newHarness(t, Options{PeriodicInterval: 10 * time.Second})
	ctx := context.Background()
	h.engine.Start(ctx)

	h.record(t, models.OperationUpdate, models.EntityItem, 1, `{}`, 10)
	h.network.online.Store(true)

	h.scheduler.Advance(9 * time.Second)
	assert.Empty(t, h.transport.SendCalls())

	h.scheduler.Advance(time.Second)
	assert.Len(t, h.transport.SendCalls(), 1)
	assert.Equal(t, 1, h.scheduler.Pending(), "timer is re-armed after each pass")

	h.record(t, models.OperationUpdate, models.EntityItem, 2, `{}`, 10)
	h.engine.Wait()
	assert.Len(t, h.transport.SendCalls(), 2, "recording while online triggers a pass")
}

func TestEngine_JoinedTriggersSync(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.engine.Start(ctx)

	h.record(t, models.OperationUpdate, models.EntityItem, 1, `{}`, 10)
	h.network.online.Store(true)

	h.emit(t, `{"type":"joined","packingListId":10,"userId":1}`)
	h.engine.Wait()

	assert.Len(t, h.transport.SendCalls(), 1)
	assert.Zero(t, h.engine.PendingCount(ctx, 10))
}

func TestEngine_Destroy(t *testing.T) {
	h := newHarness(t, Options{})
	h.engine.Start(context.Background())

	subscribed := len(h.transport.SubscribeCalls())
	assert.Equal(t, 2+len(api.EntityBroadcastTypes), subscribed)
	assert.Equal(t, 1, h.scheduler.Pending())

	h.engine.Destroy()
	h.engine.Destroy()

	assert.Equal(t, int32(subscribed), h.unsubs.Load(), "every transport subscription is released once")
	assert.Zero(t, h.scheduler.Pending(), "periodic timer is stopped")

	h.record(t, models.OperationUpdate, models.EntityItem, 1, `{}`, 10)
	h.network.goOnline()
	h.engine.Wait()
	assert.Empty(t, h.transport.SendCalls())
	assert.Equal(t, 1, h.engine.PendingCount(context.Background(), 10), "durable state survives destroy")
}

func TestEngine_RecordOperation_Validation(t *testing.T) {
	h := newHarness(t, Options{})
	id := models.Int64Ptr(1)

	tests := []struct {
		entityID   *int64
		name       string
		kind       models.OperationKind
		entityType models.EntityType
		payload    string
		listID     int64
	}{
		{name: "unknown operation", kind: "upsert", entityType: models.EntityItem, entityID: id, listID: 1},
		{name: "unknown entity", kind: models.OperationUpdate, entityType: "suitcase", entityID: id, listID: 1},
		{name: "missing list", kind: models.OperationUpdate, entityType: models.EntityItem, entityID: id},
		{name: "update without entity id", kind: models.OperationUpdate, entityType: models.EntityItem, listID: 1},
		{name: "delete without entity id", kind: models.OperationDelete, entityType: models.EntityItem, listID: 1},
		{name: "invalid JSON", kind: models.OperationCreate, entityType: models.EntityItem, payload: `{"name":`, listID: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.RecordOperation(context.Background(), tt.kind, tt.entityType, tt.entityID, json.RawMessage(tt.payload), tt.listID)
			assert.ErrorIs(t, err, ErrInvalidOperation)
		})
	}

	assert.Zero(t, h.engine.PendingCount(context.Background(), storage.AllLists))
}

func TestEngine_RecordOperation_CreateWithoutID(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	h.record(t, models.OperationCreate, models.EntityItem, 0, `{"name":"Socks"}`, 3)

	assert.Equal(t, 1, h.engine.PendingCount(ctx, 3))
	assert.Empty(t, h.invalidator.InvalidateCalls(), "no cache entry to update without an id")

	h.network.online.Store(true)
	h.engine.AttemptSync(ctx)
	sent := h.sentMessages()
	require.Len(t, sent, 1)
	assert.Nil(t, sent[0].EntityID)
	assert.Equal(t, "create", sent[0].Operation)
}

func TestEngine_RecordOperation_Optimistic(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	require.NoError(t, h.store.PutEntity(ctx, &models.CachedEntity{
		EntityType: models.EntityItem,
		ID:         42,
		ListID:     7,
		Version:    5,
		Data:       json.RawMessage(`{"name":"Socks","packed":false}`),
	}))

	h.record(t, models.OperationUpdate, models.EntityItem, 42, `{"packed":true}`, 7)

	cached := h.store.GetEntity(ctx, models.EntityItem, 42)
	require.NotNil(t, cached)
	assert.JSONEq(t, `{"name":"Socks","packed":true}`, string(cached.Data))
	assert.Equal(t, int64(5), cached.Version, "optimistic writes keep the confirmed version")

	calls := h.invalidator.InvalidateCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, int64(7), calls[0].ListID)
	assert.ElementsMatch(t, models.EntityItem.Dependents(), calls[0].Types)

	// Подтверждение хаба с большей версией применяется поверх
	require.NoError(t, h.engine.HandleRemoteUpdate(ctx, &api.UpdateMessage{
		Operation:     "update",
		Entity:        "item",
		EntityID:      models.Int64Ptr(42),
		Changes:       json.RawMessage(`{"packed":true}`),
		PackingListID: 7,
		Version:       6,
	}))
	cached = h.store.GetEntity(ctx, models.EntityItem, 42)
	require.NotNil(t, cached)
	assert.Equal(t, int64(6), cached.Version)

	h.record(t, models.OperationDelete, models.EntityItem, 42, ``, 7)
	assert.Nil(t, h.store.GetEntity(ctx, models.EntityItem, 42))
}

func TestEngine_HandleRemoteUpdate(t *testing.T) {
	ctx := context.Background()
	cachedItem := func() *models.CachedEntity {
		return &models.CachedEntity{
			EntityType: models.EntityItem,
			ID:         42,
			ListID:     7,
			Version:    3,
			Data:       json.RawMessage(`{"name":"Socks","packed":false}`),
		}
	}

	tests := []struct {
		cached      *models.CachedEntity
		msg         *api.UpdateMessage
		name        string
		wantData    string
		wantVersion int64
		wantDeleted bool
	}{
		{
			name:   "newer update merges changes",
			cached: cachedItem(),
			msg: &api.UpdateMessage{
				Operation: "update", Entity: "item", EntityID: models.Int64Ptr(42),
				Changes: json.RawMessage(`{"packed":true}`), PackingListID: 7, Version: 4,
			},
			wantData:    `{"name":"Socks","packed":true}`,
			wantVersion: 4,
		},
		{
			name:   "stale update is ignored",
			cached: cachedItem(),
			msg: &api.UpdateMessage{
				Operation: "update", Entity: "item", EntityID: models.Int64Ptr(42),
				Changes: json.RawMessage(`{"packed":true}`), PackingListID: 7, Version: 2,
			},
			wantData:    `{"name":"Socks","packed":false}`,
			wantVersion: 3,
		},
		{
			name:   "same version is ignored",
			cached: cachedItem(),
			msg: &api.UpdateMessage{
				Operation: "update", Entity: "item", EntityID: models.Int64Ptr(42),
				Changes: json.RawMessage(`{"name":"Shoes"}`), PackingListID: 7, Version: 3,
			},
			wantData:    `{"name":"Socks","packed":false}`,
			wantVersion: 3,
		},
		{
			name: "create stores the full payload",
			msg: &api.UpdateMessage{
				Operation: "create", Entity: "item", EntityID: models.Int64Ptr(42),
				Data: json.RawMessage(`{"name":"Hat"}`), PackingListID: 7, Version: 1,
			},
			wantData:    `{"name":"Hat"}`,
			wantVersion: 1,
		},
		{
			name: "update of unknown entity uses data",
			msg: &api.UpdateMessage{
				Operation: "update", Entity: "item", EntityID: models.Int64Ptr(42),
				Data: json.RawMessage(`{"name":"Hat","packed":true}`), PackingListID: 7, Version: 9,
			},
			wantData:    `{"name":"Hat","packed":true}`,
			wantVersion: 9,
		},
		{
			name:   "unversioned update merges and keeps cached version",
			cached: cachedItem(),
			msg: &api.UpdateMessage{
				Operation: "update", Entity: "item", EntityID: models.Int64Ptr(42),
				Data: json.RawMessage(`{"packed":true}`), PackingListID: 7,
			},
			wantData:    `{"name":"Socks","packed":true}`,
			wantVersion: 3,
		},
		{
			name:   "unversioned delete removes",
			cached: cachedItem(),
			msg: &api.UpdateMessage{
				Operation: "delete", Entity: "item", EntityID: models.Int64Ptr(42), PackingListID: 7,
			},
			wantDeleted: true,
		},
		{
			name:   "stale delete is ignored",
			cached: cachedItem(),
			msg: &api.UpdateMessage{
				Operation: "delete", Entity: "item", EntityID: models.Int64Ptr(42), PackingListID: 7, Version: 3,
			},
			wantData:    `{"name":"Socks","packed":false}`,
			wantVersion: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			if tt.cached != nil {
				require.NoError(t, h.store.PutEntity(ctx, tt.cached))
			}

			require.NoError(t, h.engine.HandleRemoteUpdate(ctx, tt.msg))

			got := h.store.GetEntity(ctx, models.EntityItem, 42)
			if tt.wantDeleted {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.JSONEq(t, tt.wantData, string(got.Data))
				assert.Equal(t, tt.wantVersion, got.Version)
				assert.Equal(t, int64(7), got.ListID)
			}

			calls := h.invalidator.InvalidateCalls()
			require.Len(t, calls, 1)
			assert.Equal(t, int64(7), calls[0].ListID)
		})
	}
}

func TestEngine_HandleRemoteUpdate_Invalid(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	assert.Error(t, h.engine.HandleRemoteUpdate(ctx, &api.UpdateMessage{Operation: "upsert", Entity: "item", EntityID: models.Int64Ptr(1)}))
	assert.Error(t, h.engine.HandleRemoteUpdate(ctx, &api.UpdateMessage{Operation: "update", Entity: "suitcase", EntityID: models.Int64Ptr(1)}))
	assert.Error(t, h.engine.HandleRemoteUpdate(ctx, &api.UpdateMessage{Operation: "update", Entity: "item"}))
	assert.Empty(t, h.invalidator.InvalidateCalls())
}

func TestEngine_RemoteFrames(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.engine.Start(ctx)

	h.emit(t, `{"type":"update","operation":"create","entity":"bag","entityId":5,"data":{"name":"Blue"},"packingListId":2,"version":1}`)

	bag := h.store.GetEntity(ctx, models.EntityBag, 5)
	require.NotNil(t, bag)
	assert.JSONEq(t, `{"name":"Blue"}`, string(bag.Data))

	h.emit(t, `{"type":"item_updated","itemId":42,"item":{"id":42,"name":"Socks","packed":true,"packingListId":2},"version":2,"updatedBy":3}`)

	item := h.store.GetEntity(ctx, models.EntityItem, 42)
	require.NotNil(t, item)
	assert.Equal(t, int64(2), item.Version)
	assert.Equal(t, int64(2), item.ListID)
	assert.JSONEq(t, `{"id":42,"name":"Socks","packed":true,"packingListId":2}`, string(item.Data))

	// broadcast без версии применяется поверх кэша
	h.emit(t, `{"type":"item_updated","itemId":42,"item":{"packed":false},"updatedBy":4}`)
	item = h.store.GetEntity(ctx, models.EntityItem, 42)
	require.NotNil(t, item)
	assert.Equal(t, int64(2), item.Version)
	assert.JSONEq(t, `{"id":42,"name":"Socks","packed":false,"packingListId":2}`, string(item.Data))

	h.emit(t, `{"type":"item_deleted","itemId":42,"packingListId":2}`)
	assert.Nil(t, h.store.GetEntity(ctx, models.EntityItem, 42))

	// Нераспознаваемый кадр не ломает движок
	h.emit(t, `{"type":"update","operation":"explode","entity":"item","entityId":1}`)
	assert.Len(t, h.invalidator.InvalidateCalls(), 4)
}

func TestEngine_Hydrate(t *testing.T) {
	ctx := context.Background()

	t.Run("without snapshot source", func(t *testing.T) {
		h := newHarness(t, Options{})
		_, err := h.engine.Hydrate(ctx, 1)
		assert.ErrorIs(t, err, ErrNoSnapshotSource)
	})

	t.Run("fetch error", func(t *testing.T) {
		errDown := errors.New("server down")
		h := newHarness(t, Options{Snapshots: snapshotFunc(func(context.Context, int64) (*api.SnapshotResponse, error) {
			return nil, errDown
		})})
		_, err := h.engine.Hydrate(ctx, 1)
		assert.ErrorIs(t, err, errDown)
	})

	t.Run("caches newer entities", func(t *testing.T) {
		h := newHarness(t, Options{Snapshots: snapshotFunc(func(_ context.Context, listID int64) (*api.SnapshotResponse, error) {
			return &api.SnapshotResponse{
				PackingListID: listID,
				Entities: []api.SnapshotEntity{
					{Entity: "item", ID: 1, Version: 3, Data: json.RawMessage(`{"name":"old"}`)},
					{Entity: "item", ID: 2, Version: 1, Data: json.RawMessage(`{"name":"Hat"}`), UpdatedAt: 1234},
					{Entity: "suitcase", ID: 3, Version: 1, Data: json.RawMessage(`{}`)},
				},
			}, nil
		})})

		require.NoError(t, h.store.PutEntity(ctx, &models.CachedEntity{
			EntityType: models.EntityItem, ID: 1, ListID: 9, Version: 5, Data: json.RawMessage(`{"name":"new"}`),
		}))

		written, err := h.engine.Hydrate(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, 1, written)

		kept := h.store.GetEntity(ctx, models.EntityItem, 1)
		require.NotNil(t, kept)
		assert.JSONEq(t, `{"name":"new"}`, string(kept.Data), "snapshot never regresses a version")

		added := h.store.GetEntity(ctx, models.EntityItem, 2)
		require.NotNil(t, added)
		assert.Equal(t, int64(9), added.ListID)
		assert.Equal(t, int64(1234), added.LastModified)

		calls := h.invalidator.InvalidateCalls()
		require.Len(t, calls, 1)
		assert.Equal(t, int64(9), calls[0].ListID)
		assert.ElementsMatch(t, models.EntityTypes, calls[0].Types)
	})
}

func TestOperationID(t *testing.T) {
	assert.Equal(t, "device-1:42", OperationID("device-1", 42))
}
