package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iudanet/packsync/internal/client/storage"
	"github.com/iudanet/packsync/internal/clock"
	"github.com/iudanet/packsync/internal/models"
	"github.com/iudanet/packsync/pkg/api"
)

// DefaultPeriodicInterval is how often a replay pass runs without any trigger.
const DefaultPeriodicInterval = 30 * time.Second

// Options tunes the engine.
type Options struct {
	PeriodicInterval time.Duration
	Snapshots        SnapshotSource
}

// Engine reconciles the local operation log with the hub.
type Engine struct {
	store       Store
	transport   Transport
	network     Network
	invalidator Invalidator
	snapshots   SnapshotSource
	scheduler   clock.Scheduler
	logger      *slog.Logger
	interval    time.Duration

	baseCtx  context.Context
	timer    clock.Timer
	unsubs   []func()
	deviceID string
	mu       sync.Mutex

	syncInProgress atomic.Bool
	destroyed      atomic.Bool
	lastSync       atomic.Int64
	background     sync.WaitGroup
}

var _ Service = (*Engine)(nil)

// New creates an engine. Call Start to arm the triggers.
func New(
	store Store,
	tr Transport,
	network Network,
	invalidator Invalidator,
	scheduler clock.Scheduler,
	logger *slog.Logger,
	opts Options,
) *Engine {
	interval := opts.PeriodicInterval
	if interval <= 0 {
		interval = DefaultPeriodicInterval
	}
	return &Engine{
		store:       store,
		transport:   tr,
		network:     network,
		invalidator: invalidator,
		snapshots:   opts.Snapshots,
		scheduler:   scheduler,
		logger:      logger,
		interval:    interval,
		baseCtx:     context.Background(),
	}
}

// Start loads the persisted sync time, subscribes to the transport and
// the network, and arms the periodic trigger.
func (e *Engine) Start(ctx context.Context) {
	e.lastSync.Store(e.store.LastSyncTimestamp(ctx))

	e.mu.Lock()
	defer e.mu.Unlock()

	e.baseCtx = context.WithoutCancel(ctx)

	e.unsubs = append(e.unsubs,
		e.transport.Subscribe(api.MessageTypeUpdate, e.onUpdate),
		e.transport.Subscribe(api.MessageTypeJoined, func(api.Envelope) { e.kick() }),
		e.network.OnOnline(e.kick),
	)
	for _, typ := range api.EntityBroadcastTypes {
		e.unsubs = append(e.unsubs, e.transport.Subscribe(typ, e.onEntityBroadcast))
	}

	e.armLocked()
}

func (e *Engine) armLocked() {
	if e.destroyed.Load() {
		return
	}
	e.timer = e.scheduler.AfterFunc(e.interval, e.periodic)
}

func (e *Engine) periodic() {
	if e.destroyed.Load() {
		return
	}
	e.AttemptSync(e.baseCtx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.armLocked()
}

// kick запускает один проход в фоне
func (e *Engine) kick() {
	if e.destroyed.Load() {
		return
	}
	e.background.Add(1)
	go func() {
		defer e.background.Done()
		e.AttemptSync(e.baseCtx)
	}()
}

// Wait blocks until background passes started so far have finished.
func (e *Engine) Wait() {
	e.background.Wait()
}

// Destroy unregisters every trigger. Durable state is left intact and
// passes already running are allowed to finish.
func (e *Engine) Destroy() {
	if e.destroyed.Swap(true) {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	for _, unsub := range e.unsubs {
		unsub()
	}
	e.unsubs = nil
}

// RecordOperation durably enqueues a mutation, updates the cache optimistically
// and, when online, triggers a background pass.
func (e *Engine) RecordOperation(
	ctx context.Context,
	kind models.OperationKind,
	entityType models.EntityType,
	entityID *int64,
	payload json.RawMessage,
	listID int64,
) (int64, error) {
	if err := validateOperation(kind, entityType, entityID, payload, listID); err != nil {
		return 0, err
	}

	op, err := e.store.EnqueueOperation(ctx, kind, entityType, entityID, payload, listID)
	if err != nil {
		return 0, fmt.Errorf("failed to record operation: %w", err)
	}

	if entityID != nil {
		e.applyOptimistic(ctx, op)
	}

	if e.network.IsOnline() {
		e.kick()
	}
	return op.ID, nil
}

func validateOperation(kind models.OperationKind, entityType models.EntityType, entityID *int64, payload json.RawMessage, listID int64) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidOperation, kind)
	}
	if !entityType.Valid() {
		return fmt.Errorf("%w: unknown entity %q", ErrInvalidOperation, entityType)
	}
	if listID <= 0 {
		return fmt.Errorf("%w: list id is required", ErrInvalidOperation)
	}
	if kind != models.OperationCreate && entityID == nil {
		return fmt.Errorf("%w: %s requires an entity id", ErrInvalidOperation, kind)
	}
	if len(payload) > 0 && !json.Valid(payload) {
		return fmt.Errorf("%w: payload is not valid JSON", ErrInvalidOperation)
	}
	return nil
}

// applyOptimistic отражает локальную мутацию в кэше, сохраняя версию:
// подтверждение от хаба всегда придет с большей версией
func (e *Engine) applyOptimistic(ctx context.Context, op *models.PendingOperation) {
	id := *op.EntityID

	switch op.Kind {
	case models.OperationDelete:
		if err := e.store.DeleteEntity(ctx, op.EntityType, id); err != nil {
			e.logger.Warn("Optimistic delete failed", "entity", op.EntityType, "id", id, "error", err)
		}
	default:
		cached := e.store.GetEntity(ctx, op.EntityType, id)
		var (
			base    json.RawMessage
			version int64
		)
		if cached != nil {
			base, version = cached.Data, cached.Version
		}
		data, err := models.MergeShallow(base, op.Payload)
		if err != nil {
			e.logger.Warn("Optimistic merge failed", "entity", op.EntityType, "id", id, "error", err)
			return
		}
		if err := e.store.PutEntity(ctx, &models.CachedEntity{
			EntityType: op.EntityType,
			ID:         id,
			ListID:     op.ListID,
			Version:    version,
			Data:       data,
		}); err != nil {
			e.logger.Warn("Optimistic write failed", "entity", op.EntityType, "id", id, "error", err)
		}
	}

	e.invalidator.Invalidate(op.ListID, op.EntityType.Dependents()...)
}

// ForceSync runs a pass on user request.
func (e *Engine) ForceSync(ctx context.Context) SyncResult {
	return e.AttemptSync(ctx)
}

// AttemptSync replays unsynced operations list by list in enqueue order.
// A list stops at its first operation that is not delivered.
func (e *Engine) AttemptSync(ctx context.Context) SyncResult {
	if e.destroyed.Load() {
		return SyncResult{Skipped: SkipDestroyed}
	}
	if !e.network.IsOnline() {
		return SyncResult{Skipped: SkipOffline}
	}
	if !e.syncInProgress.CompareAndSwap(false, true) {
		return SyncResult{Skipped: SkipInProgress}
	}
	defer e.syncInProgress.Store(false)

	var result SyncResult

	ops := e.store.ListUnsyncedOperations(ctx, storage.AllLists)
	order, groups := groupByList(ops)
	deviceID := e.device(ctx)

	for _, listID := range order {
		if !e.transport.IsJoined(listID) {
			result.ListsSkipped = append(result.ListsSkipped, listID)
			continue
		}
		e.replayList(ctx, deviceID, groups[listID], &result)
	}

	now := e.scheduler.Now().UnixMilli()
	e.lastSync.Store(now)
	if err := e.store.SaveLastSyncTimestamp(ctx, now); err != nil {
		e.logger.Warn("Failed to save last sync timestamp", "error", err)
	}

	if len(ops) > 0 {
		e.logger.Info("Sync pass completed",
			"sent", result.Sent,
			"queued", result.Queued,
			"failed", result.Failed,
			"lists_skipped", len(result.ListsSkipped))
	}
	return result
}

func (e *Engine) replayList(ctx context.Context, deviceID string, ops []*models.PendingOperation, result *SyncResult) {
	for _, op := range ops {
		msg, err := buildUpdate(deviceID, op)
		if err != nil {
			e.logger.Error("Failed to build update, halting list", "operation_id", op.ID, "list_id", op.ListID, "error", err)
			result.Failed++
			return
		}

		if !e.transport.Send(msg) {
			result.Queued++
			return
		}

		if err := e.store.MarkSynced(ctx, op.ID); err != nil {
			e.logger.Error("Failed to mark operation synced, halting list", "operation_id", op.ID, "list_id", op.ListID, "error", err)
			result.Failed++
			return
		}
		result.Sent++
	}
}

func groupByList(ops []*models.PendingOperation) ([]int64, map[int64][]*models.PendingOperation) {
	var order []int64
	groups := make(map[int64][]*models.PendingOperation)
	for _, op := range ops {
		if _, seen := groups[op.ListID]; !seen {
			order = append(order, op.ListID)
		}
		groups[op.ListID] = append(groups[op.ListID], op)
	}
	return order, groups
}

func (e *Engine) device(ctx context.Context) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deviceID != "" {
		return e.deviceID
	}
	id, err := e.store.DeviceID(ctx)
	if err != nil {
		e.logger.Warn("Failed to read device id", "error", err)
		return "unknown"
	}
	e.deviceID = id
	return id
}

// OperationID builds the replay-safe id the hub deduplicates on.
func OperationID(deviceID string, opID int64) string {
	return deviceID + ":" + strconv.FormatInt(opID, 10)
}

func buildUpdate(deviceID string, op *models.PendingOperation) (*api.UpdateMessage, error) {
	changes := op.Payload
	if len(changes) == 0 {
		changes = json.RawMessage(`{}`)
	}
	if !json.Valid(changes) {
		return nil, fmt.Errorf("operation %d has an invalid payload", op.ID)
	}

	return &api.UpdateMessage{
		Type:          api.MessageTypeUpdate,
		Operation:     string(op.Kind),
		Entity:        string(op.EntityType),
		EntityID:      op.EntityID,
		Changes:       changes,
		Timestamp:     op.Timestamp,
		PackingListID: op.ListID,
		OperationID:   OperationID(deviceID, op.ID),
	}, nil
}

// PendingCount returns the number of unsynced operations.
func (e *Engine) PendingCount(ctx context.Context, listID int64) int {
	return e.store.CountPending(ctx, listID)
}

// LastSyncTime returns the end of the last pass.
func (e *Engine) LastSyncTime() time.Time {
	ms := e.lastSync.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
