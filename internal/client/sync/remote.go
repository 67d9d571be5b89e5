package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iudanet/packsync/internal/models"
	"github.com/iudanet/packsync/pkg/api"
)

func (e *Engine) onUpdate(env api.Envelope) {
	var msg api.UpdateMessage
	if err := env.Decode(&msg); err != nil {
		e.logger.Warn("Dropping undecodable update", "error", err)
		return
	}
	if err := e.HandleRemoteUpdate(e.baseCtx, &msg); err != nil {
		e.logger.Warn("Failed to apply remote update", "error", err)
	}
}

// onEntityBroadcast переводит "<entity>_<verb>" в обычный update
func (e *Engine) onEntityBroadcast(env api.Envelope) {
	b, err := env.EntityBroadcast()
	if err != nil {
		e.logger.Warn("Dropping malformed broadcast", "type", env.RawType, "error", err)
		return
	}

	msg := &api.UpdateMessage{
		Type:          api.MessageTypeUpdate,
		Operation:     b.Operation,
		Entity:        b.Entity,
		EntityID:      models.Int64Ptr(b.EntityID),
		Changes:       b.Data,
		Data:          b.Data,
		PackingListID: b.PackingListID,
		Version:       b.Version,
		UpdatedBy:     b.UpdatedBy,
	}
	if err := e.HandleRemoteUpdate(e.baseCtx, msg); err != nil {
		e.logger.Warn("Failed to apply remote broadcast", "type", env.RawType, "error", err)
	}
}

// HandleRemoteUpdate applies a hub-confirmed change. Versions never regress:
// creates and updates need a strictly greater version than the cached one,
// deletes apply when unversioned or newer.
func (e *Engine) HandleRemoteUpdate(ctx context.Context, msg *api.UpdateMessage) error {
	kind, err := models.ParseOperationKind(msg.Operation)
	if err != nil {
		return fmt.Errorf("invalid remote update: %w", err)
	}
	entityType, err := models.ParseEntityType(msg.Entity)
	if err != nil {
		return fmt.Errorf("invalid remote update: %w", err)
	}
	if msg.EntityID == nil {
		return fmt.Errorf("invalid remote update: %s %s without entity id", kind, entityType)
	}
	id := *msg.EntityID

	cached := e.store.GetEntity(ctx, entityType, id)
	listID := msg.PackingListID
	if listID == 0 && cached != nil {
		listID = cached.ListID
	}

	switch kind {
	case models.OperationCreate:
		if !acceptsRemote(cached, msg.Version) {
			e.logger.Debug("Skipping stale create", "entity", entityType, "id", id, "version", msg.Version)
			break
		}
		data := msg.Data
		if len(data) == 0 {
			data = msg.Changes
		}
		if err := e.put(ctx, entityType, id, listID, keptVersion(cached, msg.Version), data); err != nil {
			return err
		}

	case models.OperationUpdate:
		if !acceptsRemote(cached, msg.Version) {
			e.logger.Debug("Skipping stale update", "entity", entityType, "id", id, "version", msg.Version)
			break
		}
		base := msg.Data
		overlay := msg.Changes
		if cached != nil {
			base = cached.Data
		}
		if len(overlay) == 0 {
			overlay = msg.Data
		}
		data, err := models.MergeShallow(base, overlay)
		if err != nil {
			return fmt.Errorf("failed to merge remote update: %w", err)
		}
		if err := e.put(ctx, entityType, id, listID, keptVersion(cached, msg.Version), data); err != nil {
			return err
		}

	case models.OperationDelete:
		if cached != nil && msg.Version != 0 && msg.Version <= cached.Version {
			e.logger.Debug("Skipping stale delete", "entity", entityType, "id", id, "version", msg.Version)
			break
		}
		if err := e.store.DeleteEntity(ctx, entityType, id); err != nil {
			return err
		}
	}

	if listID != 0 {
		e.invalidator.Invalidate(listID, entityType.Dependents()...)
	}
	return nil
}

// acceptsRemote: broadcast без версии (entity_updated от хаба без поля version)
// применяется всегда, как и delete без версии
func acceptsRemote(cached *models.CachedEntity, version int64) bool {
	return version == 0 || cached.AcceptsVersion(version)
}

// keptVersion не дает версии откатиться к нулю при broadcast без версии
func keptVersion(cached *models.CachedEntity, version int64) int64 {
	if version == 0 && cached != nil {
		return cached.Version
	}
	return version
}

func (e *Engine) put(ctx context.Context, entityType models.EntityType, id, listID, version int64, data json.RawMessage) error {
	return e.store.PutEntity(ctx, &models.CachedEntity{
		EntityType: entityType,
		ID:         id,
		ListID:     listID,
		Version:    version,
		Data:       data,
	})
}

// Hydrate pulls the list snapshot and caches every entity newer than the local copy.
// Returns the number of entities written.
func (e *Engine) Hydrate(ctx context.Context, listID int64) (int, error) {
	if e.snapshots == nil {
		return 0, ErrNoSnapshotSource
	}

	snap, err := e.snapshots.Snapshot(ctx, listID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch snapshot: %w", err)
	}

	written := 0
	for _, se := range snap.Entities {
		entityType, err := models.ParseEntityType(se.Entity)
		if err != nil {
			e.logger.Warn("Skipping snapshot entity", "entity", se.Entity, "id", se.ID, "error", err)
			continue
		}
		cached := e.store.GetEntity(ctx, entityType, se.ID)
		if !cached.AcceptsVersion(se.Version) {
			continue
		}
		if err := e.store.PutEntity(ctx, &models.CachedEntity{
			EntityType:   entityType,
			ID:           se.ID,
			ListID:       listID,
			Version:      se.Version,
			Data:         se.Data,
			LastModified: se.UpdatedAt,
		}); err != nil {
			return written, fmt.Errorf("failed to cache snapshot entity: %w", err)
		}
		written++
	}

	e.invalidator.Invalidate(listID, models.EntityList.Dependents()...)
	e.logger.Info("Hydrated list", "list_id", listID, "entities", len(snap.Entities), "written", written)
	return written, nil
}
