package storage

import (
	"context"
	"encoding/json"

	"github.com/iudanet/packsync/internal/models"
)

// Mutation одна клиентская операция, принятая хабом
type Mutation struct {
	EntityID    *int64               // EntityID опционален для create
	OperationID string               // OperationID "<deviceID>:<opID>", пустой без дедупликации
	Kind        models.OperationKind // Kind create|update|delete
	EntityType  models.EntityType    // EntityType тип сущности
	Changes     json.RawMessage      // Changes JSON-объект изменений
	ListID      int64                // ListID список-владелец
	UserID      int64                // UserID автор изменения
}

// MutationResult итог применения мутации
type MutationResult struct {
	Entity    *models.ServerEntity
	Duplicate bool // операция уже применялась, Entity - текущее состояние
}

// EntityStorage defines interface for authoritative list entities
type EntityStorage interface {
	// ApplyMutation applies a mutation in one transaction: assigns an id on create,
	// increments the version, tombstones on delete and records the operation id.
	// A replayed operation id is not applied again and yields Duplicate=true.
	// Returns ErrEntityNotFound, ErrListNotFound or ErrInvalidMutation
	ApplyMutation(ctx context.Context, m *Mutation) (*MutationResult, error)

	// GetEntity retrieves a live entity
	// Returns ErrEntityNotFound if entity doesn't exist or is deleted
	GetEntity(ctx context.Context, entityType models.EntityType, id int64) (*models.ServerEntity, error)

	// ListEntities returns live entities of a list ordered by type and id
	// Returns empty slice if no entities found
	ListEntities(ctx context.Context, listID int64) ([]*models.ServerEntity, error)
}

// Storage is everything the server needs.
type Storage interface {
	ListStorage
	EntityStorage
	Close() error
}
