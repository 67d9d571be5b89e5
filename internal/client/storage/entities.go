package storage

import (
	"context"

	"github.com/iudanet/packsync/internal/models"
)

// EntityStorage defines interface for the cache of last-known entity snapshots.
// The store does not compare versions; that policy belongs to the caller.
type EntityStorage interface {
	// PutEntity upserts a snapshot keyed by "<entity>:<id>"
	PutEntity(ctx context.Context, entity *models.CachedEntity) error

	// GetEntity retrieves a snapshot
	// Returns ErrEntityNotFound if it is not cached
	GetEntity(ctx context.Context, entityType models.EntityType, id int64) (*models.CachedEntity, error)

	// GetAllEntities returns every cached entity of a type in a list, ordered by id
	GetAllEntities(ctx context.Context, entityType models.EntityType, listID int64) ([]*models.CachedEntity, error)

	// DeleteEntity removes a snapshot. Deleting a missing entity is not an error.
	DeleteEntity(ctx context.Context, entityType models.EntityType, id int64) error

	// ClearList removes every cached entity of listID; AllLists clears the whole cache.
	// The operation log is never touched.
	ClearList(ctx context.Context, listID int64) error
}

// Backend is a complete local persistence implementation.
type Backend interface {
	OperationStorage
	EntityStorage
	MetadataStorage
	AuthStorage

	Close() error
}
