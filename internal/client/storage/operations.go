package storage

import (
	"context"

	"github.com/iudanet/packsync/internal/models"
)

// AllLists is the list filter meaning "every list".
const AllLists int64 = 0

// OperationStorage defines interface for the local log of pending mutations
type OperationStorage interface {
	// EnqueueOperation appends op (Synced=false) and returns its assigned id.
	// op.Timestamp must already be set by the caller.
	EnqueueOperation(ctx context.Context, op *models.PendingOperation) (int64, error)

	// GetOperation retrieves an operation by id
	// Returns ErrOperationNotFound if it doesn't exist
	GetOperation(ctx context.Context, id int64) (*models.PendingOperation, error)

	// ListUnsyncedOperations returns unsynced operations ordered by timestamp ascending
	// (id breaks ties). listID == AllLists returns every list.
	ListUnsyncedOperations(ctx context.Context, listID int64) ([]*models.PendingOperation, error)

	// MarkSynced flips Synced to true. Idempotent.
	// Returns ErrOperationNotFound if the operation doesn't exist
	MarkSynced(ctx context.Context, id int64, syncedAt int64) error

	// CountPending returns the number of unsynced operations for listID (AllLists = every list)
	CountPending(ctx context.Context, listID int64) (int, error)

	// PruneSynced deletes synced operations whose SyncedAt is before the given unix ms
	// and returns how many were removed. Unsynced operations are never removed.
	PruneSynced(ctx context.Context, before int64) (int, error)
}
