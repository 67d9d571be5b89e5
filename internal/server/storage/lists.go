package storage

import (
	"context"

	"github.com/iudanet/packsync/internal/models"
)

// ListStorage defines interface for packing lists and their members
type ListStorage interface {
	// CreateList creates a list, makes ownerID its owner and stores the
	// list entity (version 1) so clients can hydrate it
	CreateList(ctx context.Context, name string, ownerID int64) (*models.PackingList, error)

	// GetList retrieves list by ID
	// Returns ErrListNotFound if list doesn't exist
	GetList(ctx context.Context, listID int64) (*models.PackingList, error)

	// AddMember grants userID access to the list
	// Returns ErrListNotFound or ErrMemberExists
	AddMember(ctx context.Context, listID, userID int64, role string) error

	// ListMembers returns list members ordered by join time
	ListMembers(ctx context.Context, listID int64) ([]*models.ListMember, error)

	// CanAccessList reports whether userID is a member of the list
	CanAccessList(ctx context.Context, listID, userID int64) (bool, error)
}
