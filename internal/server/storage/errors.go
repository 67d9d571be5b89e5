package storage

import "errors"

// Common storage errors
var (
	// ErrListNotFound indicates that packing list was not found
	ErrListNotFound = errors.New("list not found")

	// ErrEntityNotFound indicates that entity was not found or is deleted
	ErrEntityNotFound = errors.New("entity not found")

	// ErrDuplicateOperation indicates that operation id was already applied
	ErrDuplicateOperation = errors.New("operation already applied")

	// ErrInvalidMutation indicates a mutation the store cannot apply
	ErrInvalidMutation = errors.New("invalid mutation")

	// ErrMemberExists indicates that user is already a member of the list
	ErrMemberExists = errors.New("user is already a list member")
)
