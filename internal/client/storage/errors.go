package storage

import "errors"

// Common client storage errors
var (
	// ErrAuthNotFound indicates that no session data exists
	ErrAuthNotFound = errors.New("authentication data not found")

	// ErrOperationNotFound indicates that a pending operation was not found
	ErrOperationNotFound = errors.New("operation not found")

	// ErrEntityNotFound indicates that an entity is not cached
	ErrEntityNotFound = errors.New("entity not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")

	// ErrStorageUnavailable indicates that the persistence medium could not be opened.
	// The client keeps working from memory; changes are lost on exit.
	ErrStorageUnavailable = errors.New("local storage unavailable")
)
