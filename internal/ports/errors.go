package ports

import "errors"

// Errors adapters wrap so use cases can classify failures without knowing
// which adapter produced them.
var (
	// ErrNotFound means the entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict means the application refused a duplicate.
	ErrConflict = errors.New("entity conflicts with an existing one")

	// ErrRejected means the application refused the input as invalid.
	ErrRejected = errors.New("entity rejected by the application")
)
