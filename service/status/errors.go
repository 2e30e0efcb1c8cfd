package status

import "errors"

var (
	// ErrNotFound is returned when no snapshot was persisted yet
	ErrNotFound = errors.New("status: not found")

	// ErrNilSnapshot is returned when saving a nil snapshot
	ErrNilSnapshot = errors.New("status: nil snapshot")
)
