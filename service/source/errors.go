package source

import "errors"

var (
	// ErrNotPrepared is returned when an artifact is requested before Prepare succeeded
	ErrNotPrepared = errors.New("build is not prepared")

	// ErrNotFound is returned when the archive has no build for the request
	ErrNotFound = errors.New("build not found in archive")
)
