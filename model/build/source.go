package build

import (
	"context"
	"fmt"
	"time"
)

// Kind identifies the variant of a build source
type Kind string

const (
	// KindNightly represents a nightly build published for a calendar day
	KindNightly Kind = "nightly"
	// KindTinderbox represents a continuous-integration build identified by its timestamp
	KindTinderbox Kind = "tinderbox"
	// KindCompile represents a build compiled locally from a source checkout
	KindCompile Kind = "compile"
)

// ParseKind converts a string into a Kind
func ParseKind(value string) (Kind, error) {
	switch Kind(value) {
	case KindNightly, KindTinderbox, KindCompile:
		return Kind(value), nil
	}
	return "", fmt.Errorf("unknown build type %q", value)
}

// Source represents an acquirable build artifact.
//
// Prepare fetches or compiles the artifact and extracts it locally; calling it
// again on a prepared source is a no-op. Cleanup releases local artifacts and is
// safe to call on a source that was never prepared. Binary is only valid between a
// successful Prepare and Cleanup.
type Source interface {
	Kind() Kind

	Prepare(ctx context.Context) error

	Cleanup() error

	// Revision returns the revision identifier reported by the source, possibly abbreviated
	Revision(ctx context.Context) (string, error)

	// BuildTime returns the build time, zero when not yet known
	BuildTime() time.Time

	Binary() (string, error)
}

// Dated is implemented by sources requested for a calendar day
type Dated interface {
	Date() time.Time
}

// Factory rebuilds sources from their persisted form
type Factory interface {
	Restore(record *Record) (Source, error)
}
