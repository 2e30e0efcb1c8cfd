package idgen

import (
	"time"

	"github.com/google/uuid"
)

// NewFunc returns a globally unique identifier
var NewFunc = func() string { return uuid.New().String() }

// New returns NewFunc()
func New() string { return NewFunc() }

// Sortable returns an identifier prefixed with at, so that lexicographic order follows creation order
func Sortable(at time.Time) string {
	return at.UTC().Format("20060102T150405.000000000") + "-" + New()
}
