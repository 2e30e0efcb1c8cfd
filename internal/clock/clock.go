// Package clock provides the time source used for build and batch
// bookkeeping so tests can pin it.
package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now returns NowFunc()
func Now() time.Time { return NowFunc() }

// Since returns the time elapsed since t according to NowFunc
func Since(t time.Time) time.Duration { return Now().Sub(t) }

// Older returns true when t is set and more than age before now
func Older(t *time.Time, age time.Duration) bool {
	return t != nil && Since(*t) > age
}
