package progress

import (
	"fmt"
	"sync"
)

// Progress holds per-state build counters
type Progress struct {
	Pending   int
	Building  int
	Prepared  int
	Running   int
	Completed int
	Failed    int
	Skipped   int
	// Batches counts batches waiting for or undergoing expansion
	Batches int
}

// Active returns the number of builds admitted but not finished
func (p Progress) Active() int {
	return p.Building + p.Prepared + p.Running
}

func (p Progress) String() string {
	return fmt.Sprintf("%d pending, %d building, %d prepared, %d running, %d completed, %d failed, %d skipped, %d batches queued",
		p.Pending, p.Building, p.Prepared, p.Running, p.Completed, p.Failed, p.Skipped, p.Batches)
}

// Tracker keeps the last observed counters. It is safe for concurrent use.
type Tracker struct {
	mux      sync.Mutex
	current  Progress
	observed bool
	onChange func(Progress)
}

// NewTracker creates a tracker; onChange may be nil
func NewTracker(onChange func(Progress)) *Tracker {
	return &Tracker{onChange: onChange}
}

// Observe records p and returns true when it differs from the previous observation.
// The callback runs outside the critical section so it may perform slow I/O.
func (t *Tracker) Observe(p Progress) bool {
	if t == nil {
		return false
	}
	t.mux.Lock()
	changed := !t.observed || t.current != p
	t.current = p
	t.observed = true
	cb := t.onChange
	t.mux.Unlock()
	if changed && cb != nil {
		cb(p)
	}
	return changed
}

// Snapshot returns the last observed counters
func (t *Tracker) Snapshot() Progress {
	if t == nil {
		return Progress{}
	}
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.current
}

// OnChange replaces the callback. Passing nil disables it.
func (t *Tracker) OnChange(cb func(Progress)) {
	if t == nil {
		return
	}
	t.mux.Lock()
	t.onChange = cb
	t.mux.Unlock()
}
