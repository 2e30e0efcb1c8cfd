package helper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/viant/batchtester/model/batch"
	"github.com/viant/batchtester/model/build"
	"github.com/viant/batchtester/service/expander"
	"github.com/viant/batchtester/tracing"
)

// ErrBusy is returned when a unit is submitted while another one is in flight
var ErrBusy = errors.New("helper is busy")

// Kind identifies a unit of helper work
type Kind string

const (
	KindExpand  Kind = "expand"
	KindPrepare Kind = "prepare"
)

// Status reports how a unit ended
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Expander expands a job by one step
type Expander interface {
	Expand(ctx context.Context, job *batch.Job) (*expander.Result, error)
}

// Result is the outcome of one unit
type Result struct {
	Kind   Kind
	Status Status
	Job    *batch.Job
	Build  *build.BatchBuild

	Accepted  []*build.BatchBuild
	Skipped   []*build.BatchBuild
	Cursor    int
	Exhausted bool

	Err error
}

type unit struct {
	kind Kind
	done chan *Result
}

// Helper runs one expansion or preparation at a time in its own goroutine
type Helper struct {
	expander Expander
	mux      sync.Mutex
	current  *unit
}

// New creates a helper
func New(expander Expander) *Helper {
	return &Helper{expander: expander}
}

// Busy returns true while a unit is in flight or its result was not polled
func (h *Helper) Busy() bool {
	h.mux.Lock()
	defer h.mux.Unlock()
	return h.current != nil
}

// Expand submits a job expansion
func (h *Helper) Expand(ctx context.Context, job *batch.Job) error {
	return h.submit(KindExpand, func(result *Result) error {
		result.Job = job
		expanded, err := h.expander.Expand(ctx, job)
		if err != nil {
			return err
		}
		result.Accepted = expanded.Accepted
		result.Skipped = expanded.Skipped
		result.Cursor = expanded.Cursor
		result.Exhausted = expanded.Exhausted
		return nil
	})
}

// Prepare submits preparation of b
func (h *Helper) Prepare(ctx context.Context, b *build.BatchBuild) error {
	return h.submit(KindPrepare, func(result *Result) (err error) {
		result.Build = b
		spanCtx, span := tracing.StartSpan(ctx, "prepare", map[string]string{
			"build.kind":     string(b.Source.Kind()),
			"build.revision": b.Revision,
		})
		defer func() { span.End(err) }()
		return b.Source.Prepare(spanCtx)
	})
}

// Poll returns the result of the finished unit, exactly once
func (h *Helper) Poll() (*Result, bool) {
	h.mux.Lock()
	defer h.mux.Unlock()
	if h.current == nil {
		return nil, false
	}
	select {
	case result := <-h.current.done:
		h.current = nil
		return result, true
	default:
		return nil, false
	}
}

func (h *Helper) submit(kind Kind, run func(result *Result) error) error {
	h.mux.Lock()
	defer h.mux.Unlock()
	if h.current != nil {
		return ErrBusy
	}
	current := &unit{kind: kind, done: make(chan *Result, 1)}
	h.current = current
	go func() {
		result := &Result{Kind: kind, Status: StatusSuccess}
		defer func() {
			if r := recover(); r != nil {
				result.Err = fmt.Errorf("%v panicked: %v", kind, r)
			}
			if result.Err != nil {
				result.Status = StatusError
			}
			current.done <- result
		}()
		result.Err = run(result)
	}()
	return nil
}
