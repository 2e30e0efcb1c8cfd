package pool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/viant/batchtester/hook"
	"github.com/viant/batchtester/model/batch"
	"github.com/viant/batchtester/model/build"
	"github.com/viant/batchtester/tracing"
)

var (
	// ErrClosed is returned when submitting to a closed pool
	ErrClosed = errors.New("pool is closed")
	// ErrFull is returned when every worker slot is taken
	ErrFull = errors.New("pool is full")
)

// DefaultBasePort is the first port reserved for test runs
const DefaultBasePort = 24242

// Tester runs the tests of a prepared build
type Tester interface {
	RunTests(ctx context.Context, b *build.BatchBuild, args *batch.Args) error
}

// Task is a dispatched test run
type Task struct {
	Build *build.BatchBuild
	done  chan error
	err   error
	ready bool
}

// Poll returns the task error once the run finished
func (t *Task) Poll() (bool, error) {
	if t.ready {
		return true, t.err
	}
	select {
	case err := <-t.done:
		t.ready = true
		t.err = err
		return true, err
	default:
		return false, nil
	}
}

// Pool runs up to size test runs in parallel. Each run reserves port BasePort + build index.
type Pool struct {
	size     int
	basePort int
	tester   Tester
	args     *batch.Args
	slots    chan struct{}
	wg       sync.WaitGroup
	mux      sync.Mutex
	closed   bool
}

// New creates a pool
func New(size, basePort int, tester Tester, args *batch.Args) *Pool {
	if size < 1 {
		size = 1
	}
	if basePort <= 0 {
		basePort = DefaultBasePort
	}
	return &Pool{size: size, basePort: basePort, tester: tester, args: args, slots: make(chan struct{}, size)}
}

// Size returns the worker count
func (p *Pool) Size() int { return p.size }

// Submit starts a test run for b
func (p *Pool) Submit(ctx context.Context, b *build.BatchBuild) (*Task, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	select {
	case p.slots <- struct{}{}:
	default:
		return nil, ErrFull
	}
	task := &Task{Build: b, done: make(chan error, 1)}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		err := p.run(ctx, b)
		// the slot is free before the result can be observed
		<-p.slots
		task.done <- err
	}()
	return task, nil
}

func (p *Pool) run(ctx context.Context, b *build.BatchBuild) (err error) {
	port := p.basePort + b.Num()
	ctx, span := tracing.StartSpan(ctx, "run-tests", map[string]string{
		"build.kind":     string(b.Source.Kind()),
		"build.revision": b.Revision,
		"build.port":     strconv.Itoa(port),
	})
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("test worker encountered an exception: %v", r)
		}
		span.End(err)
	}()
	if err = probe(port); err != nil {
		return err
	}
	return p.tester.RunTests(hook.WithPort(ctx, port), b, p.args)
}

// probe verifies that port can be bound
func probe(port int) error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return fmt.Errorf("port %d unavailable: %w", port, err)
	}
	return listener.Close()
}

// Close rejects new submissions and waits for in-flight runs
func (p *Pool) Close() {
	p.mux.Lock()
	p.closed = true
	p.mux.Unlock()
	p.wg.Wait()
}
