package pool

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/batchtester/hook"
	"github.com/viant/batchtester/model/batch"
	"github.com/viant/batchtester/model/build"
)

type fakeSource struct{}

func (s *fakeSource) Kind() build.Kind { return build.KindNightly }
func (s *fakeSource) Prepare(context.Context) error { return nil }
func (s *fakeSource) Cleanup() error { return nil }
func (s *fakeSource) Revision(context.Context) (string, error) { return "abc", nil }
func (s *fakeSource) BuildTime() time.Time { return time.Time{} }
func (s *fakeSource) Binary() (string, error) { return "/tmp/firefox", nil }

type testerFunc func(ctx context.Context, b *build.BatchBuild, args *batch.Args) error

func (f testerFunc) RunTests(ctx context.Context, b *build.BatchBuild, args *batch.Args) error {
	return f(ctx, b, args)
}

func newBuild(index int) *build.BatchBuild {
	b := build.New(&fakeSource{}, "abc")
	b.AssignIndex(index)
	return b
}

func wait(t *testing.T, task *Task) error {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if done, err := task.Poll(); done {
			return err
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("task did not finish")
	return nil
}

// freePort returns a base port whose next few ports are likely bindable
func freePort(t *testing.T) int {
	listener, err := net.Listen("tcp", ":0")
	assert.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	assert.NoError(t, listener.Close())
	return port
}

func TestPool_Submit(t *testing.T) {
	basePort := freePort(t)
	testCases := []struct {
		description string
		tester      testerFunc
		expectErr   string
	}{
		{
			description: "passes port to tester",
			tester: func(ctx context.Context, b *build.BatchBuild, args *batch.Args) error {
				if hook.Port(ctx) != basePort+b.Num() {
					return errors.New("unexpected port")
				}
				return nil
			},
		},
		{
			description: "tester error",
			tester: func(context.Context, *build.BatchBuild, *batch.Args) error {
				return errors.New("talos failed")
			},
			expectErr: "talos failed",
		},
		{
			description: "tester panic",
			tester: func(context.Context, *build.BatchBuild, *batch.Args) error {
				panic("segfault")
			},
			expectErr: "test worker encountered an exception: segfault",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			p := New(1, basePort, tc.tester, &batch.Args{})
			task, err := p.Submit(context.Background(), newBuild(0))
			assert.NoError(t, err)
			err = wait(t, task)
			if tc.expectErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tc.expectErr)
			}
			done, again := task.Poll()
			assert.True(t, done)
			assert.Equal(t, err, again)
			p.Close()
		})
	}
}

func TestPool_PortUnavailable(t *testing.T) {
	listener, err := net.Listen("tcp", ":0")
	assert.NoError(t, err)
	defer listener.Close()
	port := listener.Addr().(*net.TCPAddr).Port

	p := New(1, port, testerFunc(func(context.Context, *build.BatchBuild, *batch.Args) error { return nil }), nil)
	task, err := p.Submit(context.Background(), newBuild(0))
	assert.NoError(t, err)
	assert.ErrorContains(t, wait(t, task), "port "+strconv.Itoa(port)+" unavailable")
	p.Close()
}

func TestPool_Capacity(t *testing.T) {
	release := make(chan struct{})
	p := New(1, freePort(t), testerFunc(func(context.Context, *build.BatchBuild, *batch.Args) error {
		<-release
		return nil
	}), nil)
	task, err := p.Submit(context.Background(), newBuild(0))
	assert.NoError(t, err)
	_, err = p.Submit(context.Background(), newBuild(1))
	assert.ErrorIs(t, err, ErrFull)
	close(release)
	assert.NoError(t, wait(t, task))
	p.Close()
	_, err = p.Submit(context.Background(), newBuild(2))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPool_SlotFreeOnceFinished(t *testing.T) {
	p := New(1, freePort(t), testerFunc(func(context.Context, *build.BatchBuild, *batch.Args) error { return nil }), nil)
	defer p.Close()
	for i := 0; i < 20; i++ {
		task, err := p.Submit(context.Background(), newBuild(0))
		if !assert.NoError(t, err, "submit %d", i) {
			return
		}
		assert.NoError(t, wait(t, task))
	}
}
