package helper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/batchtester/model/batch"
	"github.com/viant/batchtester/model/build"
	"github.com/viant/batchtester/service/expander"
)

type fakeSource struct {
	prepare func() error
	release chan struct{}
}

func (s *fakeSource) Kind() build.Kind { return build.KindCompile }
func (s *fakeSource) Prepare(context.Context) error {
	if s.release != nil {
		<-s.release
	}
	return s.prepare()
}
func (s *fakeSource) Cleanup() error { return nil }
func (s *fakeSource) Revision(context.Context) (string, error) { return "abc", nil }
func (s *fakeSource) BuildTime() time.Time { return time.Time{} }
func (s *fakeSource) Binary() (string, error) { return "", nil }

type expanderFunc func(ctx context.Context, job *batch.Job) (*expander.Result, error)

func (f expanderFunc) Expand(ctx context.Context, job *batch.Job) (*expander.Result, error) {
	return f(ctx, job)
}

// await polls until the unit finishes
func await(t *testing.T, h *Helper) *Result {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if result, ok := h.Poll(); ok {
			return result
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("helper did not finish")
	return nil
}

func TestHelper_Prepare(t *testing.T) {
	testCases := []struct {
		description string
		prepare     func() error
		expect      Status
		expectErr   string
	}{
		{description: "success", prepare: func() error { return nil }, expect: StatusSuccess},
		{description: "error", prepare: func() error { return errors.New("disk full") }, expect: StatusError, expectErr: "disk full"},
		{description: "panic", prepare: func() error { panic("boom") }, expect: StatusError, expectErr: "boom"},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			h := New(nil)
			b := build.New(&fakeSource{prepare: tc.prepare}, "abc")
			assert.NoError(t, h.Prepare(context.Background(), b))
			result := await(t, h)
			assert.Equal(t, KindPrepare, result.Kind)
			assert.Equal(t, tc.expect, result.Status)
			assert.Same(t, b, result.Build)
			if tc.expectErr != "" {
				assert.ErrorContains(t, result.Err, tc.expectErr)
			}
			assert.False(t, h.Busy(), "slot is freed once the result is polled")
			_, ok := h.Poll()
			assert.False(t, ok, "result is delivered once")
			assert.NoError(t, h.Prepare(context.Background(), build.New(&fakeSource{prepare: func() error { return nil }}, "def")))
			await(t, h)
		})
	}
}

func TestHelper_Busy(t *testing.T) {
	h := New(nil)
	release := make(chan struct{})
	b := build.New(&fakeSource{prepare: func() error { return nil }, release: release}, "abc")
	assert.NoError(t, h.Prepare(context.Background(), b))
	assert.True(t, h.Busy())
	assert.ErrorIs(t, h.Prepare(context.Background(), b), ErrBusy)
	_, ok := h.Poll()
	assert.False(t, ok)
	close(release)
	result := await(t, h)
	assert.Equal(t, StatusSuccess, result.Status)
}

func TestHelper_Expand(t *testing.T) {
	accepted := build.New(&fakeSource{}, "abc")
	h := New(expanderFunc(func(ctx context.Context, job *batch.Job) (*expander.Result, error) {
		if job.Args.Mode == "" {
			return nil, errors.New("unknown mode")
		}
		return &expander.Result{Accepted: []*build.BatchBuild{accepted}, Cursor: 1, Exhausted: true}, nil
	}))
	job := batch.NewJob(&batch.Args{Mode: batch.ModeNightly})
	assert.NoError(t, h.Expand(context.Background(), job))
	result := await(t, h)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Same(t, job, result.Job)
	assert.Equal(t, []*build.BatchBuild{accepted}, result.Accepted)
	assert.True(t, result.Exhausted)

	assert.NoError(t, h.Expand(context.Background(), batch.NewJob(&batch.Args{})))
	result = await(t, h)
	assert.Equal(t, StatusError, result.Status)
	assert.EqualError(t, result.Err, "unknown mode")
}
