package shell

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/gosh/runner"
)

func TestService_WaitMs(t *testing.T) {
	testCases := []struct {
		description string
		timeout     time.Duration
		expect      int
	}{
		{description: "zero waits until exit", timeout: 0, expect: math.MaxInt32},
		{description: "negative waits until exit", timeout: -time.Second, expect: math.MaxInt32},
		{description: "bounded", timeout: 30 * time.Minute, expect: 1800000},
		{description: "beyond gosh range", timeout: 365 * 24 * time.Hour, expect: math.MaxInt32},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expect, New(nil, tc.timeout).waitMs())
		})
	}
}

type runnerFunc func(ctx context.Context, command string, options ...runner.Option) (string, int, error)

func (f runnerFunc) Run(ctx context.Context, command string, options ...runner.Option) (string, int, error) {
	return f(ctx, command, options...)
}

func TestExec(t *testing.T) {
	ok := runnerFunc(func(context.Context, string, ...runner.Option) (string, int, error) { return "done\n", 0, nil })
	out, err := Exec(context.Background(), ok, "true")
	assert.NoError(t, err)
	assert.Equal(t, "done\n", out)

	failing := runnerFunc(func(context.Context, string, ...runner.Option) (string, int, error) { return "abort: no repo\n", 255, nil })
	_, err = Exec(context.Background(), failing, "hg pull")
	assert.EqualError(t, err, `command "hg pull" exited with status 255: abort: no repo`)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `'/src/mozilla central'`, Quote("/src/mozilla central"))
	assert.Equal(t, `'it'\''s'`, Quote("it's"))
}
