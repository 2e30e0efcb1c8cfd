package shell

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
)

// Runner runs a shell command and returns its output and exit status
type Runner interface {
	Run(ctx context.Context, command string, options ...runner.Option) (string, int, error)
}

// unboundedWaitMs is the longest wait gosh accepts; it treats zero as its own 60s default
const unboundedWaitMs = math.MaxInt32

// Service runs commands in a lazily started local shell session. Commands are
// serialized since a session holds one shell.
type Service struct {
	env     map[string]string
	timeout time.Duration
	session *gosh.Service
	mux     sync.Mutex
}

// New creates a shell service; timeout bounds the wait for a single command,
// zero or less waits until the command exits
func New(env map[string]string, timeout time.Duration) *Service {
	if timeout < 0 {
		timeout = 0
	}
	return &Service{env: env, timeout: timeout}
}

func (s *Service) waitMs() int {
	if s.timeout <= 0 || s.timeout.Milliseconds() > unboundedWaitMs {
		return unboundedWaitMs
	}
	return int(s.timeout.Milliseconds())
}

// Run implements Runner
func (s *Service) Run(ctx context.Context, command string, options ...runner.Option) (string, int, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	session, err := s.getSession(ctx)
	if err != nil {
		return "", -1, fmt.Errorf("failed to get session: %w", err)
	}
	options = append([]runner.Option{runner.WithTimeout(s.waitMs())}, options...)
	started := time.Now()
	stdout, status, err := session.Run(ctx, command, options...)
	if elapsed := time.Since(started); s.timeout > 0 && elapsed > s.timeout && err == nil {
		err = fmt.Errorf("command %v timed out after: %s", command, elapsed)
	}
	return stdout, status, err
}

func (s *Service) getSession(ctx context.Context) (*gosh.Service, error) {
	if s.session != nil {
		return s.session, nil
	}
	var envOptions []runner.Option
	if len(s.env) > 0 {
		envOptions = append(envOptions, runner.WithEnvironment(s.env))
	}
	session, err := gosh.New(ctx, local.New(envOptions...))
	if err != nil {
		return nil, err
	}
	s.session = session
	return session, nil
}

// Close releases the shell session
func (s *Service) Close() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Close()
	s.session = nil
	return err
}

// Exec runs command and returns an error carrying the output when the exit status is not zero
func Exec(ctx context.Context, r Runner, command string, options ...runner.Option) (string, error) {
	stdout, status, err := r.Run(ctx, command, options...)
	if err != nil {
		return stdout, fmt.Errorf("failed to run %q: %w", command, err)
	}
	if status != 0 {
		return stdout, fmt.Errorf("command %q exited with status %d: %s", command, status, strings.TrimSpace(stdout))
	}
	return stdout, nil
}

// Quote returns value quoted for a POSIX shell
func Quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
