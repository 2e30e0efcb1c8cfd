package batchtester

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/viant/afs"
	"github.com/viant/batchtester/hook"
	"github.com/viant/batchtester/model/batch"
	"github.com/viant/batchtester/service/expander"
	fsqueue "github.com/viant/batchtester/service/messaging/fs"
	"github.com/viant/batchtester/service/orchestrator"
	"github.com/viant/batchtester/service/shell"
	"github.com/viant/batchtester/service/source"
	fsstore "github.com/viant/batchtester/service/status/fs"
	"github.com/viant/batchtester/service/vcs"
	"github.com/viant/batchtester/tracing"
)

const (
	// ServiceName identifies the engine in traces
	ServiceName = "batchtester"
	// Version is reported in traces
	Version = "0.1.0"
)

var (
	// ErrRepoRequired is returned when no checkout was given
	ErrRepoRequired = errors.New("--repo is required")
	// ErrModeRequired is returned when neither a mode nor a batch directory was given
	ErrModeRequired = errors.New("either --mode or --batch is required")
)

// Service wires the archive, source control, hook, status file and batch
// directory into an orchestrator.
type Service struct {
	config *Config
	args   *batch.Args
	fs     afs.Service
	runner shell.Runner
	hook   hook.Hook
	logger *log.Logger

	shells       []*shell.Service
	factory      *source.Factory
	queue        *fsqueue.Queue
	orchestrator *orchestrator.Service
}

// New creates a service for the process arguments
func New(ctx context.Context, args *batch.Args, options ...Option) (*Service, error) {
	ret := &Service{config: DefaultConfig(), args: args, logger: log.Default()}
	for _, option := range options {
		option(ret)
	}
	if err := ret.init(ctx); err != nil {
		_ = ret.Close()
		return nil, err
	}
	return ret, nil
}

func (s *Service) init(ctx context.Context) error {
	if err := ValidateArgs(s.args); err != nil {
		return err
	}
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if s.config.TraceFile != "" {
		if err := tracing.Init(ServiceName, Version, s.config.TraceFile); err != nil {
			return fmt.Errorf("failed to initialise tracing: %w", err)
		}
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	if s.hook == nil {
		s.hook = NewHook(s.args.Hook, hook.WithRunTimeout(s.config.Hook.RunTimeout))
	}

	hgRunner, compileRunner := s.runner, s.runner
	if s.runner == nil {
		hgRunner = s.newShell(s.config.Hg.Timeout)
		compileRunner = s.newShell(s.config.Compile.Timeout)
	}
	hg := vcs.New(hgRunner, s.config.Hg.Binary)
	s.factory = &source.Factory{
		Archive: source.NewArchive(s.fs, s.config.Archive),
		Builder: source.NewBuilder(compileRunner, hg, s.config.Compile),
		Compile: source.CompileSpec{
			Repo:      s.args.Repo,
			Mozconfig: s.args.Mozconfig,
			Objdir:    s.args.Objdir,
			Pull:      !s.args.NoPull,
		},
		LogDir: s.args.LogDir,
	}

	config := s.config.Orchestrator()
	config.Resume = s.args.StatusResume
	opts := []orchestrator.Option{
		orchestrator.WithConfig(config),
		orchestrator.WithFactory(s.factory),
		orchestrator.WithRegistrars(s.hook),
		orchestrator.WithLogger(s.logger),
	}
	if s.args.StatusFile != "" {
		opts = append(opts, orchestrator.WithStore(fsstore.New(s.fs, s.args.StatusFile)))
	}
	if s.args.Batch != "" {
		queue, err := fsqueue.NewQueue(ctx, s.fs, s.args.Batch)
		if err != nil {
			return err
		}
		s.queue = queue
		opts = append(opts, orchestrator.WithQueue(queue))
	}
	var err error
	s.orchestrator, err = orchestrator.New(s.args, expander.New(s.factory, hg, s.hook, s.args), s.hook, opts...)
	return err
}

func (s *Service) newShell(timeout time.Duration) *shell.Service {
	ret := shell.New(nil, timeout)
	s.shells = append(s.shells, ret)
	return ret
}

// ValidateArgs checks the process arguments
func ValidateArgs(args *batch.Args) error {
	if args == nil {
		return fmt.Errorf("args were nil")
	}
	if args.Repo == "" {
		return ErrRepoRequired
	}
	if args.Batch == "" && args.Mode == "" {
		return ErrModeRequired
	}
	switch args.Mode {
	case "", batch.ModeNightly, batch.ModeTinderbox, batch.ModeBuild:
	default:
		return fmt.Errorf("unknown mode %q", args.Mode)
	}
	if args.Batch == "" && args.FirstBuild == "" {
		return fmt.Errorf("--firstbuild is required")
	}
	return nil
}

// NewHook returns a command hook for executable or a hook failing every run when it is empty
func NewHook(executable string, options ...hook.CommandOption) hook.Hook {
	if executable == "" {
		return hook.Missing{}
	}
	return hook.NewCommand(executable, options...)
}

// Run runs the orchestrator until the single batch drains, ctx is done or Shutdown is called
func (s *Service) Run(ctx context.Context) error {
	if s.args.Batch != "" {
		s.logger.Printf("Watching %v for batch files", s.args.Batch)
	}
	return s.orchestrator.Run(ctx)
}

// Shutdown stops Run after the current tick
func (s *Service) Shutdown() {
	if s.orchestrator != nil {
		s.orchestrator.Shutdown()
	}
}

// Orchestrator returns the underlying scheduler
func (s *Service) Orchestrator() *orchestrator.Service {
	return s.orchestrator
}

// Queue returns the batch directory queue or nil in single batch mode
func (s *Service) Queue() *fsqueue.Queue {
	return s.queue
}

// Close releases shell sessions and flushes traces
func (s *Service) Close() error {
	var errs []error
	for _, sh := range s.shells {
		if err := sh.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.shells = nil
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Submit publishes a batch specification into the batch directory at dir.
// registrars supply the flags the running hook accepts.
func Submit(ctx context.Context, fs afs.Service, dir, spec string, registrars ...batch.FlagRegistrar) error {
	if _, err := batch.ParseLine(spec, registrars...); err != nil {
		return fmt.Errorf("invalid batch specification: %w", err)
	}
	if fs == nil {
		fs = afs.New()
	}
	queue, err := fsqueue.NewQueue(ctx, fs, dir)
	if err != nil {
		return err
	}
	return queue.Publish(ctx, &spec)
}
