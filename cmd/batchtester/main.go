package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/viant/afs"
	"github.com/viant/batchtester"
	"github.com/viant/batchtester/hook"
	"github.com/viant/batchtester/model/batch"
)

const logPrefix = "[batchtester] "

// ExitError carries the process exit code of a startup failure
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func usageError(err error) *ExitError {
	return &ExitError{Code: 2, Message: err.Error()}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run dispatches the "submit" subcommand, defaulting to "run"
func run(ctx context.Context, output io.Writer, args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "submit":
			return submit(ctx, output, args[1:])
		case "run":
			args = args[1:]
		}
	}
	return runTester(ctx, output, args)
}

func runTester(ctx context.Context, output io.Writer, tokens []string) error {
	// hook flags are registered up front so that the hook executable can be read from the same pass
	args, err := batch.Parse(tokens, output, hook.NewCommand(""))
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return usageError(err)
	}
	if err = batchtester.ValidateArgs(args); err != nil {
		return usageError(err)
	}
	config, err := batchtester.LoadConfig(args.Config)
	if err != nil {
		return usageError(err)
	}
	if args.Processes > 0 {
		config.Processes = args.Processes
	}
	logger, closeLog, err := newLogger(output, args.LogDir)
	if err != nil {
		return usageError(err)
	}
	defer closeLog()
	log.SetOutput(logger.Writer())
	log.SetPrefix(logPrefix)

	srv, err := batchtester.New(ctx, args, batchtester.WithConfig(config), batchtester.WithLogger(logger))
	if err != nil {
		return usageError(err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Printf("failed to close: %v", err)
		}
	}()
	if err = srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newLogger writes to output and, when logDir is set, to logDir/tester.log
func newLogger(output io.Writer, logDir string) (*log.Logger, func(), error) {
	if logDir == "" {
		return log.New(output, logPrefix, log.LstdFlags), func() {}, nil
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory %v: %w", logDir, err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, "tester.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log: %w", err)
	}
	return log.New(io.MultiWriter(output, f), logPrefix, log.LstdFlags), func() { _ = f.Close() }, nil
}

// submit writes the batch specification following "--" into the batch directory
func submit(ctx context.Context, output io.Writer, tokens []string) error {
	flagSet := pflag.NewFlagSet("submit", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	dir := flagSet.String("batch", "", "Batch directory watched by a running tester")
	flagSet.Usage = func() {
		fmt.Fprintln(output, "Usage: batchtester submit --batch <dir> -- <batch arguments>")
		flagSet.PrintDefaults()
	}
	err := flagSet.Parse(tokens)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return usageError(err)
	}
	if *dir == "" {
		return usageError(fmt.Errorf("--batch is required"))
	}
	if flagSet.NArg() == 0 {
		return usageError(fmt.Errorf("no batch arguments were given"))
	}
	spec := batch.Join(flagSet.Args())
	if err = batchtester.Submit(ctx, afs.New(), *dir, spec, hook.NewCommand("")); err != nil {
		return usageError(err)
	}
	fmt.Fprintf(output, "queued %v\n", spec)
	return nil
}
