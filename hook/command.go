package hook

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"github.com/viant/batchtester/model/batch"
	"github.com/viant/batchtester/model/build"
	"github.com/viant/batchtester/service/shell"
)

// ArgsFlag is the flag whose value is appended to every hook invocation
const ArgsFlag = "hook-args"

// RunnerFactory creates a shell runner with the supplied environment
type RunnerFactory func(env map[string]string, timeout time.Duration) shell.Runner

// Command runs an executable as "<hook> should-test" and "<hook> run-tests",
// describing the build through BUILD_* environment variables. Exit status 0
// means "test it" and "tests passed" respectively.
type Command struct {
	executable string
	runTimeout time.Duration
	newRunner  RunnerFactory
}

// CommandOption configures Command
type CommandOption func(c *Command)

// WithRunTimeout bounds a single run-tests invocation; zero, the default, waits until the hook exits
func WithRunTimeout(timeout time.Duration) CommandOption {
	return func(c *Command) {
		c.runTimeout = timeout
	}
}

// WithRunnerFactory replaces the gosh backed shell
func WithRunnerFactory(factory RunnerFactory) CommandOption {
	return func(c *Command) {
		c.newRunner = factory
	}
}

// NewCommand creates a command hook for executable
func NewCommand(executable string, options ...CommandOption) *Command {
	ret := &Command{
		executable: executable,
		newRunner: func(env map[string]string, timeout time.Duration) shell.Runner {
			return shell.New(env, timeout)
		},
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// RegisterFlags implements Hook
func (c *Command) RegisterFlags(flagSet *pflag.FlagSet) {
	if flagSet.Lookup(ArgsFlag) != nil {
		return
	}
	flagSet.String(ArgsFlag, "", "Extra arguments appended to every hook invocation")
}

// ShouldTest implements Hook; a failing invocation is logged and treated as a rejection
func (c *Command) ShouldTest(ctx context.Context, b *build.BatchBuild, args *batch.Args) bool {
	_, err := c.invoke(ctx, "should-test", Environment(ctx, b, args), args, 0)
	if err != nil {
		log.Printf("hook rejected %v: %v", b, err)
		return false
	}
	return true
}

// RunTests implements Hook
func (c *Command) RunTests(ctx context.Context, b *build.BatchBuild, args *batch.Args) error {
	env := Environment(ctx, b, args)
	binary, err := b.Source.Binary()
	if err != nil {
		return err
	}
	env["BUILD_BINARY"] = binary
	_, err = c.invoke(ctx, "run-tests", env, args, c.runTimeout)
	return err
}

func (c *Command) invoke(ctx context.Context, action string, env map[string]string, args *batch.Args, timeout time.Duration) (string, error) {
	runner := c.newRunner(env, timeout)
	if closer, ok := runner.(io.Closer); ok {
		defer closer.Close()
	}
	command := shell.Quote(c.executable) + " " + action
	if extra, ok := args.Lookup(ArgsFlag); ok && extra != "" {
		command += " " + extra
	}
	return shell.Exec(ctx, runner, command)
}

// Environment describes b as BUILD_* variables
func Environment(ctx context.Context, b *build.BatchBuild, args *batch.Args) map[string]string {
	record := b.Record()
	env := map[string]string{
		"BUILD_KIND":     string(record.Type),
		"BUILD_REVISION": record.Revision,
	}
	if record.Timestamp > 0 {
		env["BUILD_TIMESTAMP"] = strconv.FormatInt(record.Timestamp, 10)
	}
	if record.For != "" {
		env["BUILD_FOR"] = record.For
	}
	if b.Index != nil {
		env["BUILD_INDEX"] = strconv.Itoa(*b.Index)
	}
	if port := Port(ctx); port > 0 {
		env["BUILD_PORT"] = strconv.Itoa(port)
	}
	if args != nil {
		if args.LogDir != "" {
			env["BUILD_LOGDIR"] = args.LogDir
		}
		if args.Repo != "" {
			env["BUILD_REPO"] = args.Repo
		}
	}
	return env
}

func (c *Command) String() string {
	return fmt.Sprintf("hook(%s)", c.executable)
}

var _ Hook = (*Command)(nil)
