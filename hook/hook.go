// Package hook defines the test payload invoked for every build.
package hook

import (
	"context"
	"errors"

	"github.com/spf13/pflag"
	"github.com/viant/batchtester/model/batch"
	"github.com/viant/batchtester/model/build"
)

// ErrMissing is returned by RunTests when no hook was configured
var ErrMissing = errors.New("cannot test builds without a --hook providing run-tests")

// Hook decides whether a build is worth testing and runs its tests
type Hook interface {
	// ShouldTest returns false to skip the build, typically when results already exist
	ShouldTest(ctx context.Context, b *build.BatchBuild, args *batch.Args) bool

	// RunTests tests a prepared build
	RunTests(ctx context.Context, b *build.BatchBuild, args *batch.Args) error

	// RegisterFlags adds hook options to the command surface
	RegisterFlags(flagSet *pflag.FlagSet)
}

type portKey struct{}

// WithPort returns a context carrying the port reserved for a test run
func WithPort(ctx context.Context, port int) context.Context {
	return context.WithValue(ctx, portKey{}, port)
}

// Port returns the port reserved for the test run, 0 when none
func Port(ctx context.Context) int {
	port, _ := ctx.Value(portKey{}).(int)
	return port
}

// Missing tests every build and fails each run
type Missing struct{}

func (Missing) ShouldTest(context.Context, *build.BatchBuild, *batch.Args) bool { return true }

func (Missing) RunTests(context.Context, *build.BatchBuild, *batch.Args) error { return ErrMissing }

func (Missing) RegisterFlags(*pflag.FlagSet) {}

var _ Hook = Missing{}
