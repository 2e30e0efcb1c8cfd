package source

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/viant/batchtester/model/build"
	"github.com/viant/batchtester/service/shell"
	"github.com/viant/batchtester/service/vcs"
)

// CompileConfig configures local builds
type CompileConfig struct {
	// Command runs in the repository with MOZCONFIG exported
	Command string `yaml:"command" mapstructure:"command"`
	// BinaryPath is the executable location relative to the objdir
	BinaryPath string `yaml:"binaryPath" mapstructure:"binaryPath"`
	// Timeout bounds the build command when positive
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// DefaultCompileConfig returns mach based defaults
func DefaultCompileConfig() CompileConfig {
	return CompileConfig{
		Command:    "./mach build",
		BinaryPath: "dist/bin/firefox",
	}
}

// Validate checks compile configuration
func (c *CompileConfig) Validate() error {
	if c.Command == "" {
		return fmt.Errorf("compile command was empty")
	}
	if c.BinaryPath == "" {
		return fmt.Errorf("compile binaryPath was empty")
	}
	return nil
}

// CompileSpec identifies one local build
type CompileSpec struct {
	Repo      string
	Mozconfig string
	Objdir    string
	Commit    string
	// LogFile receives build output when set
	LogFile string
	Pull    bool
}

// BuildLogFile returns the per commit build log location, empty without a log dir
func BuildLogFile(logDir, commit string) string {
	if logDir == "" {
		return ""
	}
	return filepath.Join(logDir, commit+".build.log")
}

// Builder compiles commits of a local checkout
type Builder struct {
	runner shell.Runner
	hg     *vcs.Mercurial
	config CompileConfig
}

// NewBuilder creates a builder
func NewBuilder(runner shell.Runner, hg *vcs.Mercurial, config CompileConfig) *Builder {
	return &Builder{runner: runner, hg: hg, config: config}
}

// New creates a compile source for spec
func (b *Builder) New(spec CompileSpec) *Compile {
	return &Compile{builder: b, spec: spec}
}

// Compile represents a build compiled from a source checkout
type Compile struct {
	builder    *Builder
	spec       CompileSpec
	prepareMux sync.Mutex
	mux        sync.Mutex
	buildTime  time.Time
	prepared   bool
}

// Kind implements build.Source
func (c *Compile) Kind() build.Kind { return build.KindCompile }

// Spec returns the build specification
func (c *Compile) Spec() CompileSpec { return c.spec }

// Prepare updates the checkout to the commit and runs the compile command
func (c *Compile) Prepare(ctx context.Context) error {
	c.prepareMux.Lock()
	defer c.prepareMux.Unlock()
	c.mux.Lock()
	prepared := c.prepared
	c.mux.Unlock()
	if prepared {
		return nil
	}
	spec := c.spec
	if spec.Commit == "" {
		return fmt.Errorf("compile commit was empty")
	}
	hg := c.builder.hg
	if spec.Pull {
		if err := hg.Pull(ctx, spec.Repo); err != nil {
			return fmt.Errorf("failed to pull %v: %w", spec.Repo, err)
		}
	}
	if err := hg.Update(ctx, spec.Repo, spec.Commit); err != nil {
		return fmt.Errorf("failed to update %v to %v: %w", spec.Repo, spec.Commit, err)
	}
	committed, err := hg.CommitTime(ctx, spec.Repo, spec.Commit)
	if err != nil {
		return err
	}
	log.Printf("compiling %v in %v", spec.Commit, spec.Repo)
	command := fmt.Sprintf("cd %s && MOZCONFIG=%s %s", shell.Quote(spec.Repo), shell.Quote(spec.Mozconfig), c.builder.config.Command)
	output, runErr := shell.Exec(ctx, c.builder.runner, command)
	if err = c.writeLog(output); err != nil {
		log.Printf("failed to write build log %v: %v", spec.LogFile, err)
	}
	if runErr != nil {
		return fmt.Errorf("failed to compile %v: %w", spec.Commit, runErr)
	}
	c.mux.Lock()
	c.buildTime = committed
	c.prepared = true
	c.mux.Unlock()
	return nil
}

func (c *Compile) writeLog(output string) error {
	if c.spec.LogFile == "" {
		return nil
	}
	writer, err := os.OpenFile(c.spec.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err = writer.WriteString(output); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

// Cleanup releases the build; the objdir belongs to the checkout and is kept for incremental builds
func (c *Compile) Cleanup() error {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.prepared = false
	return nil
}

// Revision returns the commit
func (c *Compile) Revision(_ context.Context) (string, error) {
	if c.spec.Commit == "" {
		return "", fmt.Errorf("compile commit was empty")
	}
	return c.spec.Commit, nil
}

// BuildTime returns the commit time, zero before Prepare
func (c *Compile) BuildTime() time.Time {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.buildTime
}

// Binary returns the compiled executable
func (c *Compile) Binary() (string, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if !c.prepared {
		return "", ErrNotPrepared
	}
	return filepath.Join(c.spec.Objdir, filepath.FromSlash(c.builder.config.BinaryPath)), nil
}

func (c *Compile) String() string {
	return fmt.Sprintf("compile(%s)", c.spec.Commit)
}

var _ build.Source = (*Compile)(nil)
