package batch

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
)

// Modes supported by the command surface
const (
	ModeNightly   = "nightly"
	ModeTinderbox = "tinderbox"
	ModeBuild     = "build"
)

// Args represents the command surface shared by the command line and batch files
type Args struct {
	Mode         string            `json:"mode,omitempty" yaml:"mode,omitempty"`
	Batch        string            `json:"batch,omitempty" yaml:"batch,omitempty"`
	FirstBuild   string            `json:"firstbuild,omitempty" yaml:"firstbuild,omitempty"`
	LastBuild    string            `json:"lastbuild,omitempty" yaml:"lastbuild,omitempty"`
	Processes    int               `json:"processes,omitempty" yaml:"processes,omitempty"`
	Hook         string            `json:"hook,omitempty" yaml:"hook,omitempty"`
	LogDir       string            `json:"logdir,omitempty" yaml:"logdir,omitempty"`
	Repo         string            `json:"repo,omitempty" yaml:"repo,omitempty"`
	Mozconfig    string            `json:"mozconfig,omitempty" yaml:"mozconfig,omitempty"`
	Objdir       string            `json:"objdir,omitempty" yaml:"objdir,omitempty"`
	NoPull       bool              `json:"noPull,omitempty" yaml:"noPull,omitempty"`
	StatusFile   string            `json:"statusFile,omitempty" yaml:"statusFile,omitempty"`
	StatusResume bool              `json:"statusResume,omitempty" yaml:"statusResume,omitempty"`
	Prioritize   bool              `json:"prioritize,omitempty" yaml:"prioritize,omitempty"`
	Config       string            `json:"config,omitempty" yaml:"config,omitempty"`
	Extra        map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// IsRange returns true when a last build was supplied
func (a *Args) IsRange() bool {
	return a.LastBuild != ""
}

// Lookup returns a value registered by an extension flag
func (a *Args) Lookup(name string) (string, bool) {
	if a == nil || a.Extra == nil {
		return "", false
	}
	v, ok := a.Extra[name]
	return v, ok
}

// Merged returns the batch value when set, otherwise the global one. It is used
// for build-mode settings a batch may override.
func Merged(batchValue, globalValue string) string {
	if batchValue != "" {
		return batchValue
	}
	return globalValue
}

// FlagRegistrar extends the command surface with additional flags
type FlagRegistrar interface {
	RegisterFlags(flagSet *pflag.FlagSet)
}

var coreFlags = func() map[string]bool {
	ret := map[string]bool{}
	flagSet := pflag.NewFlagSet("core", pflag.ContinueOnError)
	registerCore(flagSet, &Args{})
	flagSet.VisitAll(func(f *pflag.Flag) { ret[f.Name] = true })
	return ret
}()

// NewFlagSet returns a flag set bound to args with every core flag registered,
// followed by the flags of the supplied registrars.
func NewFlagSet(name string, args *Args, registrars ...FlagRegistrar) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	registerCore(flagSet, args)
	for _, registrar := range registrars {
		if registrar != nil {
			registrar.RegisterFlags(flagSet)
		}
	}
	return flagSet
}

func registerCore(flagSet *pflag.FlagSet, args *Args) {
	flagSet.StringVar(&args.Mode, "mode", "", "nightly or tinderbox or build")
	flagSet.StringVar(&args.Batch, "batch", "", "Batch mode: given a folder name, treat each file within as containing a set of arguments, deleting each file as it is processed")
	flagSet.StringVar(&args.FirstBuild, "firstbuild", "", "For nightly, the date (YYYY-MM-DD) of the first build to test. For tinderbox, the timestamp to start testing builds at. For build, the first revision to build")
	flagSet.StringVar(&args.LastBuild, "lastbuild", "", "[optional] For nightly, the last date to test. For tinderbox, the timestamp to stop testing builds at. For build, the last revision to build. If omitted, firstbuild is the only build tested")
	flagSet.IntVarP(&args.Processes, "processes", "p", 0, "Number of tests to run in parallel (default from config, 1)")
	flagSet.StringVar(&args.Hook, "hook", "", "Executable invoked as '<hook> should-test' and '<hook> run-tests' for each build")
	flagSet.StringVarP(&args.LogDir, "logdir", "l", "", "Directory to log progress to. Creates tester.log and <revision>.build.log for compile builds")
	flagSet.StringVar(&args.Repo, "repo", "", "The checked out repository used to resolve full revisions and, in build mode, to compile")
	flagSet.StringVar(&args.Mozconfig, "mozconfig", "", "For build mode, the mozconfig to use")
	flagSet.StringVar(&args.Objdir, "objdir", "", "For build mode, the objdir the mozconfig will create")
	flagSet.BoolVar(&args.NoPull, "no-pull", false, "Don't pull the repository before resolving or building a commit")
	flagSet.StringVar(&args.StatusFile, "status-file", "", "A file to keep a dump of the current job status in. The file is renamed into place to avoid read/write races")
	flagSet.BoolVar(&args.StatusResume, "status-resume", false, "Resume any jobs still present in the status file")
	flagSet.BoolVar(&args.Prioritize, "prioritize", false, "For batched builds, insert at the beginning of the pending queue rather than the end")
	flagSet.StringVar(&args.Config, "config", "", "Path of a configuration file")
}

// Parse parses tokens with the command grammar
func Parse(tokens []string, output io.Writer, registrars ...FlagRegistrar) (*Args, error) {
	args := &Args{}
	flagSet := NewFlagSet("batchtester", args, registrars...)
	if output == nil {
		output = io.Discard
	}
	flagSet.SetOutput(output)
	if err := flagSet.Parse(tokens); err != nil {
		return nil, err
	}
	if flagSet.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(flagSet.Args(), " "))
	}
	flagSet.Visit(func(f *pflag.Flag) {
		if coreFlags[f.Name] {
			return
		}
		if args.Extra == nil {
			args.Extra = map[string]string{}
		}
		args.Extra[f.Name] = f.Value.String()
	})
	return args, nil
}

// ParseLine tokenizes and parses a batch specification
func ParseLine(line string, registrars ...FlagRegistrar) (*Args, error) {
	tokens, err := Tokenize(line)
	if err != nil {
		return nil, err
	}
	return Parse(tokens, nil, registrars...)
}
