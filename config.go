package batchtester

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/viant/batchtester/service/orchestrator"
	"github.com/viant/batchtester/service/pool"
	"github.com/viant/batchtester/service/source"
)

// EnvPrefix prefixes environment variables overriding configuration, e.g. BATCHTESTER_PROCESSES
const EnvPrefix = "BATCHTESTER"

// DefaultConfigName is looked up in the working directory when no config file is given
const DefaultConfigName = "batchtester"

// Config is a serialisable representation of the engine configuration. It can
// be populated from YAML, environment variables or both; fields that are not
// set inherit DefaultConfig values.
type Config struct {
	Processes       int           `yaml:"processes" mapstructure:"processes"`
	AdmissionFactor int           `yaml:"admissionFactor" mapstructure:"admissionFactor"`
	PollInterval    time.Duration `yaml:"pollInterval" mapstructure:"pollInterval"`
	SweepAge        time.Duration `yaml:"sweepAge" mapstructure:"sweepAge"`
	BasePort        int           `yaml:"basePort" mapstructure:"basePort"`

	Archive source.ArchiveConfig `yaml:"archive" mapstructure:"archive"`
	Compile source.CompileConfig `yaml:"compile" mapstructure:"compile"`
	Hg      HgConfig             `yaml:"hg" mapstructure:"hg"`
	Hook    HookConfig           `yaml:"hook" mapstructure:"hook"`

	// TraceFile enables span export to the supplied file when set
	TraceFile string `yaml:"traceFile" mapstructure:"traceFile"`
}

// HgConfig configures the Mercurial client
type HgConfig struct {
	Binary string `yaml:"binary" mapstructure:"binary"`
	// Timeout bounds a single hg command when positive
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// HookConfig configures hook invocations
type HookConfig struct {
	// RunTimeout bounds a single run-tests invocation when positive
	RunTimeout time.Duration `yaml:"runTimeout" mapstructure:"runTimeout"`
}

// DefaultConfig returns a Config populated with the package defaults. Callers
// may modify the returned struct before passing it to New.
func DefaultConfig() *Config {
	defaults := orchestrator.DefaultConfig()
	return &Config{
		Processes:       defaults.Processes,
		AdmissionFactor: defaults.AdmissionFactor,
		PollInterval:    defaults.PollInterval,
		SweepAge:        defaults.SweepAge,
		BasePort:        pool.DefaultBasePort,
		Archive:         source.DefaultArchiveConfig(),
		Compile:         source.DefaultCompileConfig(),
		Hg:              HgConfig{Binary: "hg"},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	orchestratorConfig := c.Orchestrator()
	var errs []error
	if err := orchestratorConfig.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Archive.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("archive: %w", err))
	}
	if err := c.Compile.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("compile: %w", err))
	}
	if c.Hg.Binary == "" {
		errs = append(errs, fmt.Errorf("hg.binary was empty"))
	}
	if c.Hg.Timeout < 0 || c.Compile.Timeout < 0 || c.Hook.RunTimeout < 0 {
		errs = append(errs, fmt.Errorf("timeouts can not be negative"))
	}
	return errors.Join(errs...)
}

// Orchestrator returns the scheduler part of the configuration
func (c *Config) Orchestrator() orchestrator.Config {
	return orchestrator.Config{
		Processes:       c.Processes,
		AdmissionFactor: c.AdmissionFactor,
		PollInterval:    c.PollInterval,
		SweepAge:        c.SweepAge,
		BasePort:        c.BasePort,
	}
}

// LoadConfig loads configuration from defaults, the optional file at location
// (./batchtester.yaml when empty) and BATCHTESTER_ prefixed environment variables.
func LoadConfig(location string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if location != "" {
		v.SetConfigFile(location)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if location != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	ret := &Config{}
	if err := v.Unmarshal(ret); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return ret, nil
}

// setDefaults registers every key so that environment variables can override nested values
func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("processes", defaults.Processes)
	v.SetDefault("admissionFactor", defaults.AdmissionFactor)
	v.SetDefault("pollInterval", defaults.PollInterval)
	v.SetDefault("sweepAge", defaults.SweepAge)
	v.SetDefault("basePort", defaults.BasePort)
	v.SetDefault("archive.baseURL", defaults.Archive.BaseURL)
	v.SetDefault("archive.nightlyPath", defaults.Archive.NightlyPath)
	v.SetDefault("archive.tinderboxPath", defaults.Archive.TinderboxPath)
	v.SetDefault("archive.branch", defaults.Archive.Branch)
	v.SetDefault("archive.platform", defaults.Archive.Platform)
	v.SetDefault("archive.archiveExt", defaults.Archive.ArchiveExt)
	v.SetDefault("archive.binaryPath", defaults.Archive.BinaryPath)
	v.SetDefault("compile.command", defaults.Compile.Command)
	v.SetDefault("compile.binaryPath", defaults.Compile.BinaryPath)
	v.SetDefault("compile.timeout", defaults.Compile.Timeout)
	v.SetDefault("hg.binary", defaults.Hg.Binary)
	v.SetDefault("hg.timeout", defaults.Hg.Timeout)
	v.SetDefault("hook.runTimeout", defaults.Hook.RunTimeout)
	v.SetDefault("traceFile", defaults.TraceFile)
}
