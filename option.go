package batchtester

import (
	"log"

	"github.com/viant/afs"
	"github.com/viant/batchtester/hook"
	"github.com/viant/batchtester/service/shell"
	"github.com/viant/batchtester/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures Service
type Option func(s *Service)

// WithConfig sets the engine configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithLogger sets the progress logger
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFs sets the file system used for archives, the status file and the batch directory
func WithFs(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithHook sets the admission hook, overriding the --hook executable
func WithHook(h hook.Hook) Option {
	return func(s *Service) {
		s.hook = h
	}
}

// WithRunner sets the shell used for hg and compile commands
func WithRunner(runner shell.Runner) Option {
	return func(s *Service) {
		s.runner = runner
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path. The first
// successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		if err := tracing.Init(serviceName, serviceVersion, outputFile); err != nil {
			s.logger.Printf("failed to initialise tracing: %v", err)
		}
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		if err := tracing.InitWithExporter(serviceName, serviceVersion, exporter); err != nil {
			s.logger.Printf("failed to initialise tracing: %v", err)
		}
	}
}
