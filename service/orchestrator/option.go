package orchestrator

import (
	"log"

	"github.com/viant/batchtester/model/batch"
	"github.com/viant/batchtester/model/build"
	"github.com/viant/batchtester/progress"
	"github.com/viant/batchtester/service/messaging"
	"github.com/viant/batchtester/service/status"
)

// Option configures Service
type Option func(*Service)

// WithConfig sets orchestrator configuration
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithStore persists a snapshot after every tick
func WithStore(store status.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithQueue switches to continuous mode, reading batch specifications from queue
func WithQueue(queue messaging.Queue[string]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithFactory sets the factory used to rebuild sources on resume
func WithFactory(factory build.Factory) Option {
	return func(s *Service) {
		s.factory = factory
	}
}

// WithRegistrars adds flags accepted in batch specifications
func WithRegistrars(registrars ...batch.FlagRegistrar) Option {
	return func(s *Service) {
		s.registrars = append(s.registrars, registrars...)
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

// WithProgress replaces the status line logger invoked whenever a counter changes
func WithProgress(onChange func(progress.Progress)) Option {
	return func(s *Service) {
		s.progress = progress.NewTracker(onChange)
	}
}
