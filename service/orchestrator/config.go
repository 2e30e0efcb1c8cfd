package orchestrator

import (
	"fmt"
	"time"

	"github.com/viant/batchtester/service/pool"
)

// Config represents orchestrator configuration
type Config struct {
	// Processes is the worker pool size
	Processes int
	// AdmissionFactor bounds prepared, building and running builds to AdmissionFactor * Processes
	AdmissionFactor int
	// PollInterval is how long the loop sleeps after a tick without progress
	PollInterval time.Duration
	// SweepAge is how long finished builds and batches are kept in continuous mode
	SweepAge time.Duration
	// BasePort is the first port reserved for test runs
	BasePort int
	// Resume re-enqueues unfinished builds from the persisted status on start
	Resume bool
}

// DefaultConfig returns the default orchestrator configuration
func DefaultConfig() Config {
	return Config{
		Processes:       1,
		AdmissionFactor: 2,
		PollInterval:    time.Second,
		SweepAge:        24 * time.Hour,
		BasePort:        pool.DefaultBasePort,
	}
}

// Validate checks configuration
func (c *Config) Validate() error {
	if c.Processes < 1 {
		return fmt.Errorf("processes must be at least 1, got %d", c.Processes)
	}
	if c.AdmissionFactor < 1 {
		return fmt.Errorf("admission factor must be at least 1, got %d", c.AdmissionFactor)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.SweepAge <= 0 {
		return fmt.Errorf("sweep age must be positive")
	}
	if c.BasePort <= 0 || c.BasePort > 65535 {
		return fmt.Errorf("invalid base port %d", c.BasePort)
	}
	return nil
}

// admissionLimit returns the bound on prepared, building and running builds
func (c *Config) admissionLimit() int {
	return c.AdmissionFactor * c.Processes
}
