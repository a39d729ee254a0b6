package worker

import (
	"fmt"
	"time"
)

// Config tunes the background job worker.
type Config struct {
	// Concurrency is how many goroutines poll for jobs in parallel.
	Concurrency int

	// PollInterval is the idle wait between queue checks per goroutine.
	PollInterval time.Duration

	// JobTimeout bounds a single handler invocation. The handler's
	// context is canceled when it elapses and the job counts as failed.
	JobTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for in-flight jobs.
	ShutdownTimeout time.Duration

	// StaleJobThreshold is the age past which a 'running' job is assumed
	// orphaned by a crash and requeued on startup.
	StaleJobThreshold time.Duration
}

// DefaultConfig returns the settings used when nothing is configured:
// two workers, 5s polling, 5m per job.
func DefaultConfig() Config {
	return Config{
		Concurrency:       2,
		PollInterval:      5 * time.Second,
		JobTimeout:        5 * time.Minute,
		ShutdownTimeout:   30 * time.Second,
		StaleJobThreshold: 10 * time.Minute,
	}
}

// Validate rejects settings that would hammer the database or wedge the
// worker.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Concurrency > 100 {
		return fmt.Errorf("concurrency too high (max 100), got %d", c.Concurrency)
	}
	if c.PollInterval < 1*time.Second {
		return fmt.Errorf("poll interval must be at least 1 second, got %v", c.PollInterval)
	}
	if c.JobTimeout < 1*time.Second {
		return fmt.Errorf("job timeout must be at least 1 second, got %v", c.JobTimeout)
	}
	if c.ShutdownTimeout < 1*time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	if c.StaleJobThreshold < 1*time.Minute {
		return fmt.Errorf("stale job threshold must be at least 1 minute, got %v", c.StaleJobThreshold)
	}
	return nil
}
