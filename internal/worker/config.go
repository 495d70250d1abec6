package worker

import (
	"fmt"
	"time"
)

// Config holds the configuration for the in-memory job worker.
type Config struct {
	// Concurrency is the number of worker goroutines draining the queue.
	// Default: 2
	Concurrency int

	// QueueSize is the number of jobs that may wait for a worker. Enqueue
	// fails with ErrQueueFull once the queue is at capacity.
	// Default: 64
	QueueSize int

	// MaxAttempts is how many times a job runs before it is given up on.
	// Permanent errors are never retried.
	// Default: 2
	MaxAttempts int

	// JobTimeout is the maximum time a single job is allowed to run.
	// Default: 30 seconds
	JobTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for queued and running jobs.
	// Default: 30 seconds
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Concurrency:     2,
		QueueSize:       64,
		MaxAttempts:     2,
		JobTimeout:      30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Concurrency > 100 {
		return fmt.Errorf("concurrency too high (max 100), got %d", c.Concurrency)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1, got %d", c.QueueSize)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.JobTimeout < 1*time.Second {
		return fmt.Errorf("job timeout must be at least 1 second, got %v", c.JobTimeout)
	}
	if c.ShutdownTimeout < 1*time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	return nil
}
