package jobqueue

import "time"

// Config holds configuration for the manager.
type Config struct {
	// Concurrency is the number of worker goroutines executing holders.
	Concurrency int

	// IdlePollInterval is how long an idle worker waits before
	// re-checking the queue when no wake-up or delay timer applies.
	IdlePollInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:      5,
		IdlePollInterval: 1 * time.Second,
		ShutdownTimeout:  30 * time.Second,
	}
}
