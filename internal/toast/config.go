package toast

import (
	"fmt"
	"time"
)

// Config holds the configuration for the withdrawal toast generator.
type Config struct {
	// Interval is the time between two toasts. The first toast is pushed
	// as soon as the generator starts.
	// Default: 45 seconds
	Interval time.Duration

	// ShutdownTimeout is how long Stop waits for the loop to exit.
	// Default: 5 seconds
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Interval:        45 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Interval < 100*time.Millisecond {
		return fmt.Errorf("toast interval must be at least 100ms, got %v", c.Interval)
	}
	if c.ShutdownTimeout < 1*time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	return nil
}
