package config

import "time"

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		DBPath:      ".tasktree/tasks.db",
		Concurrency: 4,
		LogLevel:    "info",
		Retry: RetryConfig{
			Enabled:             false,
			InitialInterval:     Duration(100 * time.Millisecond),
			MaxInterval:         Duration(10 * time.Second),
			MaxElapsedTime:      Duration(2 * time.Minute),
			Multiplier:          2.0,
			RandomizationFactor: 0.5,
		},
	}
}
