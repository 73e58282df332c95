package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration so YAML files can say "30s" or "2m".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// RetryConfig tunes the resilience wrapper around executor calls.
// Disabled means one attempt per invocation: a failed call fails the
// task.
type RetryConfig struct {
	Enabled             bool     `yaml:"enabled"`
	InitialInterval     Duration `yaml:"initial_interval,omitempty"`
	MaxInterval         Duration `yaml:"max_interval,omitempty"`
	MaxElapsedTime      Duration `yaml:"max_elapsed_time,omitempty"`
	Multiplier          float64  `yaml:"multiplier,omitempty"`
	RandomizationFactor float64  `yaml:"randomization_factor,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	// DBPath is where the sqlite database lives. "memory" selects an
	// in-memory store.
	DBPath string `yaml:"db_path"`
	// Concurrency bounds how many executors run at once.
	Concurrency int `yaml:"concurrency"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	Retry    RetryConfig `yaml:"retry"`
}
