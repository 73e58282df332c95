package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ferrovia/tasktree/internal/scheduler"
)

// Load reads and merges configuration from global and project paths.
// Precedence, highest first: project config, global config, defaults.
// Missing files are not errors; malformed YAML is.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from the conventional paths:
// ~/.tasktree/config.yaml, then .tasktree/config.yaml in the working
// directory.
func LoadDefault() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".tasktree", "config.yaml")
	projectPath := filepath.Join(".tasktree", "config.yaml")

	return Load(globalPath, projectPath)
}

// mergeConfigFile decodes a YAML file over the base config. Fields the
// file does not mention keep their current values.
func mergeConfigFile(base *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, base); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// SchedulerConfig translates the file shape into the scheduler's.
func (c *Config) SchedulerConfig() scheduler.Config {
	sc := scheduler.Config{Concurrency: c.Concurrency}
	if c.Retry.Enabled {
		sc.Retry = &scheduler.RetryConfig{
			InitialInterval:     c.Retry.InitialInterval.Std(),
			MaxInterval:         c.Retry.MaxInterval.Std(),
			MaxElapsedTime:      c.Retry.MaxElapsedTime.Std(),
			Multiplier:          c.Retry.Multiplier,
			RandomizationFactor: c.Retry.RandomizationFactor,
		}
	}
	return sc
}

// SlogLevel maps the configured log level onto slog's.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
