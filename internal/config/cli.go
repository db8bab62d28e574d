package config

import (
	"fmt"

	"github.com/rezkam/shopfloor/internal/env"
)

// CLIConfig holds configuration for the operator command-line tool. Ticks
// from the CLI take the same lock as the worker when Redis is configured.
type CLIConfig struct {
	Storage   StorageConfig
	Scheduler SchedulerConfig
	Redis     RedisConfig
}

// Validate validates cross-section settings.
func (c *CLIConfig) Validate() error {
	return validateLockTTL(c.Redis, c.Scheduler)
}

// LoadCLIConfig loads and validates CLI configuration from environment.
func LoadCLIConfig() (*CLIConfig, error) {
	cfg := &CLIConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load cli config: %w", err)
	}

	return cfg, nil
}
