package config

import (
	"fmt"
	"time"

	"github.com/rezkam/shopfloor/internal/env"
)

// WorkerConfig holds all configuration for the worker binary.
type WorkerConfig struct {
	Storage       StorageConfig
	Scheduler     SchedulerConfig
	Redis         RedisConfig
	Observability ObservabilityConfig

	// Schedule is a cron expression or descriptor such as "@every 15m".
	Schedule         string        `env:"SHOPFLOOR_WORKER_SCHEDULE" default:"@every 15m"`
	Concurrency      int           `env:"SHOPFLOOR_WORKER_CONCURRENCY" default:"4"`
	OperationTimeout time.Duration `env:"SHOPFLOOR_WORKER_OPERATION_TIMEOUT" default:"5m"`
}

// Validate validates cross-section settings.
func (c *WorkerConfig) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("SHOPFLOOR_WORKER_CONCURRENCY must be positive, got %d", c.Concurrency)
	}
	return validateLockTTL(c.Redis, c.Scheduler)
}

// LoadWorkerConfig loads and validates worker configuration from environment.
func LoadWorkerConfig() (*WorkerConfig, error) {
	cfg := &WorkerConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load worker config: %w", err)
	}

	return cfg, nil
}
