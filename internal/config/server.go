package config

import (
	"fmt"
	"time"

	"github.com/rezkam/shopfloor/internal/env"
)

// ServerConfig holds all configuration for the server binary.
type ServerConfig struct {
	Storage         StorageConfig
	Scheduler       SchedulerConfig
	Redis           RedisConfig
	HTTP            HTTPConfig
	Observability   ObservabilityConfig
	ShutdownTimeout time.Duration `env:"SHOPFLOOR_SHUTDOWN_TIMEOUT" default:"10s"`
}

// Validate validates cross-section settings.
func (c *ServerConfig) Validate() error {
	return validateLockTTL(c.Redis, c.Scheduler)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host              string        `env:"SHOPFLOOR_HTTP_HOST"`
	Port              string        `env:"SHOPFLOOR_HTTP_PORT" default:"8081"`
	ReadTimeout       time.Duration `env:"SHOPFLOOR_HTTP_READ_TIMEOUT" default:"5s"`
	WriteTimeout      time.Duration `env:"SHOPFLOOR_HTTP_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout       time.Duration `env:"SHOPFLOOR_HTTP_IDLE_TIMEOUT" default:"120s"`
	ReadHeaderTimeout time.Duration `env:"SHOPFLOOR_HTTP_READ_HEADER_TIMEOUT" default:"5s"`
	MaxHeaderBytes    int           `env:"SHOPFLOOR_HTTP_MAX_HEADER_BYTES" default:"1048576"`
	MaxBodyBytes      int64         `env:"SHOPFLOOR_HTTP_MAX_BODY_BYTES" default:"1048576"`
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// LoadServerConfig loads and validates server configuration from environment.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	return cfg, nil
}
