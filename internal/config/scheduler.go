package config

import (
	"fmt"
	"time"
)

// SchedulerConfig holds scheduling behavior shared by every binary.
type SchedulerConfig struct {
	// CreateTimeout bounds one call to the project-creation collaborator.
	CreateTimeout time.Duration `env:"SHOPFLOOR_CREATE_TIMEOUT" default:"30s"`

	// MaxConsecutiveFailures deactivates a definition after that many failed
	// attempts in a row. Zero disables escalation.
	MaxConsecutiveFailures int `env:"SHOPFLOOR_MAX_CONSECUTIVE_FAILURES" default:"5"`

	// HolidayCalendars are YAML files whose dates are merged into patterns with SkipHolidays.
	HolidayCalendars []string `env:"SHOPFLOOR_HOLIDAY_CALENDARS"`
}

// Validate validates the scheduler configuration.
func (c *SchedulerConfig) Validate() error {
	if c.CreateTimeout <= 0 {
		return fmt.Errorf("SHOPFLOOR_CREATE_TIMEOUT must be positive, got %s", c.CreateTimeout)
	}
	if c.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("SHOPFLOOR_MAX_CONSECUTIVE_FAILURES must not be negative, got %d", c.MaxConsecutiveFailures)
	}
	return nil
}

// RedisConfig enables the shared per-definition lock. Without a URL the
// in-process lock is used, which is only safe for a single process.
type RedisConfig struct {
	URL     string        `env:"SHOPFLOOR_REDIS_URL"`
	LockTTL time.Duration `env:"SHOPFLOOR_REDIS_LOCK_TTL" default:"2m"`
}

// Enabled reports whether a Redis URL is configured.
func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

// validateLockTTL checks that a lock outlives one project creation call.
func validateLockTTL(redis RedisConfig, scheduler SchedulerConfig) error {
	if redis.Enabled() && redis.LockTTL <= scheduler.CreateTimeout {
		return fmt.Errorf("SHOPFLOOR_REDIS_LOCK_TTL (%s) must exceed SHOPFLOOR_CREATE_TIMEOUT (%s)",
			redis.LockTTL, scheduler.CreateTimeout)
	}
	return nil
}
