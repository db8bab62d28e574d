// Package app assembles the scheduler and its adapters from configuration.
// Every binary builds its runtime through here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/rezkam/shopfloor/internal/application/scheduler"
	"github.com/rezkam/shopfloor/internal/config"
	"github.com/rezkam/shopfloor/internal/infrastructure/lock"
	"github.com/rezkam/shopfloor/internal/infrastructure/persistence/document"
	"github.com/rezkam/shopfloor/internal/infrastructure/persistence/memory"
	"github.com/rezkam/shopfloor/internal/infrastructure/persistence/postgres"
	"github.com/rezkam/shopfloor/internal/infrastructure/persistence/sqlite"
	"github.com/rezkam/shopfloor/internal/recurring"
	"github.com/rezkam/shopfloor/internal/storage/fs"
	"github.com/rezkam/shopfloor/internal/storage/gcs"
)

// Store is the persistence the scheduler runs on.
type Store interface {
	scheduler.DefinitionRepository
	scheduler.Ledger
	scheduler.ProjectCreator
}

// Runtime holds the assembled scheduler and the resources it owns.
type Runtime struct {
	Store     Store
	Scheduler *scheduler.Scheduler

	// closers run in reverse order of registration.
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

func (r *Runtime) onClose(name string, fn func() error) {
	r.closers = append(r.closers, namedCloser{name: name, close: fn})
}

// Close releases everything the runtime opened, newest first, so the lock
// goes before the store it protects.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.close(); err != nil {
			slog.Error("failed to close "+c.name, "error", err)
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// New opens the configured store, the lock and holiday calendars and builds
// a scheduler over them.
func New(ctx context.Context, storage config.StorageConfig, sched config.SchedulerConfig, redis config.RedisConfig) (*Runtime, error) {
	rt := &Runtime{}

	store, closeStore, err := OpenStore(ctx, storage)
	if err != nil {
		return nil, err
	}
	rt.Store = store
	rt.onClose("store", closeStore)

	holidays, err := recurring.LoadHolidayCalendars(sched.HolidayCalendars)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to load holiday calendars: %w", err), rt.Close())
	}

	opts := []scheduler.Option{
		scheduler.WithCreateTimeout(sched.CreateTimeout),
		scheduler.WithMaxConsecutiveFailures(sched.MaxConsecutiveFailures),
		scheduler.WithHolidayCalendar(holidays),
	}

	if redis.Enabled() {
		locker, err := lock.NewRedisLocker(ctx, redis.URL, lock.WithTTL(redis.LockTTL))
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to connect lock: %w", err), rt.Close())
		}
		rt.onClose("redis locker", locker.Close)
		opts = append(opts, scheduler.WithLocker(locker))
		slog.InfoContext(ctx, "distributed lock enabled", "redis", RedactURL(redis.URL), "ttl", redis.LockTTL)
	} else {
		slog.InfoContext(ctx, "using in-process lock; run a single scheduler process")
	}

	rt.Scheduler = scheduler.New(store, store, store, opts...)
	return rt, nil
}

// OpenStore opens the configured backend. The returned function closes it.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		store, err := postgres.NewStoreWithConfig(ctx, postgres.DBConfig{
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create postgres store: %w", err)
		}
		slog.InfoContext(ctx, "storage initialized", "backend", cfg.Backend, "url", RedactURL(cfg.Database.DSN))
		return store, store.Close, nil

	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		slog.InfoContext(ctx, "storage initialized", "backend", cfg.Backend, "path", cfg.SQLitePath)
		return store, store.Close, nil

	case config.BackendFS:
		bucket, err := fs.NewStore(cfg.FSDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open fs bucket: %w", err)
		}
		slog.InfoContext(ctx, "storage initialized", "backend", cfg.Backend, "dir", cfg.FSDir)
		return document.NewStore(bucket), func() error { return nil }, nil

	case config.BackendGCS:
		bucket, err := gcs.NewStore(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open gcs bucket: %w", err)
		}
		slog.InfoContext(ctx, "storage initialized", "backend", cfg.Backend, "bucket", cfg.GCSBucket, "prefix", cfg.GCSPrefix)
		return document.NewStore(bucket), bucket.Close, nil

	case config.BackendMemory:
		slog.WarnContext(ctx, "using in-memory storage; state is lost on exit")
		return memory.New(), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
}

// Migrate applies schema migrations for SQL backends. Other backends have no
// schema and are left untouched.
func Migrate(ctx context.Context, cfg config.StorageConfig) error {
	switch cfg.Backend {
	case config.BackendPostgres:
		return postgres.Migrate(ctx, cfg.Database.DSN)
	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return err
		}
		return store.Close()
	default:
		slog.InfoContext(ctx, "backend has no schema to migrate", "backend", cfg.Backend)
		return nil
	}
}

// RedactURL masks the password in a connection URL for logging.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[REDACTED]"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxxx")
		}
	}
	return u.String()
}
