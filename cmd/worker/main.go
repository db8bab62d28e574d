package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rezkam/shopfloor/internal/app"
	"github.com/rezkam/shopfloor/internal/application/worker"
	"github.com/rezkam/shopfloor/internal/config"
	"github.com/rezkam/shopfloor/internal/infrastructure/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		return err
	}

	schedule, err := worker.ParseSchedule(cfg.Schedule)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTelemetry, err := observability.Setup(ctx, observability.Config{
		Enabled:     cfg.Observability.OTelEnabled,
		ServiceName: cfg.Observability.ServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown telemetry", "error", err)
		}
	}()

	rt, err := app.New(ctx, cfg.Storage, cfg.Scheduler, cfg.Redis)
	if err != nil {
		return err
	}
	defer rt.Close()

	w := worker.New(rt.Store, rt.Scheduler,
		worker.WithSchedule(schedule),
		worker.WithConcurrency(cfg.Concurrency),
		worker.WithOperationTimeout(cfg.OperationTimeout),
	)

	slog.InfoContext(ctx, "starting recurring project worker", "schedule", cfg.Schedule)
	return w.Start(ctx)
}
