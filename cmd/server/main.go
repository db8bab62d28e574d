package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rezkam/shopfloor/internal/app"
	"github.com/rezkam/shopfloor/internal/config"
	httpserver "github.com/rezkam/shopfloor/internal/infrastructure/http"
	"github.com/rezkam/shopfloor/internal/infrastructure/http/handler"
	"github.com/rezkam/shopfloor/internal/infrastructure/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfig()
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
		// Use a timeout to prevent hanging if collector is unreachable
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

	api := handler.NewSchedulerHandler(rt.Scheduler)
	server := httpserver.NewAPIServer(api.Routes(), cfg.HTTP)

	errResult := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errResult <- fmt.Errorf("failed to serve HTTP: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutting down")

		// The root context is already cancelled; shutdown gets a fresh window.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.WarnContext(shutdownCtx, "HTTP server shutdown timed out", "error", err)
		}
		return nil
	case err := <-errResult:
		return err
	}
}
