// Package worker drives the scheduler on a cron cadence, ticking every active
// definition with bounded parallelism.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/rezkam/shopfloor/internal/application/scheduler"
	"github.com/rezkam/shopfloor/internal/domain"
)

// DefinitionLister returns the definitions a run should visit.
type DefinitionLister interface {
	ListActive(ctx context.Context) ([]*domain.RecurringProjectDefinition, error)
}

// Ticker advances one definition. *scheduler.Scheduler satisfies it.
type Ticker interface {
	Tick(ctx context.Context, definitionID string) (scheduler.Action, error)
}

// Summary counts the outcomes of one run.
type Summary struct {
	Checked   int
	Generated int
	Failed    int
	Ended     int
	Noop      int
	Errors    int
	Panics    int // included in Errors
}

// Worker ticks all active definitions whenever its schedule fires.
type Worker struct {
	definitions      DefinitionLister
	ticker           Ticker
	schedule         cron.Schedule
	concurrency      int
	operationTimeout time.Duration // Timeout for one full run
	errorHandler     ErrorHandler
	running          atomic.Bool
	wg               sync.WaitGroup
}

// Option is a functional option for configuring Worker.
type Option func(*Worker)

// WithSchedule sets when runs fire.
func WithSchedule(s cron.Schedule) Option {
	return func(w *Worker) {
		w.schedule = s
	}
}

// WithConcurrency bounds how many definitions are ticked at once.
func WithConcurrency(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithOperationTimeout sets the timeout for a single run.
func WithOperationTimeout(d time.Duration) Option {
	return func(w *Worker) {
		w.operationTimeout = d
	}
}

// WithErrorHandler sets the hook for tick errors and panics.
func WithErrorHandler(h ErrorHandler) Option {
	return func(w *Worker) {
		w.errorHandler = h
	}
}

// ParseSchedule parses a standard five-field cron expression or a descriptor
// such as "@hourly" or "@every 15m".
func ParseSchedule(spec string) (cron.Schedule, error) {
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid worker schedule %q: %w", spec, err)
	}
	return s, nil
}

// New creates a new Worker with the given collaborators and options.
func New(definitions DefinitionLister, ticker Ticker, opts ...Option) *Worker {
	w := &Worker{
		definitions:      definitions,
		ticker:           ticker,
		schedule:         cron.Every(15 * time.Minute),
		concurrency:      4,
		operationTimeout: 5 * time.Minute,
		errorHandler:     &DefaultErrorHandler{},
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start runs once immediately, then on every schedule activation until ctx is
// cancelled. On shutdown it waits for the in-flight run and returns nil.
// An activation that fires while a run is still going is skipped.
func (w *Worker) Start(ctx context.Context) error {
	slog.InfoContext(ctx, "Recurring project worker started", "concurrency", w.concurrency)

	w.trigger()

	for {
		now := time.Now()
		next := w.schedule.Next(now)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-timer.C:
			w.trigger()
		case <-ctx.Done():
			timer.Stop()
			slog.InfoContext(ctx, "Shutdown requested, waiting for in-flight run...")
			w.wg.Wait()
			slog.InfoContext(ctx, "Recurring project worker stopped gracefully")
			return nil
		}
	}
}

// trigger starts a run in the background unless one is in flight.
func (w *Worker) trigger() {
	if !w.running.CompareAndSwap(false, true) {
		slog.Warn("Previous run still in progress, skipping activation")
		return
	}

	w.wg.Go(func() {
		defer w.running.Store(false)

		// Runs are detached from the caller's context so shutdown lets them finish.
		opCtx, cancel := context.WithTimeout(context.Background(), w.operationTimeout)
		defer cancel()

		summary, err := w.RunOnce(opCtx)
		if err != nil {
			slog.ErrorContext(opCtx, "Error running recurring project generation", "error", err)
			return
		}
		slog.InfoContext(opCtx, "Recurring project run completed",
			"checked", summary.Checked,
			"generated", summary.Generated,
			"failed", summary.Failed,
			"ended", summary.Ended,
			"errors", summary.Errors)
	})
}

// RunOnce ticks every active definition. Errors of individual definitions go
// to the ErrorHandler and do not stop the run; only listing errors are returned.
func (w *Worker) RunOnce(ctx context.Context) (Summary, error) {
	defs, err := w.definitions.ListActive(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list active definitions: %w", err)
	}

	var (
		mu      sync.Mutex
		summary = Summary{Checked: len(defs)}
		g       errgroup.Group
	)
	g.SetLimit(w.concurrency)

	for _, def := range defs {
		g.Go(func() error {
			action, err := w.tickWithRecovery(ctx, def.ID)

			mu.Lock()
			defer mu.Unlock()
			if IsPanic(err) {
				summary.Panics++
			}
			switch {
			case err != nil && action.Kind != scheduler.ActionFailed:
				summary.Errors++
			case action.Kind == scheduler.ActionGenerated:
				summary.Generated++
			case action.Kind == scheduler.ActionFailed:
				summary.Failed++
			case action.Kind == scheduler.ActionEnded:
				summary.Ended++
			default:
				summary.Noop++
			}
			return nil
		})
	}
	_ = g.Wait()

	return summary, nil
}

// tickWithRecovery ticks one definition, converting a panic into a PanicError.
func (w *Worker) tickWithRecovery(ctx context.Context, definitionID string) (action scheduler.Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			stackTrace := string(debug.Stack())
			w.errorHandler.HandlePanic(ctx, definitionID, r, stackTrace)
			action = scheduler.Action{}
			err = PanicError{DefinitionID: definitionID, Value: r, StackTrace: stackTrace}
		}
	}()

	action, err = w.ticker.Tick(ctx, definitionID)
	if err != nil {
		w.errorHandler.HandleError(ctx, definitionID, err)
	}
	return action, err
}
