package worker

import (
	"context"
	"log/slog"

	"github.com/rezkam/shopfloor/internal/application/scheduler"
)

// ErrorHandler processes tick errors and panics for telemetry/alerting.
// Allows custom integration with error tracking services (Sentry, Datadog, etc.).
type ErrorHandler interface {
	// HandleError is called when ticking a definition returns an error.
	HandleError(ctx context.Context, definitionID string, err error)

	// HandlePanic is called when ticking a definition panics. Includes panic
	// value and stack trace. The run continues with the other definitions.
	HandlePanic(ctx context.Context, definitionID string, panicVal any, stackTrace string)
}

// DefaultErrorHandler logs errors and panics with structured logging.
type DefaultErrorHandler struct{}

func (h *DefaultErrorHandler) HandleError(ctx context.Context, definitionID string, err error) {
	failure, isFailure := scheduler.AsGenerationFailure(err)
	if !isFailure {
		slog.ErrorContext(ctx, "Recurring project tick failed",
			slog.String("definition_id", definitionID),
			slog.String("error", err.Error()),
		)
		return
	}

	slog.ErrorContext(ctx, "Occurrence generation failed",
		slog.String("definition_id", definitionID),
		slog.Int("occurrence_number", failure.OccurrenceNumber),
		slog.Int("attempts", failure.Attempts),
		slog.Bool("escalated", failure.Escalated),
		slog.String("error", failure.Err.Error()),
	)
}

func (h *DefaultErrorHandler) HandlePanic(ctx context.Context, definitionID string, panicVal any, stackTrace string) {
	slog.ErrorContext(ctx, "Recurring project tick panicked",
		slog.String("definition_id", definitionID),
		slog.Any("panic_value", panicVal),
		slog.String("stack_trace", stackTrace),
	)
}
