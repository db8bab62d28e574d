package scheduler

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/rezkam/shopfloor/internal/application/scheduler"

type instruments struct {
	tracer    trace.Tracer
	generated metric.Int64Counter
	failed    metric.Int64Counter
	ended     metric.Int64Counter
}

// newInstruments binds to the global providers installed by the observability
// package. Instrument creation errors still yield usable no-op instruments.
func newInstruments() instruments {
	meter := otel.Meter(instrumentationName)

	generated, _ := meter.Int64Counter("scheduler.occurrences.generated",
		metric.WithDescription("Occurrences materialized into projects"))
	failed, _ := meter.Int64Counter("scheduler.occurrences.failed",
		metric.WithDescription("Occurrence generation attempts that failed"))
	ended, _ := meter.Int64Counter("scheduler.definitions.ended",
		metric.WithDescription("Definitions deactivated because their pattern ended"))

	return instruments{
		tracer:    otel.Tracer(instrumentationName),
		generated: generated,
		failed:    failed,
		ended:     ended,
	}
}
