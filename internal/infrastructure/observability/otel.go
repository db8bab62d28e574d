// Package observability wires slog, tracing and metrics to OTLP over HTTP.
//
// Exporters read the standard OTEL_EXPORTER_OTLP_* variables; resource
// attributes come from OTEL_RESOURCE_ATTRIBUTES and OTEL_SERVICE_NAME.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultServiceName names the service when OTEL_SERVICE_NAME is unset.
const DefaultServiceName = "shopfloor"

const (
	exportTimeout  = 10 * time.Second
	flushInterval  = 5 * time.Second
	metricInterval = 15 * time.Second
)

// Config selects whether telemetry leaves the process.
type Config struct {
	Enabled     bool
	ServiceName string
}

func (c Config) serviceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// ShutdownFunc flushes and stops the providers installed by Setup.
type ShutdownFunc func(ctx context.Context) error

// providers tracks what has been started so far, for unwinding on failure.
type providers struct {
	logs    *sdklog.LoggerProvider
	traces  *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
}

func (p *providers) shutdown(ctx context.Context) error {
	var errs []error
	if p.metrics != nil {
		errs = append(errs, p.metrics.Shutdown(ctx))
	}
	if p.traces != nil {
		errs = append(errs, p.traces.Shutdown(ctx))
	}
	if p.logs != nil {
		errs = append(errs, p.logs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Setup installs global logger, tracer and meter providers and makes the
// resulting logger the slog default. With telemetry disabled, logs go to
// stdout as JSON and spans and metrics stay in process.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	p := &providers{}

	if !cfg.Enabled {
		p.traces = sdktrace.NewTracerProvider()
		p.metrics = sdkmetric.NewMeterProvider()
		otel.SetTracerProvider(p.traces)
		otel.SetMeterProvider(p.metrics)
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
		return p.shutdown, nil
	}

	res, err := newResource(ctx, cfg.serviceName())
	if err != nil {
		return nil, err
	}

	if err := p.startLogs(res); err != nil {
		return nil, err
	}
	if err := p.startTraces(res); err != nil {
		return nil, errors.Join(err, p.shutdown(ctx))
	}
	if err := p.startMetrics(res); err != nil {
		return nil, errors.Join(err, p.shutdown(ctx))
	}

	slog.SetDefault(otelslog.NewLogger(cfg.serviceName(), otelslog.WithLoggerProvider(p.logs)))
	otel.SetTracerProvider(p.traces)
	otel.SetMeterProvider(p.metrics)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p.shutdown, nil
}

// newResource merges the SDK defaults with the service name and any
// attributes from the environment. Partial resources are still usable.
func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	service, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithFromEnv(),
	)
	if err != nil && !errors.Is(err, resource.ErrPartialResource) {
		return nil, fmt.Errorf("failed to create service resource: %w", err)
	}

	res, err := resource.Merge(resource.Default(), service)
	if err != nil {
		return nil, fmt.Errorf("failed to merge resources: %w", err)
	}
	return res, nil
}

// Exporters are created with a background context so a cancelled startup
// context cannot wedge their shutdown.

func (p *providers) startLogs(res *resource.Resource) error {
	exp, err := otlploghttp.New(context.Background(), otlploghttp.WithTimeout(exportTimeout))
	if err != nil {
		return fmt.Errorf("failed to create log exporter: %w", err)
	}
	p.logs = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(flushInterval))),
	)
	return nil
}

func (p *providers) startTraces(res *resource.Resource) error {
	exp, err := otlptracehttp.New(context.Background(), otlptracehttp.WithTimeout(exportTimeout))
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}
	p.traces = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(flushInterval)),
	)
	return nil
}

func (p *providers) startMetrics(res *resource.Resource) error {
	exp, err := otlpmetrichttp.New(context.Background(), otlpmetrichttp.WithTimeout(exportTimeout))
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}
	p.metrics = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(metricInterval))),
	)
	return nil
}
