package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetup_Disabled(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	assert.NotSame(t, previous, slog.Default())

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	span.End()

	counter, err := otel.Meter("test").Int64Counter("test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	assert.NoError(t, shutdown(context.Background()))
}

func TestConfig_ServiceNameDefault(t *testing.T) {
	assert.Equal(t, DefaultServiceName, Config{}.serviceName())
	assert.Equal(t, "shopfloor-worker", Config{ServiceName: "shopfloor-worker"}.serviceName())
}

func TestNewResource_ServiceName(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment=test")

	res, err := newResource(context.Background(), "shopfloor-worker")
	require.NoError(t, err)

	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "shopfloor-worker", attrs["service.name"])
	assert.Equal(t, "test", attrs["deployment.environment"])
}
