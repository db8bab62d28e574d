package config

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	OTelEnabled bool   `env:"SHOPFLOOR_OTEL_ENABLED" default:"true"`
	ServiceName string `env:"OTEL_SERVICE_NAME"`
}
