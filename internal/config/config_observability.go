package config

import "fmt"

// ObservabilityConfig configures logging, metrics and tracing.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled serves /metrics on the kernel listener.
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns span export on. Without an endpoint a no-op tracer is
	// installed, so instrumentation costs nothing when disabled.
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address, e.g. localhost:4317.
	Endpoint string `yaml:"endpoint"`

	// ServiceName identifies this process in traces.
	ServiceName string `yaml:"service_name"`

	// SamplingRate is the trace sampling ratio in [0, 1].
	SamplingRate float64 `yaml:"sampling_rate"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`
}

func applyObservabilityDefaults(cfg *Config) {
	if cfg.Observability.Logging.Level == "" {
		cfg.Observability.Logging.Level = "info"
	}
	if cfg.Observability.Logging.Format == "" {
		cfg.Observability.Logging.Format = "text"
	}
	if cfg.Observability.Tracing.ServiceName == "" {
		cfg.Observability.Tracing.ServiceName = "cortex"
	}
	if cfg.Observability.Tracing.SamplingRate == 0 {
		cfg.Observability.Tracing.SamplingRate = 1.0
	}
}

func (c *ObservabilityConfig) validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("observability.logging.level %q is not supported", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("observability.logging.format %q is not supported", c.Logging.Format)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("observability.tracing.sampling_rate must be in [0, 1]")
	}
	return nil
}
