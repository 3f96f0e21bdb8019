package telemetry

import (
	"fmt"
	"time"
)

// Config holds the settings for every telemetry component a store container
// can be handed.
type Config struct {
	ServiceName    string
	ServiceVersion string

	Logging LoggingConfig
	Tracing TracingConfig
	Metrics MetricsConfig
	Events  EventsConfig
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error or fatal.
	Level string

	// Format is console or json.
	Format string

	// Output is stdout, stderr or a file path the log is appended to.
	Output string
}

// TracingConfig configures span export for store loads, reads and saves.
type TracingConfig struct {
	Enabled bool

	// Exporter is otlp, stdout or none. With none spans are sampled but
	// never leave the process.
	Exporter string

	// Endpoint is the OTLP collector address (host:port).
	Endpoint string

	SamplingRate float64

	// ExportTimeout bounds a single batch export.
	ExportTimeout time.Duration
}

// MetricsConfig configures Prometheus collection.
type MetricsConfig struct {
	Enabled bool

	ListenAddress string
	Path          string

	// Namespace prefixes every metric name.
	Namespace string

	// DurationBuckets are the histogram buckets, in seconds, for load and
	// operation durations.
	DurationBuckets []float64
}

// EventsConfig configures store lifecycle event delivery.
type EventsConfig struct {
	Enabled bool

	// EnableAsync buffers events and delivers them from a goroutine.
	// Otherwise Publish delivers before returning.
	EnableAsync bool

	BufferSize   int
	MaxBatchSize int
}

// DefaultConfig returns logging at info level on stderr, synchronous events
// and everything else switched off.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "datastack",
		ServiceVersion: "dev",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Tracing: TracingConfig{
			Exporter:      "none",
			SamplingRate:  1.0,
			ExportTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			ListenAddress: ":9090",
			Path:          "/metrics",
			Namespace:     "datastack",
			// SQLite calls are fast; the buckets start well below a millisecond.
			DurationBuckets: []float64{
				0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0,
			},
		},
		Events: EventsConfig{
			Enabled:      true,
			BufferSize:   256,
			MaxBatchSize: 32,
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.Logging.Format)
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "otlp":
			if c.Tracing.Endpoint == "" {
				return fmt.Errorf("otlp exporter requires an endpoint")
			}
		case "stdout", "none":
		default:
			return fmt.Errorf("invalid trace exporter: %s", c.Tracing.Exporter)
		}
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0 and 1, got: %f", c.Tracing.SamplingRate)
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddress == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}

	if c.Events.Enabled && c.Events.EnableAsync && c.Events.BufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got: %d", c.Events.BufferSize)
	}

	return nil
}
