package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Load results reported by RecordLoad.
const (
	LoadResultSucceeded       = "succeeded"
	LoadResultRecovered       = "recovered"
	LoadResultFailedMigration = "failed_migration"
	LoadResultFailedOther     = "failed_other"
)

// Operation statuses reported by RecordOperation.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics counts store loads, recoveries, reads and saves. A Metrics built
// from a disabled config, or a nil *Metrics, records nothing.
type Metrics struct {
	config MetricsConfig

	loads        *prometheus.CounterVec
	loadDuration prometheus.Histogram
	recoveries   *prometheus.CounterVec

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	objectsSaved      *prometheus.CounterVec

	loadedStores prometheus.Gauge

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_loads_total",
				Help:      "Total number of store loads by result",
			},
			[]string{"model", "result"},
		),
		loadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_load_duration_seconds",
				Help:      "Duration of store loads in seconds, recovery included",
				Buckets:   buckets,
			},
		),
		recoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_recoveries_total",
				Help:      "Total number of stores wiped to recover from a migration failure",
			},
			[]string{"model"},
		),

		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of read and save operations",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Duration of read and save operations in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		objectsSaved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_objects_saved_total",
				Help:      "Total number of application values saved",
			},
			[]string{"model"},
		),

		loadedStores: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stores_loaded",
				Help:      "Current number of loaded stores",
			},
		),
	}

	registry.MustRegister(
		m.loads,
		m.loadDuration,
		m.recoveries,
		m.operations,
		m.operationDuration,
		m.objectsSaved,
		m.loadedStores,
	)

	return m, nil
}

// RecordLoad records the outcome of a store load.
func (m *Metrics) RecordLoad(model, result string, duration time.Duration) {
	if m == nil || m.loads == nil {
		return
	}
	m.loads.WithLabelValues(model, result).Inc()
	m.loadDuration.Observe(duration.Seconds())
	if result == LoadResultSucceeded || result == LoadResultRecovered {
		m.loadedStores.Inc()
	}
}

// RecordRecovery records a store wipe performed to recover from a migration failure.
func (m *Metrics) RecordRecovery(model string) {
	if m == nil || m.recoveries == nil {
		return
	}
	m.recoveries.WithLabelValues(model).Inc()
}

// RecordStoreClosed decrements the loaded store gauge.
func (m *Metrics) RecordStoreClosed() {
	if m == nil || m.loadedStores == nil {
		return
	}
	m.loadedStores.Dec()
}

// RecordOperation records a read or save with its outcome and duration.
func (m *Metrics) RecordOperation(operation string, err error, duration time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	m.operations.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordObjectsSaved adds count to the saved values counter.
func (m *Metrics) RecordObjectsSaved(model string, count int) {
	if m == nil || m.objectsSaved == nil || count <= 0 {
		return
	}
	m.objectsSaved.WithLabelValues(model).Add(float64(count))
}

// Registry returns the underlying registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Timer measures one load or operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since NewTimer.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves Handler on the configured address and path in
// the background. Serve errors are reported through logger.
func (m *Metrics) StartMetricsServer(logger *Logger) error {
	if m == nil || !m.config.Enabled {
		return nil
	}
	if logger == nil {
		logger = NewNopLogger()
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func(server *http.Server) {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server stopped")
		}
	}(m.server)

	return nil
}

// Shutdown stops the metrics server if one was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
