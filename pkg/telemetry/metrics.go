package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the controller. Every recording
// method is safe to call on a disabled (no-op) instance.
type Metrics struct {
	config MetricsConfig

	// Cycle metrics
	cyclesTotal   *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec

	// Transfer metrics
	transfersTotal   *prometheus.CounterVec
	reconfigurations prometheus.Counter

	// Node call metrics
	nodeCalls        *prometheus.CounterVec
	callRetries      *prometheus.CounterVec
	retryExhaustions *prometheus.CounterVec

	// Pool metrics
	outputsTotal     prometheus.Gauge
	outputsAvailable prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
// A disabled configuration yields a no-op instance.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		cyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Total number of control cycles by outcome",
			},
			[]string{"outcome"},
		),
		cycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of control cycles in seconds",
				Buckets:   buckets,
			},
			[]string{"outcome"},
		),
		transfersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_total",
				Help:      "Total number of transfers by kind and status",
			},
			[]string{"kind", "status"},
		),
		reconfigurations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconfigurations_total",
				Help:      "Total number of marker-driven mode reconfigurations",
			},
		),
		nodeCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_calls_total",
				Help:      "Total number of remote node calls by operation",
			},
			[]string{"op"},
		),
		callRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "call_retries_total",
				Help:      "Total number of retried node calls by operation",
			},
			[]string{"op"},
		),
		retryExhaustions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_exhaustions_total",
				Help:      "Total number of node calls that exhausted all retry attempts",
			},
			[]string{"op"},
		),
		outputsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "outputs_total",
				Help:      "Number of outputs in the pool",
			},
		),
		outputsAvailable: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "outputs_available",
				Help:      "Number of outputs that reported available at the last selection",
			},
		),
	}

	registry.MustRegister(
		m.cyclesTotal,
		m.cycleDuration,
		m.transfersTotal,
		m.reconfigurations,
		m.nodeCalls,
		m.callRetries,
		m.retryExhaustions,
		m.outputsTotal,
		m.outputsAvailable,
	)

	return m, nil
}

// RecordCycle records a completed control cycle with its outcome and duration.
func (m *Metrics) RecordCycle(outcome string, duration time.Duration) {
	if m == nil || m.cyclesTotal == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(outcome).Inc()
	m.cycleDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordTransfer records a single slot or tank transfer.
func (m *Metrics) RecordTransfer(kind, status string) {
	if m == nil || m.transfersTotal == nil {
		return
	}
	m.transfersTotal.WithLabelValues(kind, status).Inc()
}

// RecordReconfiguration records a marker-driven mode reconfiguration.
func (m *Metrics) RecordReconfiguration() {
	if m == nil || m.reconfigurations == nil {
		return
	}
	m.reconfigurations.Inc()
}

// RecordNodeCall records one remote node call attempt.
func (m *Metrics) RecordNodeCall(op string) {
	if m == nil || m.nodeCalls == nil {
		return
	}
	m.nodeCalls.WithLabelValues(op).Inc()
}

// RecordCallRetry records a retried node call.
func (m *Metrics) RecordCallRetry(op string) {
	if m == nil || m.callRetries == nil {
		return
	}
	m.callRetries.WithLabelValues(op).Inc()
}

// RecordRetryExhaustion records a node call that failed all attempts.
func (m *Metrics) RecordRetryExhaustion(op string) {
	if m == nil || m.retryExhaustions == nil {
		return
	}
	m.retryExhaustions.WithLabelValues(op).Inc()
}

// SetPoolSize sets the total number of outputs in the pool.
func (m *Metrics) SetPoolSize(total int) {
	if m == nil || m.outputsTotal == nil {
		return
	}
	m.outputsTotal.Set(float64(total))
}

// SetOutputsAvailable sets the available-output count sampled at selection.
func (m *Metrics) SetOutputsAvailable(available int) {
	if m == nil || m.outputsAvailable == nil {
		return
	}
	m.outputsAvailable.Set(float64(available))
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server exposing the metrics endpoint.
// It returns immediately; server failures are logged, not fatal.
func (m *Metrics) StartMetricsServer(log *Logger) {
	if !m.config.Enabled {
		return
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
}
