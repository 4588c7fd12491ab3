package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/ganymede/pkg/config"
)

// Collector owns every Prometheus metric the gateway exposes: connection
// lifecycle, request outcomes, stream volume, backend health, and audit
// queue pressure. All recording methods are safe for concurrent use and are
// no-ops when metrics are disabled.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	forcedCloses      *prometheus.CounterVec

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	streamChunks     prometheus.Counter

	backendRequests *prometheus.CounterVec
	backendLatency  prometheus.Histogram
	backendHealthy  prometheus.Gauge

	auditDropped prometheus.Counter
}

// NewCollector creates a metrics collector registered against the given
// Prometheus registry. If registry is nil a fresh registry is created.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		config:   cfg,
		registry: registry,

		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "connections_active",
			Help:      "Number of currently open client connections.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "connections_total",
			Help:      "Total number of client connections accepted.",
		}),
		forcedCloses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "forced_closes_total",
			Help:      "Connections force closed by the gateway, by reason.",
		}, []string{"reason"}),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "requests_total",
			Help:      "Requests resolved, by method and outcome.",
		}, []string{"method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "Time from request admission to terminal response.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"method"}),
		requestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "requests_in_flight",
			Help:      "Requests admitted but not yet resolved.",
		}),
		streamChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stream_chunks_total",
			Help:      "Intermediate stream chunks delivered to clients.",
		}),

		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "backend_requests_total",
			Help:      "Calls to the completion backend, by outcome.",
		}, []string{"backend", "status"}),
		backendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "backend_latency_seconds",
			Help:      "Latency of completion backend calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		backendHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "backend_healthy",
			Help:      "Whether the completion backend is healthy (1) or not (0).",
		}),

		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "audit_records_dropped_total",
			Help:      "Audit records dropped because the recording queue was full.",
		}),
	}

	registry.MustRegister(
		c.connectionsActive,
		c.connectionsTotal,
		c.forcedCloses,
		c.requestsTotal,
		c.requestDuration,
		c.requestsInFlight,
		c.streamChunks,
		c.backendRequests,
		c.backendLatency,
		c.backendHealthy,
		c.auditDropped,
	)

	return c
}

// ConnectionOpened records a newly accepted connection.
func (c *Collector) ConnectionOpened() {
	if !c.config.Enabled {
		return
	}
	c.connectionsActive.Inc()
	c.connectionsTotal.Inc()
}

// ConnectionClosed records a connection leaving the registry.
func (c *Collector) ConnectionClosed() {
	if !c.config.Enabled {
		return
	}
	c.connectionsActive.Dec()
}

// ForcedClose records a connection the gateway closed unilaterally.
// Reason is one of "idle", "shutdown", "transport_error".
func (c *Collector) ForcedClose(reason string) {
	if !c.config.Enabled {
		return
	}
	c.forcedCloses.WithLabelValues(reason).Inc()
}

// RequestAdmitted records a request entering the in-flight set.
func (c *Collector) RequestAdmitted() {
	if !c.config.Enabled {
		return
	}
	c.requestsInFlight.Inc()
}

// RequestResolved records a request reaching its terminal response.
// Status is one of "ok", "error", "cancelled".
func (c *Collector) RequestResolved(method, status string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.requestsInFlight.Dec()
	c.requestsTotal.WithLabelValues(method, status).Inc()
	c.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// ChunkEmitted records one intermediate stream chunk delivered to a client.
func (c *Collector) ChunkEmitted() {
	if !c.config.Enabled {
		return
	}
	c.streamChunks.Inc()
}

// BackendRequest records the outcome and latency of a backend call.
// Status is one of "ok", "error".
func (c *Collector) BackendRequest(backend, status string, latency time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.backendRequests.WithLabelValues(backend, status).Inc()
	c.backendLatency.Observe(latency.Seconds())
}

// SetBackendHealthy updates the backend health gauge.
func (c *Collector) SetBackendHealthy(healthy bool) {
	if !c.config.Enabled {
		return
	}
	if healthy {
		c.backendHealthy.Set(1)
	} else {
		c.backendHealthy.Set(0)
	}
}

// AuditRecordDropped records an audit record lost to queue pressure.
func (c *Collector) AuditRecordDropped() {
	if !c.config.Enabled {
		return
	}
	c.auditDropped.Inc()
}

// Registry returns the Prometheus registry used by this collector. It feeds
// the /metrics endpoint:
//
//	http.Handle("/metrics", promhttp.HandlerFor(
//		collector.Registry(),
//		promhttp.HandlerOpts{},
//	))
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
