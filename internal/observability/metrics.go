// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "burn_hook"

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Hook metrics
	HookExecutions *prometheus.CounterVec
	TokensBurned   *prometheus.CounterVec
	BurnAmount     prometheus.Histogram

	// Watcher metrics
	NotificationsReceived prometheus.Counter
	ExecutionsStored      prometheus.Counter
	DuplicateExecutions   prometheus.Counter
	WatcherErrors         *prometheus.CounterVec
	HighestSlotSeen       prometheus.Gauge

	// Solana client metrics
	RPCCallLatency   *prometheus.HistogramVec
	WSMessageLatency prometheus.Histogram
	WSReconnects     prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	slotMu      sync.Mutex
	highestSlot int64
}

// NewMetrics registers all metrics with the default registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers all metrics with reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		HookExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hook",
			Name:      "executions_total",
			Help:      "Hook executions by result (ok or error kind)",
		}, []string{"result"}),
		TokensBurned: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hook",
			Name:      "tokens_burned_total",
			Help:      "Raw token units burned by mint",
		}, []string{"mint"}),
		BurnAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hook",
			Name:      "burn_amount_raw",
			Help:      "Distribution of raw burn amounts per execution",
			Buckets:   prometheus.ExponentialBuckets(1, 10, 12),
		}),

		NotificationsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "notifications_received_total",
			Help:      "Total number of log notifications received",
		}),
		ExecutionsStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "executions_stored_total",
			Help:      "Total number of hook executions stored",
		}),
		DuplicateExecutions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "duplicate_executions_total",
			Help:      "Executions skipped because they were already stored",
		}),
		WatcherErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "errors_total",
			Help:      "Watcher errors by stage",
		}, []string{"stage"}),
		HighestSlotSeen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen",
		}),

		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSMessageLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_message_latency_seconds",
			Help:      "WebSocket message processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		WSReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnects",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordExecution counts one hook execution. result is "ok" or an error kind.
func (m *Metrics) RecordExecution(result, mint string, burned uint64) {
	m.HookExecutions.WithLabelValues(result).Inc()
	if result != "ok" {
		return
	}
	m.TokensBurned.WithLabelValues(mint).Add(float64(burned))
	m.BurnAmount.Observe(float64(burned))
}

// UpdateHighestSlot raises the highest slot gauge; lower slots are ignored.
func (m *Metrics) UpdateHighestSlot(slot int64) {
	m.slotMu.Lock()
	defer m.slotMu.Unlock()
	if slot > m.highestSlot {
		m.highestSlot = slot
		m.HighestSlotSeen.Set(float64(slot))
	}
}

// RecordRPCLatency records RPC call latency.
func (m *Metrics) RecordRPCLatency(method string, seconds float64) {
	m.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordWatcherError records a watcher failure at stage.
func (m *Metrics) RecordWatcherError(stage string) {
	m.WatcherErrors.WithLabelValues(stage).Inc()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
