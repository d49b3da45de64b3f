// Package metrics exposes sync counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	app "github.com/erp/stocksync/internal/application/integration"
	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/infrastructure/scheduler"
)

const namespace = "stocksync"

// SyncMetrics records sync outcomes on its own registry.
type SyncMetrics struct {
	registry *prometheus.Registry

	stockDecisions       *prometheus.CounterVec
	ledgerRows           *prometheus.CounterVec
	unmappedLines        prometheus.Counter
	orderEvents          *prometheus.CounterVec
	reconcileTenants     *prometheus.CounterVec
	reconcileDuration    prometheus.Histogram
	reconcileLastSuccess prometheus.Gauge
}

var _ app.SyncMetrics = (*SyncMetrics)(nil)

// NewSyncMetrics creates the collectors on a fresh registry that also
// carries the Go runtime and process collectors.
func NewSyncMetrics() *SyncMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &SyncMetrics{
		registry: reg,
		stockDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "inventory",
				Name:      "stock_decisions_total",
				Help:      "Inventory write decisions by action and reason",
			},
			[]string{"direction", "action", "reason"},
		),
		ledgerRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "rows_total",
				Help:      "Sales ledger rows by outcome",
			},
			[]string{"outcome"},
		),
		unmappedLines: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "orders",
				Name:      "unmapped_lines_total",
				Help:      "Order lines whose variant has no product mapping",
			},
		),
		orderEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "orders",
				Name:      "events_total",
				Help:      "Order events processed by kind and status",
			},
			[]string{"kind", "status"},
		),
		reconcileTenants: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconciliation",
				Name:      "tenants_total",
				Help:      "Tenants reconciled by status",
			},
			[]string{"status"},
		),
		reconcileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "reconciliation",
				Name:      "sweep_duration_seconds",
				Help:      "Duration of reconciliation sweeps in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		),
		reconcileLastSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "reconciliation",
				Name:      "last_sweep_timestamp_seconds",
				Help:      "Unix time of the last finished sweep",
			},
		),
	}
}

// ObserveStockDecision counts an inventory write decision
func (m *SyncMetrics) ObserveStockDecision(d integration.StockDecision) {
	m.stockDecisions.WithLabelValues(string(d.Direction), string(d.Action), string(d.Reason)).Inc()
}

// ObserveLedgerWrite counts inserted, duplicate and rejected rows
func (m *SyncMetrics) ObserveLedgerWrite(result integration.UpsertResult, rejected int) {
	m.ledgerRows.WithLabelValues("inserted").Add(float64(result.Inserted))
	m.ledgerRows.WithLabelValues("duplicate").Add(float64(result.DuplicatesSkipped))
	m.ledgerRows.WithLabelValues("rejected").Add(float64(rejected))
}

// ObserveUnmapped counts unmapped order lines
func (m *SyncMetrics) ObserveUnmapped(count int) {
	m.unmappedLines.Add(float64(count))
}

// ObserveOrderSync counts a processed order event
func (m *SyncMetrics) ObserveOrderSync(kind integration.OrderEventKind, err error) {
	status := "ok"
	switch {
	case err == nil:
	case integration.IsConfigurationError(err):
		status = "config_error"
	case integration.IsRetryable(err):
		status = "retryable_error"
	default:
		status = "error"
	}
	m.orderEvents.WithLabelValues(string(kind), status).Inc()
}

// ObserveReconciliation records a finished sweep
func (m *SyncMetrics) ObserveReconciliation(tenantsOK, tenantsFailed int, duration time.Duration) {
	m.reconcileTenants.WithLabelValues("ok").Add(float64(tenantsOK))
	m.reconcileTenants.WithLabelValues("failed").Add(float64(tenantsFailed))
	m.reconcileDuration.Observe(duration.Seconds())
	m.reconcileLastSuccess.SetToCurrentTime()
}

// RegisterQueue exposes the order sync queue counters as gauges read at scrape time.
func (m *SyncMetrics) RegisterQueue(stats func() scheduler.QueueStats) {
	factory := promauto.With(m.registry)
	gauge := func(name, help string, value func(scheduler.QueueStats) float64) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(stats()) })
	}
	gauge("depth", "Order sync jobs waiting in the buffer",
		func(s scheduler.QueueStats) float64 { return float64(s.Depth) })
	gauge("enqueued", "Order sync jobs accepted since start",
		func(s scheduler.QueueStats) float64 { return float64(s.Enqueued) })
	gauge("processed", "Order sync jobs completed since start",
		func(s scheduler.QueueStats) float64 { return float64(s.Processed) })
	gauge("failed", "Order sync jobs failed permanently since start",
		func(s scheduler.QueueStats) float64 { return float64(s.Failed) })
	gauge("retried", "Order sync job retries since start",
		func(s scheduler.QueueStats) float64 { return float64(s.Retried) })
	gauge("dropped", "Order sync jobs dropped since start",
		func(s scheduler.QueueStats) float64 { return float64(s.Dropped) })
}

// Registry returns the underlying registry
func (m *SyncMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *SyncMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
