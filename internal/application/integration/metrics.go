package integration

import (
	"time"

	"go.opentelemetry.io/otel"

	"github.com/erp/stocksync/internal/domain/integration"
)

var tracer = otel.Tracer("github.com/erp/stocksync/internal/application/integration")

// SyncMetrics receives counters from the sync services. The Prometheus
// implementation lives in infrastructure/metrics.
type SyncMetrics interface {
	ObserveStockDecision(decision integration.StockDecision)
	ObserveLedgerWrite(result integration.UpsertResult, rejected int)
	ObserveUnmapped(count int)
	ObserveOrderSync(kind integration.OrderEventKind, err error)
	ObserveReconciliation(tenantsOK, tenantsFailed int, duration time.Duration)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) ObserveStockDecision(integration.StockDecision)     {}
func (NopMetrics) ObserveLedgerWrite(integration.UpsertResult, int)   {}
func (NopMetrics) ObserveUnmapped(int)                                {}
func (NopMetrics) ObserveOrderSync(integration.OrderEventKind, error) {}
func (NopMetrics) ObserveReconciliation(int, int, time.Duration)      {}
