package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/infrastructure/scheduler"
)

func TestSyncMetrics_StockDecision(t *testing.T) {
	m := NewSyncMetrics()

	m.ObserveStockDecision(integration.StockDecision{
		Action:    integration.StockActionSkip,
		Reason:    integration.ReasonEchoSuppressed,
		Direction: integration.SyncDirectionToStore,
	})
	m.ObserveStockDecision(integration.StockDecision{
		Action:    integration.StockActionSkip,
		Reason:    integration.ReasonEchoSuppressed,
		Direction: integration.SyncDirectionToStore,
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.stockDecisions.WithLabelValues("to_store", "skip", "echo_suppressed")))
}

func TestSyncMetrics_LedgerWrite(t *testing.T) {
	m := NewSyncMetrics()

	m.ObserveLedgerWrite(integration.UpsertResult{Inserted: 3, DuplicatesSkipped: 2}, 1)
	m.ObserveLedgerWrite(integration.UpsertResult{Inserted: 1}, 0)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.ledgerRows.WithLabelValues("inserted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ledgerRows.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerRows.WithLabelValues("rejected")))
}

func TestSyncMetrics_OrderSyncStatus(t *testing.T) {
	m := NewSyncMetrics()

	m.ObserveOrderSync(integration.OrderEventCreated, nil)
	m.ObserveOrderSync(integration.OrderEventCreated, integration.NewConfigurationError(uuid.New(), integration.ErrTenantNotConfigured))
	m.ObserveOrderSync(integration.OrderEventCancelled, integration.NewTransientStoreError("insert", errors.New("timeout")))
	m.ObserveOrderSync(integration.OrderEventUpdated, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.orderEvents.WithLabelValues("created", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orderEvents.WithLabelValues("created", "config_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orderEvents.WithLabelValues("cancelled", "retryable_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orderEvents.WithLabelValues("updated", "error")))
}

func TestSyncMetrics_Reconciliation(t *testing.T) {
	m := NewSyncMetrics()
	m.ObserveUnmapped(3)
	m.ObserveReconciliation(4, 1, 90*time.Second)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.unmappedLines))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.reconcileTenants.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconcileTenants.WithLabelValues("failed")))
	assert.Greater(t, testutil.ToFloat64(m.reconcileLastSuccess), 0.0)
}

func TestSyncMetrics_HandlerExposesQueue(t *testing.T) {
	m := NewSyncMetrics()
	m.RegisterQueue(func() scheduler.QueueStats {
		return scheduler.QueueStats{Depth: 7, Processed: 42}
	})
	m.ObserveUnmapped(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "stocksync_queue_depth 7")
	assert.Contains(t, body, "stocksync_queue_processed 42")
	assert.Contains(t, body, "stocksync_orders_unmapped_lines_total 1")
	assert.Contains(t, body, "go_goroutines")
}
