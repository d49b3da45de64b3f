package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erp/stocksync/internal/domain/integration"
)

// ReconciliationConfig tunes the sweep.
type ReconciliationConfig struct {
	// Window is how far back orders are re-derived
	Window time.Duration
	// Concurrency bounds tenants processed in parallel
	Concurrency int
	// TenantTimeout bounds the work for a single tenant
	TenantTimeout time.Duration
}

// DefaultReconciliationConfig returns default configuration
func DefaultReconciliationConfig() ReconciliationConfig {
	return ReconciliationConfig{
		Window:        2 * time.Hour,
		Concurrency:   4,
		TenantTimeout: 10 * time.Minute,
	}
}

// TenantReconciliation is the outcome for one tenant.
type TenantReconciliation struct {
	TenantID uuid.UUID
	Orders   int
	Failed   int
	Result   integration.UpsertResult
	Rejected int
	Err      error
}

// SweepReport is the outcome of a full sweep.
type SweepReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Since      time.Time
	Tenants    []TenantReconciliation
}

// FailedTenants counts tenants that errored.
func (r SweepReport) FailedTenants() int {
	n := 0
	for _, t := range r.Tenants {
		if t.Err != nil {
			n++
		}
	}
	return n
}

// ReconciliationService re-derives recent orders for every tenant so that
// missed or failed webhooks are eventually reflected in the ledger.
type ReconciliationService struct {
	tenants   integration.TenantSyncConfigRepository
	orders    integration.OrderSource
	orderSync *OrderSyncService
	config    ReconciliationConfig
	metrics   SyncMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewReconciliationService creates a ReconciliationService
func NewReconciliationService(
	tenants integration.TenantSyncConfigRepository,
	orders integration.OrderSource,
	orderSync *OrderSyncService,
	config ReconciliationConfig,
	metrics SyncMetrics,
	logger *zap.Logger,
) *ReconciliationService {
	defaults := DefaultReconciliationConfig()
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.TenantTimeout <= 0 {
		config.TenantTimeout = defaults.TenantTimeout
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &ReconciliationService{
		tenants:   tenants,
		orders:    orders,
		orderSync: orderSync,
		config:    config,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Sweep reconciles every sync-enabled tenant. One tenant's failure is logged
// and recorded in the report; it never stops the others. The returned error
// is only set when the tenant list itself cannot be read.
func (s *ReconciliationService) Sweep(ctx context.Context) (SweepReport, error) {
	ctx, span := tracer.Start(ctx, "Reconciliation.Sweep")
	defer span.End()

	report := SweepReport{StartedAt: s.now()}
	report.Since = report.StartedAt.Add(-s.config.Window)

	configs, err := s.tenants.ListSyncEnabled(ctx)
	if err != nil {
		return report, integration.NewTransientStoreError("list sync-enabled tenants", err)
	}

	report.Tenants = make([]TenantReconciliation, len(configs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for i := range configs {
		cfg := configs[i]
		g.Go(func() error {
			report.Tenants[i] = s.reconcileSafely(gctx, cfg, report.Since)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = s.now()
	failed := report.FailedTenants()
	s.metrics.ObserveReconciliation(len(configs)-failed, failed, report.FinishedAt.Sub(report.StartedAt))
	s.logger.Info("Reconciliation sweep completed",
		zap.Int("tenants", len(configs)),
		zap.Int("failed_tenants", failed),
		zap.Time("since", report.Since),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// ReconcileTenant re-derives one tenant's orders updated since the given time.
func (s *ReconciliationService) ReconcileTenant(ctx context.Context, cfg integration.TenantSyncConfig, since time.Time) TenantReconciliation {
	out := TenantReconciliation{TenantID: cfg.TenantID}
	if err := cfg.Validate(); err != nil {
		out.Err = err
		return out
	}

	orders, err := s.orders.ListOrdersUpdatedSince(ctx, cfg, since)
	if err != nil {
		out.Err = err
		return out
	}
	out.Orders = len(orders)

	for _, order := range orders {
		res, err := s.orderSync.Sync(ctx, cfg, integration.OrderEventReconciled, order)
		if err != nil {
			out.Failed++
			s.logger.Warn("Order reconciliation failed",
				zap.String("tenant_id", cfg.TenantID.String()),
				zap.String("order_id", order.OrderID),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				out.Err = ctx.Err()
				return out
			}
			continue
		}
		out.Result.Add(res.Ledger.UpsertResult)
		out.Rejected += len(res.Ledger.Rejected)
	}
	return out
}

// ReconcileTenantWindow reconciles one tenant over the configured window.
func (s *ReconciliationService) ReconcileTenantWindow(ctx context.Context, cfg integration.TenantSyncConfig) TenantReconciliation {
	return s.ReconcileTenant(ctx, cfg, s.now().Add(-s.config.Window))
}

func (s *ReconciliationService) reconcileSafely(ctx context.Context, cfg integration.TenantSyncConfig, since time.Time) (out TenantReconciliation) {
	defer func() {
		if r := recover(); r != nil {
			out = TenantReconciliation{TenantID: cfg.TenantID, Err: fmt.Errorf("integration: tenant reconciliation panicked: %v", r)}
			s.logger.Error("Tenant reconciliation panicked",
				zap.String("tenant_id", cfg.TenantID.String()),
				zap.Any("panic", r),
				zap.Stack("stacktrace"),
			)
		}
	}()

	tctx, cancel := context.WithTimeout(ctx, s.config.TenantTimeout)
	defer cancel()

	out = s.ReconcileTenant(tctx, cfg, since)
	if out.Err != nil {
		level := s.logger.Error
		if integration.IsConfigurationError(out.Err) {
			level = s.logger.Warn
		}
		level("Tenant skipped in reconciliation sweep",
			zap.String("tenant_id", cfg.TenantID.String()),
			zap.Error(out.Err),
		)
		return out
	}

	s.logger.Info("Tenant reconciled",
		zap.String("tenant_id", cfg.TenantID.String()),
		zap.Int("orders", out.Orders),
		zap.Int("failed_orders", out.Failed),
		zap.Int("inserted", out.Result.Inserted),
		zap.Int("duplicates_skipped", out.Result.DuplicatesSkipped),
		zap.Int("rejected", out.Rejected),
	)
	return out
}
