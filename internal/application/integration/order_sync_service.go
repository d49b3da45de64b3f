package integration

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/integration"
)

// OrderSyncPath is the lifecycle path an order took.
type OrderSyncPath string

const (
	OrderSyncPathCreate   OrderSyncPath = "create"
	OrderSyncPathCancel   OrderSyncPath = "cancel"
	OrderSyncPathUpdate   OrderSyncPath = "update"
	OrderSyncPathRederive OrderSyncPath = "rederive"
)

// OrderSyncResult reports the ledger effect of one order event.
type OrderSyncResult struct {
	OrderID  string
	Path     OrderSyncPath
	Ledger   LedgerWriteResult
	Unmapped int
	Skipped  int
}

// OrderSyncService turns platform orders into sales ledger rows.
type OrderSyncService struct {
	registry *MappingRegistry
	ledger   *LedgerWriter
	metrics  SyncMetrics
	logger   *zap.Logger
}

// NewOrderSyncService creates an OrderSyncService
func NewOrderSyncService(registry *MappingRegistry, ledger *LedgerWriter, metrics SyncMetrics, logger *zap.Logger) *OrderSyncService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &OrderSyncService{
		registry: registry,
		ledger:   ledger,
		metrics:  metrics,
		logger:   logger,
	}
}

// Sync dispatches an order event to its lifecycle path.
func (s *OrderSyncService) Sync(ctx context.Context, cfg integration.TenantSyncConfig, kind integration.OrderEventKind, order integration.OrderEvent) (OrderSyncResult, error) {
	var (
		result OrderSyncResult
		err    error
	)
	switch kind {
	case integration.OrderEventCreated:
		result, err = s.HandleOrderCreated(ctx, cfg, order)
	case integration.OrderEventUpdated:
		result, err = s.HandleOrderUpdated(ctx, cfg, order)
	case integration.OrderEventCancelled:
		result, err = s.HandleOrderCancelled(ctx, cfg, order)
	case integration.OrderEventReconciled:
		result, err = s.Rederive(ctx, cfg, order)
	default:
		err = fmt.Errorf("%w: order event %q", integration.ErrUnsupportedTopic, kind)
	}
	s.metrics.ObserveOrderSync(kind, err)
	return result, err
}

// HandleOrderCreated writes one ledger row per mapped line item. An order
// that arrives already cancelled also gets its reversals.
func (s *OrderSyncService) HandleOrderCreated(ctx context.Context, cfg integration.TenantSyncConfig, order integration.OrderEvent) (OrderSyncResult, error) {
	if order.IsCancelled() {
		return s.HandleOrderCancelled(ctx, cfg, order)
	}
	return s.upsertDerived(ctx, cfg, order, OrderSyncPathCreate)
}

// HandleOrderCancelled writes compensating rows under the suffixed order id.
// The original rows are kept; any that are missing are written too so the
// pair stays complete. Repeat deliveries only produce duplicates.
func (s *OrderSyncService) HandleOrderCancelled(ctx context.Context, cfg integration.TenantSyncConfig, order integration.OrderEvent) (OrderSyncResult, error) {
	if !order.IsCancelled() {
		return OrderSyncResult{OrderID: order.OrderID, Path: OrderSyncPathCancel},
			fmt.Errorf("integration: order %s has no cancellation timestamp", order.OrderID)
	}
	return s.upsertDerived(ctx, cfg, order, OrderSyncPathCancel)
}

// HandleOrderUpdated routes a newly cancelled order to the cancellation path.
// Any other change deletes the order's rows and rebuilds them from the
// current line items.
func (s *OrderSyncService) HandleOrderUpdated(ctx context.Context, cfg integration.TenantSyncConfig, order integration.OrderEvent) (OrderSyncResult, error) {
	if order.IsCancelled() {
		return s.HandleOrderCancelled(ctx, cfg, order)
	}

	ctx, span := tracer.Start(ctx, "OrderSync.Update")
	defer span.End()
	span.SetAttributes(attribute.String("tenant_id", cfg.TenantID.String()), attribute.String("order_id", order.OrderID))

	result := OrderSyncResult{OrderID: order.OrderID, Path: OrderSyncPathUpdate}
	derivation, err := s.derive(ctx, cfg, order)
	if err != nil {
		return result, err
	}
	result.Unmapped = len(derivation.Unmapped)
	result.Skipped = derivation.Skipped

	ledger, err := s.ledger.Replace(ctx, cfg.TenantID, order.OrderID, derivation.Sales)
	result.Ledger = ledger
	if err != nil {
		return result, err
	}
	s.logResult(cfg, result)
	return result, nil
}

// Rederive recomputes every row an order should have and upserts them.
// Reconciliation uses it; the upsert makes it safe to race live events.
func (s *OrderSyncService) Rederive(ctx context.Context, cfg integration.TenantSyncConfig, order integration.OrderEvent) (OrderSyncResult, error) {
	return s.upsertDerived(ctx, cfg, order, OrderSyncPathRederive)
}

func (s *OrderSyncService) upsertDerived(ctx context.Context, cfg integration.TenantSyncConfig, order integration.OrderEvent, path OrderSyncPath) (OrderSyncResult, error) {
	ctx, span := tracer.Start(ctx, "OrderSync."+string(path))
	defer span.End()
	span.SetAttributes(attribute.String("tenant_id", cfg.TenantID.String()), attribute.String("order_id", order.OrderID))

	result := OrderSyncResult{OrderID: order.OrderID, Path: path}
	derivation, err := s.derive(ctx, cfg, order)
	if err != nil {
		return result, err
	}
	result.Unmapped = len(derivation.Unmapped)
	result.Skipped = derivation.Skipped

	ledger, err := s.ledger.Write(ctx, derivation.All())
	result.Ledger = ledger
	if err != nil {
		return result, err
	}
	s.logResult(cfg, result)
	return result, nil
}

// derive resolves every line item and expands the order. Unmapped items are
// recorded; they never fail the order.
func (s *OrderSyncService) derive(ctx context.Context, cfg integration.TenantSyncConfig, order integration.OrderEvent) (integration.OrderDerivation, error) {
	if err := cfg.Validate(); err != nil {
		return integration.OrderDerivation{}, err
	}
	loc, _ := cfg.Location()
	order.TenantID = cfg.TenantID

	lines := make([]integration.ResolvedLine, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		line := integration.ResolvedLine{Item: item}
		if !item.IsCustom() {
			res, err := s.registry.Resolve(ctx, cfg.TenantID, item.VariantID, item.SKU)
			if err != nil {
				return integration.OrderDerivation{}, err
			}
			line.Mapped = res.Mapped
			line.InternalSKU = res.SKU()
		}
		lines = append(lines, line)
	}

	derivation := integration.DeriveOrder(order, lines, loc)
	for _, line := range derivation.Unmapped {
		if err := s.registry.TrackUnmapped(ctx, cfg.TenantID, line.Item); err != nil {
			return integration.OrderDerivation{}, err
		}
		s.logger.Info("Order line item not mapped, tracked as unmapped",
			zap.String("tenant_id", cfg.TenantID.String()),
			zap.String("order_id", order.OrderID),
			zap.String("line_item_id", line.Item.LineItemID),
			zap.String("variant_id", line.Item.VariantID),
			zap.String("sku", line.Item.SKU),
		)
	}
	s.metrics.ObserveUnmapped(len(derivation.Unmapped))
	return derivation, nil
}

func (s *OrderSyncService) logResult(cfg integration.TenantSyncConfig, r OrderSyncResult) {
	s.logger.Info("Order synced to ledger",
		zap.String("tenant_id", cfg.TenantID.String()),
		zap.String("order_id", r.OrderID),
		zap.String("path", string(r.Path)),
		zap.Int("inserted", r.Ledger.Inserted),
		zap.Int("duplicates_skipped", r.Ledger.DuplicatesSkipped),
		zap.Int64("deleted", r.Ledger.Deleted),
		zap.Int("rejected", len(r.Ledger.Rejected)),
		zap.Int("unmapped", r.Unmapped),
	)
}
