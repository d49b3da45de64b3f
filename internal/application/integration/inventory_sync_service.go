package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/integration"
)

// StockSyncOutcome reports what happened to one stock change.
type StockSyncOutcome struct {
	Decision integration.StockDecision
	SKU      string
	Applied  bool
}

// LocationMirror looks up the mirrored warehouse for a platform location.
type LocationMirror interface {
	FindByExternalLocation(ctx context.Context, tenantID uuid.UUID, locationID string) (*integration.WarehouseMapping, error)
}

// InventorySyncService mirrors stock between the platform's authoritative
// location and the internal store, suppressing echoes of its own writes.
type InventorySyncService struct {
	registry *MappingRegistry
	stock    integration.StockRepository
	platform integration.InventoryLevelWriter
	metrics  SyncMetrics
	logger   *zap.Logger
	window   time.Duration
	now      func() time.Time

	locations LocationMirror
}

// NewInventorySyncService creates an InventorySyncService. A zero window
// falls back to integration.DefaultEchoWindow.
func NewInventorySyncService(
	registry *MappingRegistry,
	stock integration.StockRepository,
	platform integration.InventoryLevelWriter,
	metrics SyncMetrics,
	window time.Duration,
	logger *zap.Logger,
) *InventorySyncService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if window <= 0 {
		window = integration.DefaultEchoWindow
	}
	return &InventorySyncService{
		registry: registry,
		stock:    stock,
		platform: platform,
		metrics:  metrics,
		logger:   logger,
		window:   window,
		now:      time.Now,
	}
}

// SetLocationMirror makes stock sync skip locations the warehouse mirror has
// deactivated. Without a mirror only the authoritative location filter applies.
func (s *InventorySyncService) SetLocationMirror(m LocationMirror) {
	s.locations = m
}

// HandlePlatformStockChange applies a platform inventory level to the store.
func (s *InventorySyncService) HandlePlatformStockChange(ctx context.Context, cfg integration.TenantSyncConfig, ev integration.StockChangeEvent) (StockSyncOutcome, error) {
	ctx, span := tracer.Start(ctx, "InventorySync.HandlePlatformStockChange")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", cfg.TenantID.String()),
		attribute.String("inventory_item_id", ev.ExternalInventoryItemID),
	)

	if err := cfg.Validate(); err != nil {
		return StockSyncOutcome{}, err
	}

	direction := integration.SyncDirectionToStore
	ok, reason, err := s.checkLocation(ctx, cfg, ev.ExternalLocationID)
	if err != nil {
		return StockSyncOutcome{}, err
	}
	if !ok {
		d := integration.StockDecision{
			Action:    integration.StockActionSkip,
			Reason:    reason,
			Direction: direction,
			Candidate: ev.NewAvailableQuantity,
		}
		s.metrics.ObserveStockDecision(d)
		s.logger.Debug("Stock event ignored for location",
			zap.String("tenant_id", cfg.TenantID.String()),
			zap.String("location_id", ev.ExternalLocationID),
			zap.String("authoritative_location_id", cfg.AuthoritativeLocationID),
			zap.String("reason", string(reason)),
		)
		return StockSyncOutcome{Decision: d}, nil
	}

	res, err := s.registry.ResolveInventoryItem(ctx, cfg.TenantID, ev.ExternalInventoryItemID)
	if err != nil {
		return StockSyncOutcome{}, err
	}
	if !res.Mapped {
		d := s.notMapped(direction, ev.NewAvailableQuantity)
		s.logger.Info("Stock event for unmapped inventory item skipped",
			zap.String("tenant_id", cfg.TenantID.String()),
			zap.Error(&integration.NotMappedError{TenantID: cfg.TenantID, ExternalInventoryItemID: ev.ExternalInventoryItemID}),
		)
		return StockSyncOutcome{Decision: d}, nil
	}
	mapping := res.Mapping

	current, err := s.stock.GetStock(ctx, cfg.TenantID, mapping.InternalSKU)
	if err != nil {
		if errors.Is(err, integration.ErrProductNotFound) {
			d := s.notMapped(direction, ev.NewAvailableQuantity)
			s.logger.Warn("Mapped SKU missing from store, stock event skipped",
				zap.String("tenant_id", cfg.TenantID.String()),
				zap.String("sku", mapping.InternalSKU),
			)
			return StockSyncOutcome{Decision: d, SKU: mapping.InternalSKU}, nil
		}
		return StockSyncOutcome{}, integration.NewTransientStoreError("read store stock", err)
	}

	d := integration.DecideStockWrite(integration.StockWriteCandidate{
		Direction: direction,
		Quantity:  ev.NewAvailableQuantity,
		Current:   &current,
		Metadata:  mapping.Sync,
		Now:       s.now(),
		Window:    s.window,
	})
	s.logDecision(cfg, mapping, d)
	s.metrics.ObserveStockDecision(d)

	outcome := StockSyncOutcome{Decision: d, SKU: mapping.InternalSKU}
	if !d.ShouldApply() {
		return outcome, nil
	}

	if err := s.stock.SetStock(ctx, cfg.TenantID, mapping.InternalSKU, ev.NewAvailableQuantity); err != nil {
		return outcome, integration.NewTransientStoreError("write store stock", err)
	}
	if err := s.registry.Stamp(ctx, mapping, direction, ev.NewAvailableQuantity); err != nil {
		return outcome, err
	}
	outcome.Applied = true
	return outcome, nil
}

// PushStoreStockChange sends an internal stock change for sku to the
// platform's authoritative location.
func (s *InventorySyncService) PushStoreStockChange(ctx context.Context, cfg integration.TenantSyncConfig, sku string, quantity int64) (StockSyncOutcome, error) {
	ctx, span := tracer.Start(ctx, "InventorySync.PushStoreStockChange")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", cfg.TenantID.String()),
		attribute.String("sku", sku),
	)

	if err := cfg.Validate(); err != nil {
		return StockSyncOutcome{}, err
	}

	direction := integration.SyncDirectionToPlatform
	res, err := s.registry.Resolve(ctx, cfg.TenantID, "", sku)
	if err != nil {
		return StockSyncOutcome{}, err
	}
	if !res.Mapped || res.Mapping.ExternalInventoryItemID == "" {
		d := s.notMapped(direction, quantity)
		s.logger.Info("Store stock change for unmapped SKU not pushed",
			zap.String("tenant_id", cfg.TenantID.String()),
			zap.String("sku", sku),
		)
		return StockSyncOutcome{Decision: d, SKU: sku}, nil
	}
	mapping := res.Mapping

	ok, reason, err := s.checkLocation(ctx, cfg, cfg.AuthoritativeLocationID)
	if err != nil {
		return StockSyncOutcome{}, err
	}
	if !ok {
		d := integration.StockDecision{
			Action:    integration.StockActionSkip,
			Reason:    reason,
			Direction: direction,
			Candidate: quantity,
		}
		s.metrics.ObserveStockDecision(d)
		s.logger.Warn("Authoritative location is deactivated, store stock change not pushed",
			zap.String("tenant_id", cfg.TenantID.String()),
			zap.String("sku", sku),
			zap.String("location_id", cfg.AuthoritativeLocationID),
		)
		return StockSyncOutcome{Decision: d, SKU: mapping.InternalSKU}, nil
	}

	d := integration.DecideStockWrite(integration.StockWriteCandidate{
		Direction: direction,
		Quantity:  quantity,
		Metadata:  mapping.Sync,
		Now:       s.now(),
		Window:    s.window,
	})
	s.logDecision(cfg, mapping, d)
	s.metrics.ObserveStockDecision(d)

	outcome := StockSyncOutcome{Decision: d, SKU: mapping.InternalSKU}
	if !d.ShouldApply() {
		return outcome, nil
	}

	if err := s.platform.SetInventoryLevel(ctx, cfg, mapping.ExternalInventoryItemID, cfg.AuthoritativeLocationID, quantity); err != nil {
		return outcome, err
	}
	if err := s.registry.Stamp(ctx, mapping, direction, quantity); err != nil {
		return outcome, err
	}
	outcome.Applied = true
	return outcome, nil
}

func (s *InventorySyncService) checkLocation(ctx context.Context, cfg integration.TenantSyncConfig, locationID string) (bool, integration.StockDecisionReason, error) {
	var mirrored *integration.WarehouseMapping
	if s.locations != nil && integration.FilterLocation(cfg, locationID) {
		w, err := s.locations.FindByExternalLocation(ctx, cfg.TenantID, locationID)
		switch {
		case err == nil:
			mirrored = w
		case errors.Is(err, integration.ErrWarehouseMappingNotFound):
		default:
			return false, "", integration.NewTransientStoreError("read warehouse mirror", err)
		}
	}
	ok, reason := integration.CheckLocation(cfg, locationID, mirrored)
	return ok, reason, nil
}

func (s *InventorySyncService) notMapped(direction integration.SyncDirection, quantity int64) integration.StockDecision {
	d := integration.StockDecision{
		Action:    integration.StockActionSkip,
		Reason:    integration.ReasonNotMapped,
		Direction: direction,
		Candidate: quantity,
	}
	s.metrics.ObserveStockDecision(d)
	return d
}

func (s *InventorySyncService) logDecision(cfg integration.TenantSyncConfig, m *integration.ProductMapping, d integration.StockDecision) {
	fields := []zap.Field{
		zap.String("tenant_id", cfg.TenantID.String()),
		zap.String("variant_id", m.ExternalVariantID),
		zap.String("sku", m.InternalSKU),
		zap.String("action", string(d.Action)),
		zap.String("reason", string(d.Reason)),
		zap.String("direction", d.Direction.String()),
		zap.String("last_direction", d.LastDirection.String()),
		zap.Int64("new_value", d.Candidate),
		zap.Bool("in_window", d.InWindow),
	}
	if d.HasElapsed {
		fields = append(fields, zap.Duration("elapsed", d.Elapsed))
	}
	if d.Previous != nil {
		fields = append(fields, zap.Int64("old_value", *d.Previous))
	}
	if d.LastSynced != nil {
		fields = append(fields, zap.Int64("last_synced_value", *d.LastSynced))
	}
	s.logger.Info("Stock sync decision", fields...)
}
