package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/shared"
)

// OrderSyncRequest is an order event waiting for asynchronous processing.
type OrderSyncRequest struct {
	TenantID   uuid.UUID
	Kind       integration.OrderEventKind
	Order      integration.OrderEvent
	DeliveryID string
	ReceivedAt time.Time
}

// OrderEnqueuer hands order events to the asynchronous order-sync queue.
type OrderEnqueuer interface {
	Enqueue(ctx context.Context, req OrderSyncRequest) error
}

// Delivery is one decoded inbound event.
type Delivery struct {
	// ID is the transport's delivery id used for dedupe; may be empty
	ID    string
	Event any
}

// EventRouter is the single entry point for decoded platform events, whether
// they arrive over webhooks or the message bus.
type EventRouter struct {
	tenants    integration.TenantSyncConfigRepository
	inventory  *InventorySyncService
	orders     *OrderSyncService
	registry   *MappingRegistry
	warehouses *WarehouseMirrorService
	queue      OrderEnqueuer
	dedupe     shared.IdempotencyStore
	dedupeTTL  time.Duration
	logger     *zap.Logger
}

// EventRouterConfig wires an EventRouter.
type EventRouterConfig struct {
	Tenants    integration.TenantSyncConfigRepository
	Inventory  *InventorySyncService
	Orders     *OrderSyncService
	Registry   *MappingRegistry
	Warehouses *WarehouseMirrorService
	// Queue receives order events; nil processes them inline
	Queue OrderEnqueuer
	// Dedupe drops repeated delivery ids; nil disables it
	Dedupe    shared.IdempotencyStore
	DedupeTTL time.Duration
	Logger    *zap.Logger
}

// NewEventRouter creates an EventRouter
func NewEventRouter(cfg EventRouterConfig) *EventRouter {
	ttl := cfg.DedupeTTL
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyConfig().TTL
	}
	return &EventRouter{
		tenants:    cfg.Tenants,
		inventory:  cfg.Inventory,
		orders:     cfg.Orders,
		registry:   cfg.Registry,
		warehouses: cfg.Warehouses,
		queue:      cfg.Queue,
		dedupe:     cfg.Dedupe,
		dedupeTTL:  ttl,
		logger:     cfg.Logger,
	}
}

// SetQueue attaches the order-sync queue once it has been built.
func (r *EventRouter) SetQueue(q OrderEnqueuer) {
	r.queue = q
}

// LoadTenant returns the tenant's sync config or a ConfigurationError.
func (r *EventRouter) LoadTenant(ctx context.Context, tenantID uuid.UUID) (*integration.TenantSyncConfig, error) {
	cfg, err := r.tenants.FindByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, integration.ErrTenantNotConfigured) {
			return nil, integration.NewConfigurationError(tenantID, err)
		}
		return nil, integration.NewTransientStoreError("load tenant config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Dispatch routes a delivery for a tenant. A delivery id that was already
// handled successfully is acknowledged without work. The id is only marked
// after success so failed deliveries can be redelivered.
func (r *EventRouter) Dispatch(ctx context.Context, cfg integration.TenantSyncConfig, d Delivery) error {
	key := ""
	if r.dedupe != nil && d.ID != "" {
		key = cfg.TenantID.String() + ":" + d.ID
		done, err := r.dedupe.IsProcessed(ctx, key)
		if err != nil {
			r.logger.Warn("Delivery dedupe lookup failed, processing anyway",
				zap.String("delivery_id", d.ID),
				zap.Error(err),
			)
		} else if done {
			r.logger.Debug("Duplicate delivery acknowledged",
				zap.String("tenant_id", cfg.TenantID.String()),
				zap.String("delivery_id", d.ID),
			)
			return nil
		}
	}

	if err := r.route(ctx, cfg, d); err != nil {
		return err
	}

	if key != "" {
		if _, err := r.dedupe.MarkProcessed(ctx, key, r.dedupeTTL); err != nil {
			r.logger.Warn("Failed to mark delivery processed",
				zap.String("delivery_id", d.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (r *EventRouter) route(ctx context.Context, cfg integration.TenantSyncConfig, d Delivery) error {
	switch ev := d.Event.(type) {
	case integration.StockChangeEvent:
		_, err := r.inventory.HandlePlatformStockChange(ctx, cfg, ev)
		return err
	case OrderSyncRequest:
		ev.TenantID = cfg.TenantID
		ev.DeliveryID = d.ID
		if ev.ReceivedAt.IsZero() {
			ev.ReceivedAt = time.Now()
		}
		if r.queue == nil {
			return r.ProcessOrder(ctx, ev)
		}
		return r.queue.Enqueue(ctx, ev)
	case integration.ProductEvent:
		ev.TenantID = cfg.TenantID
		_, err := r.registry.Discover(ctx, ev)
		return err
	case integration.LocationEvent:
		ev.TenantID = cfg.TenantID
		return r.warehouses.ApplyLocationEvent(ctx, cfg, ev)
	default:
		return fmt.Errorf("%w: %T", integration.ErrUnsupportedTopic, d.Event)
	}
}

// ProcessOrder runs an order request. The queue workers call it.
func (r *EventRouter) ProcessOrder(ctx context.Context, req OrderSyncRequest) error {
	cfg, err := r.LoadTenant(ctx, req.TenantID)
	if err != nil {
		return err
	}
	_, err = r.orders.Sync(ctx, *cfg, req.Kind, req.Order)
	return err
}
