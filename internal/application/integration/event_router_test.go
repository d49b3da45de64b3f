package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/stocksync/internal/domain/integration"
)

type routerFixture struct {
	tenants  *MockTenantSyncConfigRepository
	mappings *MockProductMappingRepository
	stock    *MockStockRepository
	ledger   *MockSalesLedgerRepository
	dedupe   *MockIdempotencyStore
	queue    *MockOrderEnqueuer
	router   *EventRouter
}

func newRouterFixture(withQueue bool) *routerFixture {
	f := &routerFixture{
		tenants:  new(MockTenantSyncConfigRepository),
		mappings: new(MockProductMappingRepository),
		stock:    new(MockStockRepository),
		ledger:   new(MockSalesLedgerRepository),
		dedupe:   new(MockIdempotencyStore),
		queue:    new(MockOrderEnqueuer),
	}
	platform := new(MockPlatform)
	registry := NewMappingRegistry(f.mappings, new(MockUnmappedProductRepository), f.stock, newTestLogger())
	cfg := EventRouterConfig{
		Tenants:    f.tenants,
		Inventory:  NewInventorySyncService(registry, f.stock, platform, nil, 0, newTestLogger()),
		Orders:     NewOrderSyncService(registry, NewLedgerWriter(f.ledger, nil, newTestLogger()), nil, newTestLogger()),
		Registry:   registry,
		Warehouses: NewWarehouseMirrorService(new(MockWarehouseMappingRepository), platform, newTestLogger()),
		Dedupe:     f.dedupe,
		DedupeTTL:  time.Hour,
		Logger:     newTestLogger(),
	}
	if withQueue {
		cfg.Queue = f.queue
	}
	f.router = NewEventRouter(cfg)
	return f
}

func TestEventRouter_Dispatch_Dedupe(t *testing.T) {
	ctx := context.Background()
	cfg := newTenantConfig()
	key := cfg.TenantID.String() + ":d-1"
	stockEvent := integration.StockChangeEvent{ExternalInventoryItemID: "inv-1", ExternalLocationID: "loc-other"}

	t.Run("Processed delivery is acknowledged without work", func(t *testing.T) {
		f := newRouterFixture(false)
		f.dedupe.On("IsProcessed", mock.Anything, key).Return(true, nil)

		err := f.router.Dispatch(ctx, cfg, Delivery{ID: "d-1", Event: integration.ProductEvent{Deleted: true, Variants: []integration.ProductVariant{{VariantID: "v"}}}})
		require.NoError(t, err)
		f.mappings.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
		f.dedupe.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("New delivery is marked after success", func(t *testing.T) {
		f := newRouterFixture(false)
		f.dedupe.On("IsProcessed", mock.Anything, key).Return(false, nil)
		f.dedupe.On("MarkProcessed", mock.Anything, key, time.Hour).Return(true, nil)

		require.NoError(t, f.router.Dispatch(ctx, cfg, Delivery{ID: "d-1", Event: stockEvent}))
		f.dedupe.AssertExpectations(t)
	})

	t.Run("Failed delivery is not marked", func(t *testing.T) {
		f := newRouterFixture(false)
		f.dedupe.On("IsProcessed", mock.Anything, key).Return(false, nil)
		f.mappings.On("FindByInventoryItem", mock.Anything, cfg.TenantID, "inv-1").Return(nil, errors.New("db down"))

		err := f.router.Dispatch(ctx, cfg, Delivery{ID: "d-1", Event: integration.StockChangeEvent{
			ExternalInventoryItemID: "inv-1",
			ExternalLocationID:      "loc-main",
		}})
		require.Error(t, err)
		f.dedupe.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Dedupe outage does not block processing", func(t *testing.T) {
		f := newRouterFixture(false)
		f.dedupe.On("IsProcessed", mock.Anything, key).Return(false, errors.New("redis down"))
		f.dedupe.On("MarkProcessed", mock.Anything, key, time.Hour).Return(false, errors.New("redis down"))

		require.NoError(t, f.router.Dispatch(ctx, cfg, Delivery{ID: "d-1", Event: stockEvent}))
	})

	t.Run("Empty delivery id skips dedupe", func(t *testing.T) {
		f := newRouterFixture(false)
		require.NoError(t, f.router.Dispatch(ctx, cfg, Delivery{Event: stockEvent}))
		f.dedupe.AssertNotCalled(t, "IsProcessed", mock.Anything, mock.Anything)
	})
}

func TestEventRouter_Dispatch_Orders(t *testing.T) {
	ctx := context.Background()
	cfg := newTenantConfig()

	t.Run("Order is enqueued when a queue is attached", func(t *testing.T) {
		f := newRouterFixture(true)
		f.queue.On("Enqueue", mock.Anything, mock.MatchedBy(func(r OrderSyncRequest) bool {
			return r.TenantID == cfg.TenantID && r.Kind == integration.OrderEventCreated && r.DeliveryID == "" && !r.ReceivedAt.IsZero()
		})).Return(nil)

		err := f.router.Dispatch(ctx, cfg, Delivery{Event: OrderSyncRequest{Kind: integration.OrderEventCreated, Order: integration.OrderEvent{OrderID: "1"}}})
		require.NoError(t, err)
		f.queue.AssertExpectations(t)
	})

	t.Run("Order is processed inline without a queue", func(t *testing.T) {
		f := newRouterFixture(false)
		f.tenants.On("FindByTenant", mock.Anything, cfg.TenantID).Return(&cfg, nil)

		err := f.router.Dispatch(ctx, cfg, Delivery{Event: OrderSyncRequest{Kind: integration.OrderEventCreated, Order: integration.OrderEvent{OrderID: "1"}}})
		require.NoError(t, err)
		f.tenants.AssertExpectations(t)
	})

	t.Run("Unknown tenant is a configuration error", func(t *testing.T) {
		f := newRouterFixture(false)
		f.tenants.On("FindByTenant", mock.Anything, cfg.TenantID).Return(nil, integration.ErrTenantNotConfigured)

		err := f.router.ProcessOrder(ctx, OrderSyncRequest{TenantID: cfg.TenantID, Kind: integration.OrderEventCreated})
		require.Error(t, err)
		assert.True(t, integration.IsConfigurationError(err))
	})
}

func TestEventRouter_Dispatch_Unsupported(t *testing.T) {
	f := newRouterFixture(false)
	err := f.router.Dispatch(context.Background(), newTenantConfig(), Delivery{Event: "nope"})
	assert.ErrorIs(t, err, integration.ErrUnsupportedTopic)
}
