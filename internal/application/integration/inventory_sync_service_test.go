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

type inventoryFixture struct {
	mappings *MockProductMappingRepository
	unmapped *MockUnmappedProductRepository
	stock    *MockStockRepository
	platform *MockPlatform
	registry *MappingRegistry
	service  *InventorySyncService
}

func newInventoryFixture(now time.Time) *inventoryFixture {
	f := &inventoryFixture{
		mappings: new(MockProductMappingRepository),
		unmapped: new(MockUnmappedProductRepository),
		stock:    new(MockStockRepository),
		platform: new(MockPlatform),
	}
	f.registry = NewMappingRegistry(f.mappings, f.unmapped, f.stock, newTestLogger())
	f.registry.now = fixedClock(now)
	f.service = NewInventorySyncService(f.registry, f.stock, f.platform, nil, 0, newTestLogger())
	f.service.now = fixedClock(now)
	return f
}

func (f *inventoryFixture) at(now time.Time) {
	f.registry.now = fixedClock(now)
	f.service.now = fixedClock(now)
}

func TestInventorySyncService_LoopSuppression(t *testing.T) {
	ctx := context.Background()
	cfg := newTenantConfig()
	t0 := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	mapping := newMapping(cfg.TenantID, "v-1", "inv-1", "SKU-1")

	t.Run("Platform echo of our own push is suppressed", func(t *testing.T) {
		f := newInventoryFixture(t0)
		m := *mapping
		f.mappings.On("FindBySKU", mock.Anything, cfg.TenantID, "SKU-1").Return(&m, nil)
		f.mappings.On("FindByInventoryItem", mock.Anything, cfg.TenantID, "inv-1").Return(&m, nil)
		f.mappings.On("SaveSyncMetadata", mock.Anything, cfg.TenantID, "v-1", mock.Anything).Return(nil)
		f.platform.On("SetInventoryLevel", mock.Anything, cfg, "inv-1", "loc-main", int64(10)).Return(nil)
		f.stock.On("GetStock", mock.Anything, cfg.TenantID, "SKU-1").Return(int64(12), nil)

		pushed, err := f.service.PushStoreStockChange(ctx, cfg, "SKU-1", 10)
		require.NoError(t, err)
		assert.True(t, pushed.Applied)
		assert.Equal(t, integration.SyncDirectionToPlatform, m.Sync.LastSyncDirection)

		f.at(t0.Add(5 * time.Second))
		out, err := f.service.HandlePlatformStockChange(ctx, cfg, integration.StockChangeEvent{
			TenantID:                cfg.TenantID,
			ExternalInventoryItemID: "inv-1",
			ExternalLocationID:      "loc-main",
			NewAvailableQuantity:    10,
		})
		require.NoError(t, err)
		assert.False(t, out.Applied)
		assert.Equal(t, integration.ReasonEchoSuppressed, out.Decision.Reason)
		f.stock.AssertNotCalled(t, "SetStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.mappings.AssertNumberOfCalls(t, "SaveSyncMetadata", 1)
	})

	t.Run("Independent change inside the window is applied", func(t *testing.T) {
		f := newInventoryFixture(t0)
		m := *mapping
		f.mappings.On("FindBySKU", mock.Anything, cfg.TenantID, "SKU-1").Return(&m, nil)
		f.mappings.On("FindByInventoryItem", mock.Anything, cfg.TenantID, "inv-1").Return(&m, nil)
		f.mappings.On("SaveSyncMetadata", mock.Anything, cfg.TenantID, "v-1", mock.Anything).Return(nil)
		f.platform.On("SetInventoryLevel", mock.Anything, cfg, "inv-1", "loc-main", int64(10)).Return(nil)
		f.stock.On("GetStock", mock.Anything, cfg.TenantID, "SKU-1").Return(int64(10), nil)
		f.stock.On("SetStock", mock.Anything, cfg.TenantID, "SKU-1", int64(7)).Return(nil)

		_, err := f.service.PushStoreStockChange(ctx, cfg, "SKU-1", 10)
		require.NoError(t, err)

		f.at(t0.Add(5 * time.Second))
		out, err := f.service.HandlePlatformStockChange(ctx, cfg, integration.StockChangeEvent{
			TenantID:                cfg.TenantID,
			ExternalInventoryItemID: "inv-1",
			ExternalLocationID:      "loc-main",
			NewAvailableQuantity:    7,
		})
		require.NoError(t, err)
		assert.True(t, out.Applied)
		assert.Equal(t, integration.ReasonEchoOverride, out.Decision.Reason)
		f.stock.AssertCalled(t, "SetStock", mock.Anything, cfg.TenantID, "SKU-1", int64(7))

		assert.Equal(t, integration.SyncDirectionToStore, m.Sync.LastSyncDirection)
		require.NotNil(t, m.Sync.LastSyncedStockValue)
		assert.Equal(t, int64(7), *m.Sync.LastSyncedStockValue)
		assert.True(t, t0.Add(5*time.Second).Equal(*m.Sync.LastSyncedAt))
	})

	t.Run("Store echo of a platform write is not pushed back", func(t *testing.T) {
		f := newInventoryFixture(t0)
		m := *mapping
		m.Stamp(integration.SyncDirectionToStore, t0, 4)
		f.mappings.On("FindBySKU", mock.Anything, cfg.TenantID, "SKU-1").Return(&m, nil)

		f.at(t0.Add(3 * time.Second))
		out, err := f.service.PushStoreStockChange(ctx, cfg, "SKU-1", 4)
		require.NoError(t, err)
		assert.False(t, out.Applied)
		assert.Equal(t, integration.ReasonEchoSuppressed, out.Decision.Reason)
		f.platform.AssertNotCalled(t, "SetInventoryLevel", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestInventorySyncService_HandlePlatformStockChange(t *testing.T) {
	ctx := context.Background()
	cfg := newTenantConfig()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Non-authoritative location changes nothing", func(t *testing.T) {
		f := newInventoryFixture(now)

		out, err := f.service.HandlePlatformStockChange(ctx, cfg, integration.StockChangeEvent{
			TenantID:                cfg.TenantID,
			ExternalInventoryItemID: "inv-1",
			ExternalLocationID:      "loc-other",
			NewAvailableQuantity:    3,
		})
		require.NoError(t, err)
		assert.False(t, out.Applied)
		assert.Equal(t, integration.ReasonLocationFiltered, out.Decision.Reason)
		f.mappings.AssertNotCalled(t, "FindByInventoryItem", mock.Anything, mock.Anything, mock.Anything)
		f.stock.AssertNotCalled(t, "SetStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Unmapped inventory item is skipped", func(t *testing.T) {
		f := newInventoryFixture(now)
		f.mappings.On("FindByInventoryItem", mock.Anything, cfg.TenantID, "inv-9").Return(nil, integration.ErrMappingNotFound)

		out, err := f.service.HandlePlatformStockChange(ctx, cfg, integration.StockChangeEvent{
			TenantID:                cfg.TenantID,
			ExternalInventoryItemID: "inv-9",
			ExternalLocationID:      "loc-main",
			NewAvailableQuantity:    3,
		})
		require.NoError(t, err)
		assert.Equal(t, integration.ReasonNotMapped, out.Decision.Reason)
	})

	t.Run("Equal value is a no-op", func(t *testing.T) {
		f := newInventoryFixture(now)
		m := newMapping(cfg.TenantID, "v-1", "inv-1", "SKU-1")
		f.mappings.On("FindByInventoryItem", mock.Anything, cfg.TenantID, "inv-1").Return(m, nil)
		f.stock.On("GetStock", mock.Anything, cfg.TenantID, "SKU-1").Return(int64(5), nil)

		out, err := f.service.HandlePlatformStockChange(ctx, cfg, integration.StockChangeEvent{
			TenantID:                cfg.TenantID,
			ExternalInventoryItemID: "inv-1",
			ExternalLocationID:      "loc-main",
			NewAvailableQuantity:    5,
		})
		require.NoError(t, err)
		assert.Equal(t, integration.ReasonNoOp, out.Decision.Reason)
		f.mappings.AssertNotCalled(t, "SaveSyncMetadata", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Store read failure is transient", func(t *testing.T) {
		f := newInventoryFixture(now)
		m := newMapping(cfg.TenantID, "v-1", "inv-1", "SKU-1")
		f.mappings.On("FindByInventoryItem", mock.Anything, cfg.TenantID, "inv-1").Return(m, nil)
		f.stock.On("GetStock", mock.Anything, cfg.TenantID, "SKU-1").Return(int64(0), errors.New("connection refused"))

		_, err := f.service.HandlePlatformStockChange(ctx, cfg, integration.StockChangeEvent{
			TenantID:                cfg.TenantID,
			ExternalInventoryItemID: "inv-1",
			ExternalLocationID:      "loc-main",
			NewAvailableQuantity:    5,
		})
		require.Error(t, err)
		assert.True(t, integration.IsRetryable(err))
	})

	t.Run("Misconfigured tenant is a configuration error", func(t *testing.T) {
		f := newInventoryFixture(now)
		bad := cfg
		bad.AuthoritativeLocationID = ""

		_, err := f.service.HandlePlatformStockChange(ctx, bad, integration.StockChangeEvent{TenantID: cfg.TenantID})
		require.Error(t, err)
		assert.True(t, integration.IsConfigurationError(err))
		assert.ErrorIs(t, err, integration.ErrNoAuthoritativeLocation)
	})
}

func TestInventorySyncService_LocationMirror(t *testing.T) {
	ctx := context.Background()
	cfg := newTenantConfig()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	event := integration.StockChangeEvent{
		TenantID:                cfg.TenantID,
		ExternalInventoryItemID: "inv-1",
		ExternalLocationID:      "loc-main",
		NewAvailableQuantity:    3,
	}
	deactivated := &integration.WarehouseMapping{TenantID: cfg.TenantID, ExternalLocationID: "loc-main", Active: false}

	t.Run("Deactivated location skips platform stock changes", func(t *testing.T) {
		f := newInventoryFixture(now)
		warehouses := new(MockWarehouseMappingRepository)
		warehouses.On("FindByExternalLocation", mock.Anything, cfg.TenantID, "loc-main").Return(deactivated, nil)
		f.service.SetLocationMirror(warehouses)

		out, err := f.service.HandlePlatformStockChange(ctx, cfg, event)
		require.NoError(t, err)
		assert.False(t, out.Applied)
		assert.Equal(t, integration.ReasonLocationInactive, out.Decision.Reason)
		f.mappings.AssertNotCalled(t, "FindByInventoryItem", mock.Anything, mock.Anything, mock.Anything)
		f.stock.AssertNotCalled(t, "SetStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Deactivated location is not pushed to", func(t *testing.T) {
		f := newInventoryFixture(now)
		warehouses := new(MockWarehouseMappingRepository)
		warehouses.On("FindByExternalLocation", mock.Anything, cfg.TenantID, "loc-main").Return(deactivated, nil)
		f.service.SetLocationMirror(warehouses)
		f.mappings.On("FindBySKU", mock.Anything, cfg.TenantID, "SKU-1").Return(newMapping(cfg.TenantID, "v-1", "inv-1", "SKU-1"), nil)

		out, err := f.service.PushStoreStockChange(ctx, cfg, "SKU-1", 8)
		require.NoError(t, err)
		assert.False(t, out.Applied)
		assert.Equal(t, integration.ReasonLocationInactive, out.Decision.Reason)
		f.platform.AssertNotCalled(t, "SetInventoryLevel", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Location not yet mirrored still syncs", func(t *testing.T) {
		f := newInventoryFixture(now)
		warehouses := new(MockWarehouseMappingRepository)
		warehouses.On("FindByExternalLocation", mock.Anything, cfg.TenantID, "loc-main").Return(nil, integration.ErrWarehouseMappingNotFound)
		f.service.SetLocationMirror(warehouses)
		f.mappings.On("FindByInventoryItem", mock.Anything, cfg.TenantID, "inv-1").Return(newMapping(cfg.TenantID, "v-1", "inv-1", "SKU-1"), nil)
		f.mappings.On("SaveSyncMetadata", mock.Anything, cfg.TenantID, "v-1", mock.Anything).Return(nil)
		f.stock.On("GetStock", mock.Anything, cfg.TenantID, "SKU-1").Return(int64(5), nil)
		f.stock.On("SetStock", mock.Anything, cfg.TenantID, "SKU-1", int64(3)).Return(nil)

		out, err := f.service.HandlePlatformStockChange(ctx, cfg, event)
		require.NoError(t, err)
		assert.True(t, out.Applied)
	})

	t.Run("Mirror read failure is transient", func(t *testing.T) {
		f := newInventoryFixture(now)
		warehouses := new(MockWarehouseMappingRepository)
		warehouses.On("FindByExternalLocation", mock.Anything, cfg.TenantID, "loc-main").Return(nil, errors.New("connection refused"))
		f.service.SetLocationMirror(warehouses)

		_, err := f.service.HandlePlatformStockChange(ctx, cfg, event)
		require.Error(t, err)
		assert.True(t, integration.IsRetryable(err))
	})

	t.Run("Other locations are filtered before the mirror is read", func(t *testing.T) {
		f := newInventoryFixture(now)
		warehouses := new(MockWarehouseMappingRepository)
		f.service.SetLocationMirror(warehouses)

		other := event
		other.ExternalLocationID = "loc-other"
		out, err := f.service.HandlePlatformStockChange(ctx, cfg, other)
		require.NoError(t, err)
		assert.Equal(t, integration.ReasonLocationFiltered, out.Decision.Reason)
		warehouses.AssertNotCalled(t, "FindByExternalLocation", mock.Anything, mock.Anything, mock.Anything)
	})
}
