package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/integration"
)

func newTestLogger() *zap.Logger {
	return zap.NewNop()
}

// ---------------------------------------------------------------------------
// MockProductMappingRepository
// ---------------------------------------------------------------------------

type MockProductMappingRepository struct {
	mock.Mock
}

func (m *MockProductMappingRepository) FindByVariant(ctx context.Context, tenantID uuid.UUID, variantID string) (*integration.ProductMapping, error) {
	args := m.Called(ctx, tenantID, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ProductMapping), args.Error(1)
}

func (m *MockProductMappingRepository) FindBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (*integration.ProductMapping, error) {
	args := m.Called(ctx, tenantID, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ProductMapping), args.Error(1)
}

func (m *MockProductMappingRepository) FindByInventoryItem(ctx context.Context, tenantID uuid.UUID, inventoryItemID string) (*integration.ProductMapping, error) {
	args := m.Called(ctx, tenantID, inventoryItemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ProductMapping), args.Error(1)
}

func (m *MockProductMappingRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]integration.ProductMapping, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ProductMapping), args.Error(1)
}

func (m *MockProductMappingRepository) Upsert(ctx context.Context, mapping *integration.ProductMapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

func (m *MockProductMappingRepository) SaveSyncMetadata(ctx context.Context, tenantID uuid.UUID, variantID string, meta integration.SyncMetadata) error {
	args := m.Called(ctx, tenantID, variantID, meta)
	return args.Error(0)
}

func (m *MockProductMappingRepository) Delete(ctx context.Context, tenantID uuid.UUID, variantID string) error {
	args := m.Called(ctx, tenantID, variantID)
	return args.Error(0)
}

// ---------------------------------------------------------------------------
// MockUnmappedProductRepository
// ---------------------------------------------------------------------------

type MockUnmappedProductRepository struct {
	mock.Mock
}

func (m *MockUnmappedProductRepository) Upsert(ctx context.Context, product integration.UnmappedProduct) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockUnmappedProductRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]integration.UnmappedProduct, error) {
	args := m.Called(ctx, tenantID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.UnmappedProduct), args.Error(1)
}

func (m *MockUnmappedProductRepository) Delete(ctx context.Context, tenantID uuid.UUID, variantID string) error {
	args := m.Called(ctx, tenantID, variantID)
	return args.Error(0)
}

// ---------------------------------------------------------------------------
// MockStockRepository
// ---------------------------------------------------------------------------

type MockStockRepository struct {
	mock.Mock
}

func (m *MockStockRepository) GetStock(ctx context.Context, tenantID uuid.UUID, sku string) (int64, error) {
	args := m.Called(ctx, tenantID, sku)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStockRepository) SetStock(ctx context.Context, tenantID uuid.UUID, sku string, quantity int64) error {
	args := m.Called(ctx, tenantID, sku, quantity)
	return args.Error(0)
}

func (m *MockStockRepository) ExistsSKU(ctx context.Context, tenantID uuid.UUID, sku string) (bool, error) {
	args := m.Called(ctx, tenantID, sku)
	return args.Bool(0), args.Error(1)
}

// ---------------------------------------------------------------------------
// MockSalesLedgerRepository
// ---------------------------------------------------------------------------

type MockSalesLedgerRepository struct {
	mock.Mock
}

func (m *MockSalesLedgerRepository) InsertIgnoreDuplicates(ctx context.Context, entries []integration.SalesLedgerEntry) (integration.UpsertResult, error) {
	args := m.Called(ctx, entries)
	return args.Get(0).(integration.UpsertResult), args.Error(1)
}

func (m *MockSalesLedgerRepository) ReplaceOrderEntries(ctx context.Context, tenantID uuid.UUID, orderID string, entries []integration.SalesLedgerEntry) (int64, integration.UpsertResult, error) {
	args := m.Called(ctx, tenantID, orderID, entries)
	return args.Get(0).(int64), args.Get(1).(integration.UpsertResult), args.Error(2)
}

func (m *MockSalesLedgerRepository) FindByOrder(ctx context.Context, tenantID uuid.UUID, orderID string) ([]integration.SalesLedgerEntry, error) {
	args := m.Called(ctx, tenantID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SalesLedgerEntry), args.Error(1)
}

// ---------------------------------------------------------------------------
// MockWarehouseMappingRepository
// ---------------------------------------------------------------------------

type MockWarehouseMappingRepository struct {
	mock.Mock
}

func (m *MockWarehouseMappingRepository) FindByExternalLocation(ctx context.Context, tenantID uuid.UUID, locationID string) (*integration.WarehouseMapping, error) {
	args := m.Called(ctx, tenantID, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.WarehouseMapping), args.Error(1)
}

func (m *MockWarehouseMappingRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]integration.WarehouseMapping, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.WarehouseMapping), args.Error(1)
}

func (m *MockWarehouseMappingRepository) Upsert(ctx context.Context, mapping *integration.WarehouseMapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

func (m *MockWarehouseMappingRepository) Deactivate(ctx context.Context, tenantID uuid.UUID, locationID string) error {
	args := m.Called(ctx, tenantID, locationID)
	return args.Error(0)
}

// ---------------------------------------------------------------------------
// MockTenantSyncConfigRepository
// ---------------------------------------------------------------------------

type MockTenantSyncConfigRepository struct {
	mock.Mock
}

func (m *MockTenantSyncConfigRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*integration.TenantSyncConfig, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TenantSyncConfig), args.Error(1)
}

func (m *MockTenantSyncConfigRepository) ListSyncEnabled(ctx context.Context) ([]integration.TenantSyncConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.TenantSyncConfig), args.Error(1)
}

func (m *MockTenantSyncConfigRepository) Save(ctx context.Context, cfg *integration.TenantSyncConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

// ---------------------------------------------------------------------------
// MockPlatform
// ---------------------------------------------------------------------------

type MockPlatform struct {
	mock.Mock
}

func (m *MockPlatform) ListOrdersUpdatedSince(ctx context.Context, cfg integration.TenantSyncConfig, since time.Time) ([]integration.OrderEvent, error) {
	args := m.Called(ctx, cfg, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.OrderEvent), args.Error(1)
}

func (m *MockPlatform) ListLocations(ctx context.Context, cfg integration.TenantSyncConfig) ([]integration.PlatformLocation, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.PlatformLocation), args.Error(1)
}

func (m *MockPlatform) SetInventoryLevel(ctx context.Context, cfg integration.TenantSyncConfig, inventoryItemID, locationID string, available int64) error {
	args := m.Called(ctx, cfg, inventoryItemID, locationID, available)
	return args.Error(0)
}

// ---------------------------------------------------------------------------
// MockOrderEnqueuer / MockIdempotencyStore
// ---------------------------------------------------------------------------

type MockOrderEnqueuer struct {
	mock.Mock
}

func (m *MockOrderEnqueuer) Enqueue(ctx context.Context, req OrderSyncRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

// Compile-time interface checks
var (
	_ integration.ProductMappingRepository   = (*MockProductMappingRepository)(nil)
	_ integration.UnmappedProductRepository  = (*MockUnmappedProductRepository)(nil)
	_ integration.StockRepository            = (*MockStockRepository)(nil)
	_ integration.SalesLedgerRepository      = (*MockSalesLedgerRepository)(nil)
	_ integration.WarehouseMappingRepository = (*MockWarehouseMappingRepository)(nil)
	_ integration.TenantSyncConfigRepository = (*MockTenantSyncConfigRepository)(nil)
	_ integration.Platform                   = (*MockPlatform)(nil)
	_ OrderEnqueuer                          = (*MockOrderEnqueuer)(nil)
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func newTenantConfig() integration.TenantSyncConfig {
	return integration.TenantSyncConfig{
		TenantID:                uuid.New(),
		AuthoritativeLocationID: "loc-main",
		ShopDomain:              "demo.example-shop.com",
		Timezone:                "UTC",
		SyncEnabled:             true,
	}
}

func newMapping(tenantID uuid.UUID, variantID, inventoryItemID, sku string) *integration.ProductMapping {
	m, err := integration.NewProductMapping(tenantID, variantID, inventoryItemID, sku)
	if err != nil {
		panic(err)
	}
	return m
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
