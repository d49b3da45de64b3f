package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
)

func TestGormWarehouseMappingRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormWarehouseMappingRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	w, err := integration.NewWarehouseMapping(tenantID, integration.PlatformLocation{ID: "loc-1", Name: "Main", Active: true})
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, w))
	internalID := w.InternalWarehouseID

	t.Run("upsert keeps the internal warehouse id", func(t *testing.T) {
		again, err := integration.NewWarehouseMapping(tenantID, integration.PlatformLocation{ID: "loc-1", Name: "Main Street", City: "Berlin", Active: true})
		require.NoError(t, err)
		require.NotEqual(t, internalID, again.InternalWarehouseID)
		require.NoError(t, repo.Upsert(ctx, again))

		got, err := repo.FindByExternalLocation(ctx, tenantID, "loc-1")
		require.NoError(t, err)
		assert.Equal(t, internalID, got.InternalWarehouseID)
		assert.Equal(t, "Main Street", got.Name)
		assert.Equal(t, "Berlin", got.City)
	})

	t.Run("deactivate keeps the row", func(t *testing.T) {
		require.NoError(t, repo.Deactivate(ctx, tenantID, "loc-1"))
		all, err := repo.ListByTenant(ctx, tenantID)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.False(t, all[0].Active)
	})

	t.Run("unknown location", func(t *testing.T) {
		_, err := repo.FindByExternalLocation(ctx, tenantID, "loc-x")
		assert.ErrorIs(t, err, integration.ErrWarehouseMappingNotFound)
		assert.ErrorIs(t, repo.Deactivate(ctx, tenantID, "loc-x"), integration.ErrWarehouseMappingNotFound)
	})
}

func TestGormUnmappedProductRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormUnmappedProductRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	t0 := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Upsert(ctx, integration.NewUnmappedProduct(tenantID, "v-1", "EXT-1", "Mug", t0)))
	require.NoError(t, repo.Upsert(ctx, integration.NewUnmappedProduct(tenantID, "v-2", "EXT-2", "Cap", t0.Add(time.Minute))))
	require.NoError(t, repo.Upsert(ctx, integration.NewUnmappedProduct(tenantID, "v-1", "EXT-1B", "Mug XL", t0.Add(time.Hour))))

	list, err := repo.ListByTenant(ctx, tenantID, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)

	latest := list[0]
	assert.Equal(t, "v-1", latest.ExternalVariantID)
	assert.Equal(t, int64(2), latest.SeenCount)
	assert.Equal(t, "EXT-1B", latest.ExternalSKU)
	assert.Equal(t, "Mug XL", latest.Title)
	assert.True(t, t0.Equal(latest.FirstSeenAt), "first sighting is kept")
	assert.True(t, t0.Add(time.Hour).Equal(latest.LastSeenAt))

	limited, err := repo.ListByTenant(ctx, tenantID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, repo.Delete(ctx, tenantID, "v-1"))
	list, err = repo.ListByTenant(ctx, tenantID, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGormTenantSyncConfigRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormTenantSyncConfigRepository(db)
	ctx := context.Background()

	enabled := &integration.TenantSyncConfig{
		TenantID:                uuid.New(),
		AuthoritativeLocationID: "loc-1",
		ShopDomain:              "demo.example.com",
		Timezone:                "Europe/Berlin",
		SyncEnabled:             true,
	}
	disabled := &integration.TenantSyncConfig{TenantID: uuid.New(), Timezone: "UTC"}
	require.NoError(t, repo.Save(ctx, enabled))
	require.NoError(t, repo.Save(ctx, disabled))

	got, err := repo.FindByTenant(ctx, enabled.TenantID)
	require.NoError(t, err)
	assert.Equal(t, "loc-1", got.AuthoritativeLocationID)
	assert.Equal(t, "Europe/Berlin", got.Timezone)

	list, err := repo.ListSyncEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, enabled.TenantID, list[0].TenantID)

	enabled.AuthoritativeLocationID = "loc-2"
	require.NoError(t, repo.Save(ctx, enabled))
	got, err = repo.FindByTenant(ctx, enabled.TenantID)
	require.NoError(t, err)
	assert.Equal(t, "loc-2", got.AuthoritativeLocationID)

	_, err = repo.FindByTenant(ctx, uuid.New())
	assert.ErrorIs(t, err, integration.ErrTenantNotConfigured)
}

func TestGormStockRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormStockRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	require.NoError(t, db.Create(models.NewStoreProductModel(tenantID, "SKU-1", "Mug", 10)).Error)

	stock, err := repo.GetStock(ctx, tenantID, "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), stock)

	require.NoError(t, repo.SetStock(ctx, tenantID, "SKU-1", 4))
	stock, err = repo.GetStock(ctx, tenantID, "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stock)

	exists, err := repo.ExistsSKU(ctx, tenantID, "SKU-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsSKU(ctx, uuid.New(), "SKU-1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.GetStock(ctx, tenantID, "SKU-404")
	assert.ErrorIs(t, err, integration.ErrProductNotFound)
	assert.ErrorIs(t, repo.SetStock(ctx, tenantID, "SKU-404", 1), integration.ErrProductNotFound)
}
