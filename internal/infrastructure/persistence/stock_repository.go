package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
)

// GormStockRepository reads and writes stock of the internal store's products
type GormStockRepository struct {
	db *gorm.DB
}

// NewGormStockRepository creates a new GormStockRepository
func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

// GetStock returns the on-hand quantity of a SKU
func (r *GormStockRepository) GetStock(ctx context.Context, tenantID uuid.UUID, sku string) (int64, error) {
	var model models.StoreProductModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("sku = ?", sku).
		Select("id", "stock").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, integration.ErrProductNotFound
		}
		return 0, err
	}
	return model.Stock, nil
}

// SetStock overwrites the on-hand quantity of a SKU
func (r *GormStockRepository) SetStock(ctx context.Context, tenantID uuid.UUID, sku string, quantity int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.StoreProductModel{}).
		Scopes(TenantScope(tenantID)).
		Where("sku = ?", sku).
		Updates(map[string]any{"stock": quantity, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrProductNotFound
	}
	return nil
}

// ExistsSKU reports whether the store carries the SKU
func (r *GormStockRepository) ExistsSKU(ctx context.Context, tenantID uuid.UUID, sku string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.StoreProductModel{}).
		Scopes(TenantScope(tenantID)).
		Where("sku = ?", sku).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

var _ integration.StockRepository = (*GormStockRepository)(nil)
