package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
)

// GormProductMappingRepository implements integration.ProductMappingRepository using GORM
type GormProductMappingRepository struct {
	db *gorm.DB
}

// NewGormProductMappingRepository creates a new GormProductMappingRepository
func NewGormProductMappingRepository(db *gorm.DB) *GormProductMappingRepository {
	return &GormProductMappingRepository{db: db}
}

// FindByVariant finds the mapping of a platform variant
func (r *GormProductMappingRepository) FindByVariant(ctx context.Context, tenantID uuid.UUID, variantID string) (*integration.ProductMapping, error) {
	return r.findOne(ctx, tenantID, "external_variant_id = ?", variantID)
}

// FindBySKU finds the mapping of an internal SKU. When several variants
// share a SKU the oldest mapping wins.
func (r *GormProductMappingRepository) FindBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (*integration.ProductMapping, error) {
	return r.findOne(ctx, tenantID, "internal_sku = ?", sku)
}

// FindByInventoryItem finds the mapping of a platform inventory item
func (r *GormProductMappingRepository) FindByInventoryItem(ctx context.Context, tenantID uuid.UUID, inventoryItemID string) (*integration.ProductMapping, error) {
	return r.findOne(ctx, tenantID, "external_inventory_item_id = ?", inventoryItemID)
}

func (r *GormProductMappingRepository) findOne(ctx context.Context, tenantID uuid.UUID, cond string, arg any) (*integration.ProductMapping, error) {
	var model models.ProductMappingModel
	err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where(cond, arg).
		Order("created_at ASC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByTenant returns every mapping of a tenant ordered by SKU
func (r *GormProductMappingRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]integration.ProductMapping, error) {
	var rows []models.ProductMappingModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Order("internal_sku ASC, external_variant_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	mappings := make([]integration.ProductMapping, len(rows))
	for i := range rows {
		mappings[i] = *rows[i].ToDomain()
	}
	return mappings, nil
}

// Upsert inserts the mapping or refreshes its identifiers. The sync stamp
// columns are not in the update set, so an existing stamp survives.
func (r *GormProductMappingRepository) Upsert(ctx context.Context, mapping *integration.ProductMapping) error {
	model := models.ProductMappingModelFromDomain(mapping)
	now := time.Now()
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}
	model.UpdatedAt = now

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "external_variant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"external_inventory_item_id", "internal_sku", "updated_at"}),
		}).
		Create(model).Error
}

// SaveSyncMetadata overwrites the stamp of one mapping
func (r *GormProductMappingRepository) SaveSyncMetadata(ctx context.Context, tenantID uuid.UUID, variantID string, meta integration.SyncMetadata) error {
	direction, at, value := models.SyncMetadataColumns(meta)
	result := r.db.WithContext(ctx).
		Model(&models.ProductMappingModel{}).
		Scopes(TenantScope(tenantID)).
		Where("external_variant_id = ?", variantID).
		Updates(map[string]any{
			"last_sync_direction":     direction,
			"last_synced_at":          at,
			"last_synced_stock_value": value,
			"updated_at":              time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrMappingNotFound
	}
	return nil
}

// Delete removes the mapping of a variant. Deleting a missing mapping is a no-op.
func (r *GormProductMappingRepository) Delete(ctx context.Context, tenantID uuid.UUID, variantID string) error {
	return r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("external_variant_id = ?", variantID).
		Delete(&models.ProductMappingModel{}).Error
}

var _ integration.ProductMappingRepository = (*GormProductMappingRepository)(nil)
