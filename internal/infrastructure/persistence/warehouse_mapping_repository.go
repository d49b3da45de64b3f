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

// GormWarehouseMappingRepository implements integration.WarehouseMappingRepository using GORM
type GormWarehouseMappingRepository struct {
	db *gorm.DB
}

// NewGormWarehouseMappingRepository creates a new GormWarehouseMappingRepository
func NewGormWarehouseMappingRepository(db *gorm.DB) *GormWarehouseMappingRepository {
	return &GormWarehouseMappingRepository{db: db}
}

// FindByExternalLocation finds the mapping of a platform location
func (r *GormWarehouseMappingRepository) FindByExternalLocation(ctx context.Context, tenantID uuid.UUID, locationID string) (*integration.WarehouseMapping, error) {
	var model models.WarehouseMappingModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("external_location_id = ?", locationID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrWarehouseMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByTenant returns every mirrored location, active or not
func (r *GormWarehouseMappingRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]integration.WarehouseMapping, error) {
	var rows []models.WarehouseMappingModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Order("external_location_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]integration.WarehouseMapping, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Upsert inserts the location or refreshes its descriptive columns.
// internal_warehouse_id is never part of the update set.
func (r *GormWarehouseMappingRepository) Upsert(ctx context.Context, mapping *integration.WarehouseMapping) error {
	model := models.WarehouseMappingModelFromDomain(mapping)
	now := time.Now()
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}
	model.UpdatedAt = now

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "external_location_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "address1", "address2", "city", "province", "country", "zip", "active", "updated_at",
			}),
		}).
		Create(model).Error
}

// Deactivate marks a location inactive. The row and its internal id stay.
func (r *GormWarehouseMappingRepository) Deactivate(ctx context.Context, tenantID uuid.UUID, locationID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.WarehouseMappingModel{}).
		Scopes(TenantScope(tenantID)).
		Where("external_location_id = ?", locationID).
		Updates(map[string]any{"active": false, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrWarehouseMappingNotFound
	}
	return nil
}

var _ integration.WarehouseMappingRepository = (*GormWarehouseMappingRepository)(nil)
