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

// GormTenantSyncConfigRepository implements integration.TenantSyncConfigRepository using GORM
type GormTenantSyncConfigRepository struct {
	db *gorm.DB
}

// NewGormTenantSyncConfigRepository creates a new GormTenantSyncConfigRepository
func NewGormTenantSyncConfigRepository(db *gorm.DB) *GormTenantSyncConfigRepository {
	return &GormTenantSyncConfigRepository{db: db}
}

// FindByTenant returns the tenant's sync configuration
func (r *GormTenantSyncConfigRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*integration.TenantSyncConfig, error) {
	var model models.TenantSyncConfigModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrTenantNotConfigured
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListSyncEnabled returns every tenant with sync turned on
func (r *GormTenantSyncConfigRepository) ListSyncEnabled(ctx context.Context) ([]integration.TenantSyncConfig, error) {
	var rows []models.TenantSyncConfigModel
	if err := r.db.WithContext(ctx).
		Where("sync_enabled = ?", true).
		Order("tenant_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]integration.TenantSyncConfig, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Save inserts or replaces the tenant's configuration
func (r *GormTenantSyncConfigRepository) Save(ctx context.Context, cfg *integration.TenantSyncConfig) error {
	model := models.TenantSyncConfigModelFromDomain(cfg)
	now := time.Now()
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}
	model.UpdatedAt = now

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"authoritative_location_id", "shop_domain", "access_token",
				"timezone", "webhook_secret", "sync_enabled", "updated_at",
			}),
		}).
		Create(model).Error; err != nil {
		return err
	}
	cfg.CreatedAt, cfg.UpdatedAt = model.CreatedAt, model.UpdatedAt
	return nil
}

var _ integration.TenantSyncConfigRepository = (*GormTenantSyncConfigRepository)(nil)
