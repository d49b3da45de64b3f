package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
)

// GormUnmappedProductRepository implements integration.UnmappedProductRepository using GORM
type GormUnmappedProductRepository struct {
	db *gorm.DB
}

// NewGormUnmappedProductRepository creates a new GormUnmappedProductRepository
func NewGormUnmappedProductRepository(db *gorm.DB) *GormUnmappedProductRepository {
	return &GormUnmappedProductRepository{db: db}
}

// Upsert records a sighting. A repeat sighting bumps seen_count and
// refreshes last_seen_at, sku and title; first_seen_at is kept.
func (r *GormUnmappedProductRepository) Upsert(ctx context.Context, product integration.UnmappedProduct) error {
	model := models.UnmappedProductModelFromDomain(product)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "external_variant_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"last_seen_at": gorm.Expr("excluded.last_seen_at"),
				"external_sku": gorm.Expr("excluded.external_sku"),
				"title":        gorm.Expr("excluded.title"),
				"seen_count":   gorm.Expr("unmapped_products.seen_count + 1"),
			}),
		}).
		Create(model).Error
}

// ListByTenant returns the most recently seen products first
func (r *GormUnmappedProductRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]integration.UnmappedProduct, error) {
	var rows []models.UnmappedProductModel
	q := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Order("last_seen_at DESC, external_variant_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]integration.UnmappedProduct, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Delete clears a variant once it has been mapped
func (r *GormUnmappedProductRepository) Delete(ctx context.Context, tenantID uuid.UUID, variantID string) error {
	return r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("external_variant_id = ?", variantID).
		Delete(&models.UnmappedProductModel{}).Error
}

var _ integration.UnmappedProductRepository = (*GormUnmappedProductRepository)(nil)
