package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/stocksync/internal/domain/integration"
)

// ProductMappingModel is the persistence model for integration.ProductMapping.
type ProductMappingModel struct {
	BaseModel
	TenantID                uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_product_mapping_variant,priority:1;index:idx_product_mapping_sku,priority:1;index:idx_product_mapping_inventory_item,priority:1"`
	ExternalVariantID       string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_product_mapping_variant,priority:2"`
	ExternalInventoryItemID string    `gorm:"type:varchar(64);index:idx_product_mapping_inventory_item,priority:2"`
	InternalSKU             string    `gorm:"column:internal_sku;type:varchar(100);not null;index:idx_product_mapping_sku,priority:2"`
	LastSyncDirection       *string   `gorm:"type:varchar(20)"`
	LastSyncedAt            *time.Time
	LastSyncedStockValue    *int64
}

// TableName returns the table name for GORM
func (ProductMappingModel) TableName() string {
	return "product_mappings"
}

// ToDomain converts the persistence model to a domain ProductMapping.
func (m *ProductMappingModel) ToDomain() *integration.ProductMapping {
	mapping := &integration.ProductMapping{
		ID:                      m.ID,
		TenantID:                m.TenantID,
		ExternalVariantID:       m.ExternalVariantID,
		ExternalInventoryItemID: m.ExternalInventoryItemID,
		InternalSKU:             m.InternalSKU,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
	mapping.Sync = SyncMetadataFromColumns(m.LastSyncDirection, m.LastSyncedAt, m.LastSyncedStockValue)
	return mapping
}

// ProductMappingModelFromDomain creates a persistence model from a domain ProductMapping.
func ProductMappingModelFromDomain(pm *integration.ProductMapping) *ProductMappingModel {
	m := &ProductMappingModel{
		BaseModel: BaseModel{
			ID:        pm.ID,
			CreatedAt: pm.CreatedAt,
			UpdatedAt: pm.UpdatedAt,
		},
		TenantID:                pm.TenantID,
		ExternalVariantID:       pm.ExternalVariantID,
		ExternalInventoryItemID: pm.ExternalInventoryItemID,
		InternalSKU:             pm.InternalSKU,
	}
	m.ensureID()
	m.LastSyncDirection, m.LastSyncedAt, m.LastSyncedStockValue = SyncMetadataColumns(pm.Sync)
	return m
}

// SyncMetadataColumns flattens sync metadata into nullable columns.
func SyncMetadataColumns(meta integration.SyncMetadata) (*string, *time.Time, *int64) {
	if meta.IsZero() {
		return nil, nil, nil
	}
	var direction *string
	if meta.LastSyncDirection != "" {
		d := string(meta.LastSyncDirection)
		direction = &d
	}
	var at *time.Time
	if meta.LastSyncedAt != nil {
		t := meta.LastSyncedAt.UTC()
		at = &t
	}
	var value *int64
	if meta.LastSyncedStockValue != nil {
		v := *meta.LastSyncedStockValue
		value = &v
	}
	return direction, at, value
}

// SyncMetadataFromColumns rebuilds sync metadata from nullable columns.
func SyncMetadataFromColumns(direction *string, at *time.Time, value *int64) integration.SyncMetadata {
	var meta integration.SyncMetadata
	if direction != nil {
		meta.LastSyncDirection = integration.SyncDirection(*direction)
	}
	if at != nil {
		t := at.UTC()
		meta.LastSyncedAt = &t
	}
	if value != nil {
		v := *value
		meta.LastSyncedStockValue = &v
	}
	return meta
}
