package models

import (
	"time"

	"github.com/google/uuid"
)

// StoreProductModel is the internal store's product row. Only the columns
// the sync engine reads or writes are mapped.
type StoreProductModel struct {
	BaseModel
	TenantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_store_product_sku,priority:1"`
	SKU      string    `gorm:"column:sku;type:varchar(100);not null;uniqueIndex:idx_store_product_sku,priority:2"`
	Name     string    `gorm:"type:varchar(255)"`
	Stock    int64     `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StoreProductModel) TableName() string {
	return "store_products"
}

// NewStoreProductModel builds a product row; used by seeding and tests.
func NewStoreProductModel(tenantID uuid.UUID, sku, name string, stock int64) *StoreProductModel {
	now := time.Now()
	return &StoreProductModel{
		BaseModel: BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		TenantID:  tenantID,
		SKU:       sku,
		Name:      name,
		Stock:     stock,
	}
}

// All returns every model for auto-migration in tests.
func All() []any {
	return []any{
		&ProductMappingModel{},
		&SalesLedgerEntryModel{},
		&WarehouseMappingModel{},
		&UnmappedProductModel{},
		&TenantSyncConfigModel{},
		&StoreProductModel{},
	}
}
