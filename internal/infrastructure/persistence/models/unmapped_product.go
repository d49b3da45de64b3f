package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/stocksync/internal/domain/integration"
)

// UnmappedProductModel is the persistence model for integration.UnmappedProduct.
type UnmappedProductModel struct {
	TenantID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExternalVariantID string    `gorm:"type:varchar(120);primaryKey"`
	ExternalSKU       string    `gorm:"column:external_sku;type:varchar(100)"`
	Title             string    `gorm:"type:varchar(255)"`
	FirstSeenAt       time.Time `gorm:"not null"`
	LastSeenAt        time.Time `gorm:"not null;index"`
	SeenCount         int64     `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UnmappedProductModel) TableName() string {
	return "unmapped_products"
}

// ToDomain converts the persistence model to a domain UnmappedProduct.
func (m *UnmappedProductModel) ToDomain() integration.UnmappedProduct {
	return integration.UnmappedProduct{
		TenantID:          m.TenantID,
		ExternalVariantID: m.ExternalVariantID,
		ExternalSKU:       m.ExternalSKU,
		Title:             m.Title,
		FirstSeenAt:       m.FirstSeenAt,
		LastSeenAt:        m.LastSeenAt,
		SeenCount:         m.SeenCount,
	}
}

// UnmappedProductModelFromDomain creates a persistence model from a sighting.
func UnmappedProductModelFromDomain(p integration.UnmappedProduct) *UnmappedProductModel {
	count := p.SeenCount
	if count < 1 {
		count = 1
	}
	return &UnmappedProductModel{
		TenantID:          p.TenantID,
		ExternalVariantID: p.ExternalVariantID,
		ExternalSKU:       p.ExternalSKU,
		Title:             p.Title,
		FirstSeenAt:       p.FirstSeenAt,
		LastSeenAt:        p.LastSeenAt,
		SeenCount:         count,
	}
}
