package integration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UnmappedProduct records a platform variant seen without a mapping.
// One row per (TenantID, ExternalVariantID); repeated sightings refresh it.
type UnmappedProduct struct {
	TenantID          uuid.UUID
	ExternalVariantID string
	ExternalSKU       string
	Title             string
	FirstSeenAt       time.Time
	LastSeenAt        time.Time
	SeenCount         int64
}

// NewUnmappedProduct builds a sighting. Lines without a variant id are keyed
// by their SKU so they still collapse onto one row.
func NewUnmappedProduct(tenantID uuid.UUID, variantID, sku, title string, seenAt time.Time) UnmappedProduct {
	variantID = strings.TrimSpace(variantID)
	sku = strings.TrimSpace(sku)
	if variantID == "" {
		variantID = "sku:" + sku
	}
	return UnmappedProduct{
		TenantID:          tenantID,
		ExternalVariantID: variantID,
		ExternalSKU:       sku,
		Title:             title,
		FirstSeenAt:       seenAt.UTC(),
		LastSeenAt:        seenAt.UTC(),
		SeenCount:         1,
	}
}

// UnmappedProductRepository tracks unmapped variants.
type UnmappedProductRepository interface {
	// Upsert inserts the sighting or refreshes last_seen_at, sku and title
	Upsert(ctx context.Context, product UnmappedProduct) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]UnmappedProduct, error)
	Delete(ctx context.Context, tenantID uuid.UUID, variantID string) error
}
