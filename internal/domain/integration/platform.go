package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProductEvent is a product create/update/delete notification listing the
// product's variants. It drives product discovery.
type ProductEvent struct {
	TenantID  uuid.UUID
	ProductID string
	Title     string
	Deleted   bool
	Variants  []ProductVariant
}

// ProductVariant is one variant of a platform product.
type ProductVariant struct {
	VariantID       string
	InventoryItemID string
	SKU             string
	Title           string
}

// OrderSource lists orders from the platform API. Used by reconciliation.
type OrderSource interface {
	ListOrdersUpdatedSince(ctx context.Context, cfg TenantSyncConfig, since time.Time) ([]OrderEvent, error)
}

// LocationSource lists platform locations. Used by the warehouse mirror.
type LocationSource interface {
	ListLocations(ctx context.Context, cfg TenantSyncConfig) ([]PlatformLocation, error)
}

// InventoryLevelWriter sets available stock on the platform.
type InventoryLevelWriter interface {
	SetInventoryLevel(ctx context.Context, cfg TenantSyncConfig, inventoryItemID, locationID string, available int64) error
}

// Platform is the full port onto the commerce platform Admin API.
type Platform interface {
	OrderSource
	LocationSource
	InventoryLevelWriter
}
