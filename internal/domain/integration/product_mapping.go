package integration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// SyncDirection
// ---------------------------------------------------------------------------

// SyncDirection is the direction a stock write travelled.
type SyncDirection string

const (
	// SyncDirectionToStore is a platform change written into the internal store
	SyncDirectionToStore SyncDirection = "to_store"
	// SyncDirectionToPlatform is a store change written to the platform
	SyncDirectionToPlatform SyncDirection = "to_platform"
)

// IsValid checks if the direction is known
func (d SyncDirection) IsValid() bool {
	return d == SyncDirectionToStore || d == SyncDirectionToPlatform
}

// Opposite returns the reverse direction.
func (d SyncDirection) Opposite() SyncDirection {
	if d == SyncDirectionToStore {
		return SyncDirectionToPlatform
	}
	return SyncDirectionToStore
}

func (d SyncDirection) String() string {
	return string(d)
}

// ---------------------------------------------------------------------------
// SyncMetadata
// ---------------------------------------------------------------------------

// SyncMetadata is the "last write" record shared by both sync directions.
// It only exists to detect echoes and must never feed reporting.
type SyncMetadata struct {
	LastSyncDirection    SyncDirection
	LastSyncedAt         *time.Time
	LastSyncedStockValue *int64
}

// IsZero reports whether no write has been stamped yet.
func (m SyncMetadata) IsZero() bool {
	return m.LastSyncDirection == "" && m.LastSyncedAt == nil && m.LastSyncedStockValue == nil
}

// NewSyncMetadata builds a stamp for a write of value in direction at time at.
func NewSyncMetadata(direction SyncDirection, at time.Time, value int64) SyncMetadata {
	at = at.UTC()
	return SyncMetadata{
		LastSyncDirection:    direction,
		LastSyncedAt:         &at,
		LastSyncedStockValue: &value,
	}
}

// ---------------------------------------------------------------------------
// ProductMapping Entity
// ---------------------------------------------------------------------------

// ProductMapping links a platform variant to an internal SKU.
// Unique per (TenantID, ExternalVariantID).
type ProductMapping struct {
	ID                      uuid.UUID
	TenantID                uuid.UUID
	ExternalVariantID       string
	ExternalInventoryItemID string
	InternalSKU             string
	Sync                    SyncMetadata
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// NewProductMapping creates a mapping with an empty sync stamp.
func NewProductMapping(tenantID uuid.UUID, variantID, inventoryItemID, internalSKU string) (*ProductMapping, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return nil, ErrMappingInvalidVariantID
	}
	internalSKU = strings.TrimSpace(internalSKU)
	if internalSKU == "" {
		return nil, ErrMappingInvalidSKU
	}

	now := time.Now()
	return &ProductMapping{
		ID:                      uuid.New(),
		TenantID:                tenantID,
		ExternalVariantID:       variantID,
		ExternalInventoryItemID: strings.TrimSpace(inventoryItemID),
		InternalSKU:             internalSKU,
		CreatedAt:               now,
		UpdatedAt:               now,
	}, nil
}

// Stamp records a decided stock write.
func (m *ProductMapping) Stamp(direction SyncDirection, at time.Time, value int64) {
	m.Sync = NewSyncMetadata(direction, at, value)
	m.UpdatedAt = time.Now()
}

// Refresh updates the identifiers learned from a newer product discovery,
// leaving the sync stamp untouched.
func (m *ProductMapping) Refresh(inventoryItemID, internalSKU string) {
	if v := strings.TrimSpace(inventoryItemID); v != "" {
		m.ExternalInventoryItemID = v
	}
	if v := strings.TrimSpace(internalSKU); v != "" {
		m.InternalSKU = v
	}
	m.UpdatedAt = time.Now()
}

// ---------------------------------------------------------------------------
// Repository
// ---------------------------------------------------------------------------

// ProductMappingRepository persists mappings. Finders return ErrMappingNotFound
// when nothing matches.
type ProductMappingRepository interface {
	FindByVariant(ctx context.Context, tenantID uuid.UUID, variantID string) (*ProductMapping, error)
	FindBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (*ProductMapping, error)
	FindByInventoryItem(ctx context.Context, tenantID uuid.UUID, inventoryItemID string) (*ProductMapping, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]ProductMapping, error)

	// Upsert inserts or refreshes identifiers on (tenant, variant). It never
	// overwrites the sync stamp of an existing row.
	Upsert(ctx context.Context, mapping *ProductMapping) error
	// SaveSyncMetadata overwrites the stamp. Last write wins.
	SaveSyncMetadata(ctx context.Context, tenantID uuid.UUID, variantID string, meta SyncMetadata) error
	Delete(ctx context.Context, tenantID uuid.UUID, variantID string) error
}
