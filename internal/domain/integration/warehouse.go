package integration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlatformLocation is a platform location as reported by the API or a webhook.
type PlatformLocation struct {
	ID       string
	Name     string
	Address1 string
	Address2 string
	City     string
	Province string
	Country  string
	Zip      string
	Active   bool
}

// LocationEvent is a location create/update/delete notification.
type LocationEvent struct {
	TenantID uuid.UUID
	Location PlatformLocation
	Deleted  bool
}

// WarehouseMapping mirrors one platform location onto an internal warehouse.
// One-to-one per (TenantID, ExternalLocationID).
type WarehouseMapping struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	ExternalLocationID  string
	InternalWarehouseID uuid.UUID
	Name                string
	Address1            string
	Address2            string
	City                string
	Province            string
	Country             string
	Zip                 string
	Active              bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewWarehouseMapping creates a mapping for a location seen for the first time.
func NewWarehouseMapping(tenantID uuid.UUID, loc PlatformLocation) (*WarehouseMapping, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	if strings.TrimSpace(loc.ID) == "" {
		return nil, ErrInvalidLocationID
	}
	now := time.Now()
	w := &WarehouseMapping{
		ID:                  uuid.New(),
		TenantID:            tenantID,
		ExternalLocationID:  strings.TrimSpace(loc.ID),
		InternalWarehouseID: uuid.New(),
		CreatedAt:           now,
	}
	w.Apply(loc)
	return w, nil
}

// Apply copies location metadata onto the mapping.
func (w *WarehouseMapping) Apply(loc PlatformLocation) {
	w.Name = loc.Name
	w.Address1 = loc.Address1
	w.Address2 = loc.Address2
	w.City = loc.City
	w.Province = loc.Province
	w.Country = loc.Country
	w.Zip = loc.Zip
	w.Active = loc.Active
	w.UpdatedAt = time.Now()
}

// WarehouseMappingRepository persists location mirrors.
type WarehouseMappingRepository interface {
	FindByExternalLocation(ctx context.Context, tenantID uuid.UUID, locationID string) (*WarehouseMapping, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]WarehouseMapping, error)
	// Upsert keeps InternalWarehouseID of an existing row
	Upsert(ctx context.Context, mapping *WarehouseMapping) error
	Deactivate(ctx context.Context, tenantID uuid.UUID, locationID string) error
}
