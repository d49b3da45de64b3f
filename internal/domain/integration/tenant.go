package integration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TenantSyncConfig holds the per-tenant settings every sync handler needs.
// It is supplied by tenant provisioning and passed explicitly into each call.
type TenantSyncConfig struct {
	TenantID uuid.UUID
	// AuthoritativeLocationID is the single platform location whose stock is mirrored
	AuthoritativeLocationID string
	// ShopDomain links the tenant to its platform store
	ShopDomain string
	// AccessToken authenticates Admin API calls to the platform
	AccessToken string
	// Timezone is the IANA zone used to derive ledger sale dates
	Timezone string
	// WebhookSecret signs inbound webhook bodies
	WebhookSecret string
	SyncEnabled   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate returns a *ConfigurationError when the tenant cannot be synced.
func (c TenantSyncConfig) Validate() error {
	if c.TenantID == uuid.Nil {
		return NewConfigurationError(c.TenantID, ErrInvalidTenantID)
	}
	if !c.SyncEnabled {
		return NewConfigurationError(c.TenantID, ErrTenantSyncDisabled)
	}
	if strings.TrimSpace(c.AuthoritativeLocationID) == "" {
		return NewConfigurationError(c.TenantID, ErrNoAuthoritativeLocation)
	}
	if strings.TrimSpace(c.ShopDomain) == "" {
		return NewConfigurationError(c.TenantID, ErrNoStoreLinkage)
	}
	if _, err := c.Location(); err != nil {
		return NewConfigurationError(c.TenantID, err)
	}
	return nil
}

// Location resolves the tenant timezone. An empty timezone means UTC.
func (c TenantSyncConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, ErrInvalidTimezone
	}
	return loc, nil
}

// IsAuthoritativeLocation reports whether locationID is the mirrored location.
func (c TenantSyncConfig) IsAuthoritativeLocation(locationID string) bool {
	return locationID != "" && locationID == c.AuthoritativeLocationID
}

// TenantSyncConfigRepository reads tenant settings written by provisioning.
type TenantSyncConfigRepository interface {
	// FindByTenant returns ErrTenantNotConfigured when no row exists
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*TenantSyncConfig, error)
	// ListSyncEnabled returns every tenant with sync turned on
	ListSyncEnabled(ctx context.Context) ([]TenantSyncConfig, error)
	Save(ctx context.Context, cfg *TenantSyncConfig) error
}
