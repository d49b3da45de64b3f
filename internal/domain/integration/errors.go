package integration

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// Tenant configuration
	ErrInvalidTenantID         = errors.New("integration: invalid tenant ID")
	ErrTenantNotConfigured     = errors.New("integration: tenant sync not configured")
	ErrTenantSyncDisabled      = errors.New("integration: tenant sync disabled")
	ErrNoAuthoritativeLocation = errors.New("integration: tenant has no authoritative location")
	ErrNoStoreLinkage          = errors.New("integration: tenant has no store linkage")
	ErrInvalidTimezone         = errors.New("integration: invalid tenant timezone")

	// Mappings and store records
	ErrMappingNotFound          = errors.New("integration: product mapping not found")
	ErrMappingInvalidVariantID  = errors.New("integration: invalid external variant ID")
	ErrMappingInvalidSKU        = errors.New("integration: invalid internal SKU")
	ErrProductNotFound          = errors.New("integration: store product not found")
	ErrWarehouseMappingNotFound = errors.New("integration: warehouse mapping not found")
	ErrInvalidLocationID        = errors.New("integration: invalid external location ID")

	// Platform
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRateLimited     = errors.New("integration: platform rate limited")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrInvalidSignature        = errors.New("integration: invalid webhook signature")
	ErrUnsupportedTopic        = errors.New("integration: unsupported event topic")
)

// ConfigurationError means the tenant cannot be synced at all until its
// settings are fixed. Callers log it and skip the tenant.
type ConfigurationError struct {
	TenantID uuid.UUID
	Err      error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("integration: configuration error for tenant %s: %v", e.TenantID, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError wraps err as a ConfigurationError for tenantID.
func NewConfigurationError(tenantID uuid.UUID, err error) *ConfigurationError {
	return &ConfigurationError{TenantID: tenantID, Err: err}
}

// NotMappedError reports a platform identifier with no internal mapping.
// It is recoverable: the item goes to unmapped tracking and processing continues.
type NotMappedError struct {
	TenantID                uuid.UUID
	ExternalVariantID       string
	ExternalInventoryItemID string
	ExternalSKU             string
}

func (e *NotMappedError) Error() string {
	switch {
	case e.ExternalVariantID != "":
		return fmt.Sprintf("integration: variant %s (sku %q) is not mapped", e.ExternalVariantID, e.ExternalSKU)
	case e.ExternalInventoryItemID != "":
		return fmt.Sprintf("integration: inventory item %s is not mapped", e.ExternalInventoryItemID)
	default:
		return fmt.Sprintf("integration: sku %q is not mapped", e.ExternalSKU)
	}
}

func (e *NotMappedError) Is(target error) bool { return target == ErrMappingNotFound }

// ValidationError describes why a ledger candidate was rejected.
type ValidationError struct {
	Field  string
	Rule   string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("integration: invalid %s (%s): %s", e.Field, e.Rule, e.Reason)
}

// TransientStoreError wraps a store or platform failure that may succeed on retry.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("integration: %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// NewTransientStoreError returns nil when err is nil.
func NewTransientStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var transient *TransientStoreError
	if errors.As(err, &transient) {
		return err
	}
	return &TransientStoreError{Op: op, Err: err}
}

// IsRetryable reports whether err is worth retrying with backoff.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var transient *TransientStoreError
	if errors.As(err, &transient) {
		return true
	}
	return errors.Is(err, ErrPlatformUnavailable) || errors.Is(err, ErrPlatformRateLimited)
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
