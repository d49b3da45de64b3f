package integration

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTenantConfig() TenantSyncConfig {
	return TenantSyncConfig{
		TenantID:                uuid.New(),
		AuthoritativeLocationID: "loc-1",
		ShopDomain:              "demo.example-shop.com",
		Timezone:                "UTC",
		SyncEnabled:             true,
	}
}

func TestTenantSyncConfig_Validate(t *testing.T) {
	t.Run("Valid config", func(t *testing.T) {
		assert.NoError(t, validTenantConfig().Validate())
	})

	tests := []struct {
		name   string
		mutate func(*TenantSyncConfig)
		want   error
	}{
		{"Missing tenant", func(c *TenantSyncConfig) { c.TenantID = uuid.Nil }, ErrInvalidTenantID},
		{"Sync disabled", func(c *TenantSyncConfig) { c.SyncEnabled = false }, ErrTenantSyncDisabled},
		{"No authoritative location", func(c *TenantSyncConfig) { c.AuthoritativeLocationID = " " }, ErrNoAuthoritativeLocation},
		{"No store linkage", func(c *TenantSyncConfig) { c.ShopDomain = "" }, ErrNoStoreLinkage},
		{"Unknown timezone", func(c *TenantSyncConfig) { c.Timezone = "Mars/Olympus" }, ErrInvalidTimezone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTenantConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsConfigurationError(err))

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, cfg.TenantID, cfgErr.TenantID)
		})
	}
}

func TestTenantSyncConfig_Location(t *testing.T) {
	cfg := validTenantConfig()
	cfg.Timezone = ""

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("Transient errors are retryable", func(t *testing.T) {
		err := NewTransientStoreError("insert ledger", errors.New("connection reset"))
		assert.True(t, IsRetryable(err))
		assert.Contains(t, err.Error(), "insert ledger")
	})

	t.Run("Wrapping twice keeps the original op", func(t *testing.T) {
		inner := NewTransientStoreError("find mapping", errors.New("timeout"))
		outer := NewTransientStoreError("resolve", inner)
		assert.Same(t, inner, outer)
	})

	t.Run("Nil stays nil", func(t *testing.T) {
		assert.NoError(t, NewTransientStoreError("noop", nil))
		assert.False(t, IsRetryable(nil))
	})

	t.Run("Rate limiting is retryable", func(t *testing.T) {
		assert.True(t, IsRetryable(ErrPlatformRateLimited))
		assert.False(t, IsRetryable(ErrInvalidSignature))
	})

	t.Run("Not mapped matches the sentinel", func(t *testing.T) {
		err := &NotMappedError{ExternalVariantID: "v-9", ExternalSKU: "X"}
		assert.ErrorIs(t, err, ErrMappingNotFound)
		assert.Contains(t, err.Error(), "v-9")
	})

	t.Run("Configuration errors are not retryable", func(t *testing.T) {
		assert.False(t, IsRetryable(NewConfigurationError(uuid.New(), ErrNoStoreLinkage)))
	})
}
