package ecommerce

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultBaseURLTemplate is formatted with the tenant's shop domain
	DefaultBaseURLTemplate = "https://%s/admin/api"
	DefaultAPIVersion      = "2024-01"

	// AccessTokenHeader carries the tenant's Admin API token
	AccessTokenHeader = "X-Platform-Access-Token"

	// maxResponseSize is the maximum accepted Admin API response size (10MB)
	maxResponseSize = 10 * 1024 * 1024
	maxPageSize     = 250
)

var (
	ErrClientConfigMissingBaseURL = errors.New("ecommerce: base URL template must contain %s")
	ErrClientConfigMissingVersion = errors.New("ecommerce: API version is required")
	ErrMissingShopDomain          = errors.New("ecommerce: tenant has no shop domain")
	ErrMissingAccessToken         = errors.New("ecommerce: tenant has no access token")
)

// ClientConfig holds Admin API client settings shared by all tenants
type ClientConfig struct {
	// BaseURLTemplate is formatted with the tenant's shop domain
	BaseURLTemplate string
	APIVersion      string
	// Timeout bounds a single HTTP request
	Timeout time.Duration
	// PageSize is the per-page limit when listing orders
	PageSize int
	// MaxPages caps the pages fetched by one listing call
	MaxPages int
}

// DefaultClientConfig returns the production defaults
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURLTemplate: DefaultBaseURLTemplate,
		APIVersion:      DefaultAPIVersion,
		Timeout:         30 * time.Second,
		PageSize:        maxPageSize,
		MaxPages:        40,
	}
}

// Validate checks the configuration and fills zero values with defaults
func (c *ClientConfig) Validate() error {
	if c.BaseURLTemplate == "" {
		c.BaseURLTemplate = DefaultBaseURLTemplate
	}
	if strings.Count(c.BaseURLTemplate, "%s") != 1 {
		return ErrClientConfigMissingBaseURL
	}
	if strings.TrimSpace(c.APIVersion) == "" {
		return ErrClientConfigMissingVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.PageSize <= 0 || c.PageSize > maxPageSize {
		c.PageSize = maxPageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 40
	}
	return nil
}

// endpoint builds the versioned Admin API URL for a shop and resource path
func (c *ClientConfig) endpoint(shopDomain, resource string) string {
	base := fmt.Sprintf(c.BaseURLTemplate, strings.TrimSpace(shopDomain))
	return strings.TrimRight(base, "/") + "/" + c.APIVersion + "/" + strings.TrimLeft(resource, "/")
}
