package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/integration"
)

// AdminClient talks to the commerce platform Admin REST API on behalf of
// one tenant per call. Credentials come from the tenant's sync config.
type AdminClient struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *zap.Logger
}

var _ integration.Platform = (*AdminClient)(nil)

// NewAdminClient creates a new Admin API client
func NewAdminClient(config ClientConfig, logger *zap.Logger) (*AdminClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}, nil
}

// WithHTTPClient replaces the underlying HTTP client
func (c *AdminClient) WithHTTPClient(hc *http.Client) *AdminClient {
	c.httpClient = hc
	return c
}

// ListOrdersUpdatedSince returns every order updated at or after since,
// following since_id pagination until a short page or MaxPages.
func (c *AdminClient) ListOrdersUpdatedSince(ctx context.Context, cfg integration.TenantSyncConfig, since time.Time) ([]integration.OrderEvent, error) {
	var (
		orders  []integration.OrderEvent
		sinceID string
	)
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("status", "any")
		q.Set("updated_at_min", since.UTC().Format(time.RFC3339))
		q.Set("limit", strconv.Itoa(c.config.PageSize))
		q.Set("order", "id asc")
		if sinceID != "" {
			q.Set("since_id", sinceID)
		}

		body, err := c.do(ctx, cfg, http.MethodGet, "orders.json?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		var resp ordersResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: failed to parse orders: %v", integration.ErrPlatformInvalidResponse, err)
		}

		for _, o := range resp.Orders {
			ev := o.toDomain()
			ev.TenantID = cfg.TenantID
			orders = append(orders, ev)
		}
		if len(resp.Orders) < c.config.PageSize {
			return orders, nil
		}
		if page >= c.config.MaxPages {
			c.logger.Warn("Order listing stopped at page limit",
				zap.String("tenant_id", cfg.TenantID.String()),
				zap.Int("max_pages", c.config.MaxPages),
				zap.Int("orders", len(orders)),
			)
			return orders, nil
		}
		sinceID = resp.Orders[len(resp.Orders)-1].ID.String()
		if sinceID == "" {
			return nil, fmt.Errorf("%w: order without id", integration.ErrPlatformInvalidResponse)
		}
	}
}

// ListLocations returns the shop's locations
func (c *AdminClient) ListLocations(ctx context.Context, cfg integration.TenantSyncConfig) ([]integration.PlatformLocation, error) {
	body, err := c.do(ctx, cfg, http.MethodGet, "locations.json", nil)
	if err != nil {
		return nil, err
	}
	var resp locationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse locations: %v", integration.ErrPlatformInvalidResponse, err)
	}
	locations := make([]integration.PlatformLocation, 0, len(resp.Locations))
	for _, l := range resp.Locations {
		locations = append(locations, l.toDomain())
	}
	return locations, nil
}

// SetInventoryLevel sets the available quantity of an inventory item at a location
func (c *AdminClient) SetInventoryLevel(ctx context.Context, cfg integration.TenantSyncConfig, inventoryItemID, locationID string, available int64) error {
	payload, err := json.Marshal(setInventoryLevelRequest{
		LocationID:      locationID,
		InventoryItemID: inventoryItemID,
		Available:       available,
	})
	if err != nil {
		return fmt.Errorf("ecommerce: failed to encode inventory level: %w", err)
	}
	_, err = c.do(ctx, cfg, http.MethodPost, "inventory_levels/set.json", payload)
	return err
}

func (c *AdminClient) do(ctx context.Context, cfg integration.TenantSyncConfig, method, resource string, payload []byte) ([]byte, error) {
	if cfg.ShopDomain == "" {
		return nil, integration.NewConfigurationError(cfg.TenantID, ErrMissingShopDomain)
	}
	if cfg.AccessToken == "" {
		return nil, integration.NewConfigurationError(cfg.TenantID, ErrMissingAccessToken)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.config.endpoint(cfg.ShopDomain, resource), reqBody)
	if err != nil {
		return nil, fmt.Errorf("ecommerce: failed to create request: %w", err)
	}
	req.Header.Set(AccessTokenHeader, cfg.AccessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", integration.ErrPlatformUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrPlatformRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrPlatformUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// bad or revoked token: nothing succeeds until the tenant is reconfigured
		return nil, integration.NewConfigurationError(cfg.TenantID,
			fmt.Errorf("%w: HTTP %d", integration.ErrPlatformRequestFailed, resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: HTTP %d: %s", integration.ErrPlatformRequestFailed, resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
