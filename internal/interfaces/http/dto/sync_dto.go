package dto

import (
	"time"

	"github.com/google/uuid"

	app "github.com/erp/stocksync/internal/application/integration"
	"github.com/erp/stocksync/internal/domain/integration"
)

// StoreStockChangeRequest reports a stock change made in the internal store
type StoreStockChangeRequest struct {
	SKU      string `json:"sku" binding:"required,max=100"`
	Quantity *int64 `json:"quantity" binding:"required,min=0"`
}

// ReconcileRequest optionally overrides the reconciliation window
type ReconcileRequest struct {
	// Since defaults to now minus the configured window
	Since *time.Time `json:"since"`
}

// UnmappedListRequest holds query parameters for the unmapped listing
type UnmappedListRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// StockDecisionResponse describes what the inventory sync decided
type StockDecisionResponse struct {
	SKU       string `json:"sku"`
	Applied   bool   `json:"applied"`
	Action    string `json:"action"`
	Reason    string `json:"reason"`
	Direction string `json:"direction"`
	Candidate int64  `json:"candidate"`
	Previous  *int64 `json:"previous,omitempty"`
	InWindow  bool   `json:"in_window"`
}

// NewStockDecisionResponse converts a sync outcome
func NewStockDecisionResponse(o app.StockSyncOutcome) StockDecisionResponse {
	return StockDecisionResponse{
		SKU:       o.SKU,
		Applied:   o.Applied,
		Action:    string(o.Decision.Action),
		Reason:    string(o.Decision.Reason),
		Direction: string(o.Decision.Direction),
		Candidate: o.Decision.Candidate,
		Previous:  o.Decision.Previous,
		InWindow:  o.Decision.InWindow,
	}
}

// ReconciliationResponse summarises one tenant's reconciliation
type ReconciliationResponse struct {
	TenantID          uuid.UUID `json:"tenant_id"`
	Orders            int       `json:"orders"`
	Failed            int       `json:"failed"`
	Inserted          int       `json:"inserted"`
	DuplicatesSkipped int       `json:"duplicates_skipped"`
	Rejected          int       `json:"rejected"`
	Error             string    `json:"error,omitempty"`
}

// NewReconciliationResponse converts a tenant reconciliation
func NewReconciliationResponse(r app.TenantReconciliation) ReconciliationResponse {
	resp := ReconciliationResponse{
		TenantID:          r.TenantID,
		Orders:            r.Orders,
		Failed:            r.Failed,
		Inserted:          r.Result.Inserted,
		DuplicatesSkipped: r.Result.DuplicatesSkipped,
		Rejected:          r.Rejected,
	}
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	return resp
}

// LocationSyncResponse summarises a warehouse mirror run
type LocationSyncResponse struct {
	Upserted            int  `json:"upserted"`
	Deactivated         int  `json:"deactivated"`
	AuthoritativeActive bool `json:"authoritative_active"`
}

// UnmappedProductResponse is one unmapped platform variant
type UnmappedProductResponse struct {
	ExternalVariantID string    `json:"external_variant_id"`
	ExternalSKU       string    `json:"external_sku"`
	Title             string    `json:"title"`
	FirstSeenAt       time.Time `json:"first_seen_at"`
	LastSeenAt        time.Time `json:"last_seen_at"`
	SeenCount         int64     `json:"seen_count"`
}

// NewUnmappedProductResponses converts unmapped products
func NewUnmappedProductResponses(items []integration.UnmappedProduct) []UnmappedProductResponse {
	out := make([]UnmappedProductResponse, 0, len(items))
	for _, p := range items {
		out = append(out, UnmappedProductResponse{
			ExternalVariantID: p.ExternalVariantID,
			ExternalSKU:       p.ExternalSKU,
			Title:             p.Title,
			FirstSeenAt:       p.FirstSeenAt,
			LastSeenAt:        p.LastSeenAt,
			SeenCount:         p.SeenCount,
		})
	}
	return out
}

// Webhook acknowledgement statuses
const (
	WebhookStatusAccepted = "accepted"
	// WebhookStatusSkipped means the tenant cannot sync; nothing was applied
	WebhookStatusSkipped = "skipped"
)

// WebhookAck is returned for acknowledged webhook deliveries
type WebhookAck struct {
	Topic      string `json:"topic"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Status     string `json:"status"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Uptime  string            `json:"uptime"`
	Version string            `json:"version"`
}

// SweepResponse summarises a full reconciliation sweep
type SweepResponse struct {
	StartedAt     time.Time                `json:"started_at"`
	FinishedAt    time.Time                `json:"finished_at"`
	Since         time.Time                `json:"since"`
	FailedTenants int                      `json:"failed_tenants"`
	Tenants       []ReconciliationResponse `json:"tenants"`
}
