package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// SaleDateLayout is the calendar-day format of SalesLedgerEntry.SaleDate
	SaleDateLayout = "2006-01-02"
	// CancellationSuffix marks the order id of a reversal entry
	CancellationSuffix = "-cancelled"
	// LedgerSourcePlatform tags rows derived from platform orders
	LedgerSourcePlatform = "commerce_platform"
	// LedgerUpsertChunkSize bounds rows per insert statement
	LedgerUpsertChunkSize = 100
)

// SalesLedgerEntry is one stored unit-of-sale row or its reversal.
// Unique per (TenantID, ExternalOrderID, ExternalLineItemID).
type SalesLedgerEntry struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	SKU                string
	SaleDate           string
	Quantity           int64
	Revenue            decimal.Decimal
	Source             string
	ExternalOrderID    string
	ExternalLineItemID string
	Metadata           map[string]any
	CreatedAt          time.Time
}

// NaturalKey returns the dedupe key of the entry within a tenant.
func (e SalesLedgerEntry) NaturalKey() string {
	return e.TenantID.String() + "|" + e.ExternalOrderID + "|" + e.ExternalLineItemID
}

// IsReversal reports whether the entry compensates a cancelled sale.
func (e SalesLedgerEntry) IsReversal() bool {
	return IsReversalOrderID(e.ExternalOrderID)
}

// LedgerCandidate is a ledger row before validation. Quantity is a float so
// that non-finite or fractional values from the wire can be detected.
type LedgerCandidate struct {
	TenantID           uuid.UUID       `validate:"tenant_id"`
	SKU                string          `validate:"required"`
	SaleDate           string          `validate:"required,datetime=2006-01-02"`
	Quantity           float64         `validate:"finite,whole"`
	Revenue            decimal.Decimal `validate:"-"`
	Source             string          `validate:"required"`
	ExternalOrderID    string          `validate:"required"`
	ExternalLineItemID string          `validate:"required"`
	Metadata           map[string]any  `validate:"-"`
}

// Reverse returns the compensating candidate for a cancelled sale: quantity
// and revenue negated, order id suffixed, booked on the cancellation day.
func (c LedgerCandidate) Reverse(cancelledAt time.Time, saleDate string) LedgerCandidate {
	metadata := make(map[string]any, len(c.Metadata)+2)
	for k, v := range c.Metadata {
		metadata[k] = v
	}
	metadata["reversal_of"] = c.ExternalOrderID
	metadata["cancelled_at"] = cancelledAt.UTC().Format(time.RFC3339)

	r := c
	r.ExternalOrderID = ReversalOrderID(c.ExternalOrderID)
	r.SaleDate = saleDate
	r.Quantity = -c.Quantity
	r.Revenue = c.Revenue.Neg()
	r.Metadata = metadata
	return r
}

// Entry converts a validated candidate into a storable entry.
func (c LedgerCandidate) Entry() SalesLedgerEntry {
	return SalesLedgerEntry{
		TenantID:           c.TenantID,
		SKU:                c.SKU,
		SaleDate:           c.SaleDate,
		Quantity:           int64(c.Quantity),
		Revenue:            c.Revenue,
		Source:             c.Source,
		ExternalOrderID:    c.ExternalOrderID,
		ExternalLineItemID: c.ExternalLineItemID,
		Metadata:           c.Metadata,
	}
}

// SaleDate converts a UTC instant into the tenant-local calendar day.
func SaleDate(at time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return at.In(loc).Format(SaleDateLayout)
}

// ReversalOrderID returns the order id under which reversals are stored.
func ReversalOrderID(orderID string) string {
	return orderID + CancellationSuffix
}

// IsReversalOrderID reports whether orderID names reversal rows.
func IsReversalOrderID(orderID string) bool {
	n := len(CancellationSuffix)
	return len(orderID) > n && orderID[len(orderID)-n:] == CancellationSuffix
}

// UpsertResult summarises an idempotent ledger write.
type UpsertResult struct {
	Inserted          int
	DuplicatesSkipped int
}

// Add accumulates other into r.
func (r *UpsertResult) Add(other UpsertResult) {
	r.Inserted += other.Inserted
	r.DuplicatesSkipped += other.DuplicatesSkipped
}

// Total is the number of rows offered to the store.
func (r UpsertResult) Total() int {
	return r.Inserted + r.DuplicatesSkipped
}

// SalesLedgerRepository is the idempotent store of ledger rows.
type SalesLedgerRepository interface {
	// InsertIgnoreDuplicates writes entries in chunks, ignoring natural-key conflicts
	InsertIgnoreDuplicates(ctx context.Context, entries []SalesLedgerEntry) (UpsertResult, error)
	// ReplaceOrderEntries deletes every row of orderID and inserts entries in one transaction
	ReplaceOrderEntries(ctx context.Context, tenantID uuid.UUID, orderID string, entries []SalesLedgerEntry) (deleted int64, result UpsertResult, err error)
	FindByOrder(ctx context.Context, tenantID uuid.UUID, orderID string) ([]SalesLedgerEntry, error)
}
