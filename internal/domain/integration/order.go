package integration

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderEventKind identifies which order lifecycle path an event takes.
type OrderEventKind string

const (
	OrderEventCreated   OrderEventKind = "created"
	OrderEventUpdated   OrderEventKind = "updated"
	OrderEventCancelled OrderEventKind = "cancelled"
	// OrderEventReconciled is a re-derivation from the reconciliation sweep
	OrderEventReconciled OrderEventKind = "reconciled"
)

// IsValid checks if the kind is known
func (k OrderEventKind) IsValid() bool {
	switch k {
	case OrderEventCreated, OrderEventUpdated, OrderEventCancelled, OrderEventReconciled:
		return true
	}
	return false
}

// OrderEvent is a platform order as delivered by a webhook or the orders API.
type OrderEvent struct {
	TenantID          uuid.UUID
	OrderID           string
	OrderName         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CancelledAt       *time.Time
	FinancialStatus   string
	FulfillmentStatus string
	Currency          string
	LineItems         []LineItem
}

// IsCancelled reports whether the order carries a cancellation timestamp.
func (o OrderEvent) IsCancelled() bool {
	return o.CancelledAt != nil && !o.CancelledAt.IsZero()
}

// LineItem is one order line. Quantity is kept as delivered so that
// malformed values reach validation instead of being silently truncated.
type LineItem struct {
	LineItemID string
	VariantID  string
	SKU        string
	Title      string
	Quantity   float64
	UnitPrice  decimal.Decimal
}

// IsCustom reports a line with neither variant nor SKU, such as a tip or
// a manual charge. Such lines cannot be mapped or tracked.
func (l LineItem) IsCustom() bool {
	return strings.TrimSpace(l.VariantID) == "" && strings.TrimSpace(l.SKU) == ""
}

// Revenue returns UnitPrice × Quantity, or zero when the quantity is not finite.
func (l LineItem) Revenue() decimal.Decimal {
	if math.IsNaN(l.Quantity) || math.IsInf(l.Quantity, 0) {
		return decimal.Zero
	}
	return l.UnitPrice.Mul(decimal.NewFromFloat(l.Quantity))
}

// ResolvedLine pairs a line item with the outcome of mapping resolution.
type ResolvedLine struct {
	Item        LineItem
	InternalSKU string
	Mapped      bool
}

// OrderDerivation is the pure result of expanding an order.
type OrderDerivation struct {
	Sales     []LedgerCandidate
	Reversals []LedgerCandidate
	Unmapped  []ResolvedLine
	Skipped   int
}

// All returns sales followed by reversals.
func (d OrderDerivation) All() []LedgerCandidate {
	out := make([]LedgerCandidate, 0, len(d.Sales)+len(d.Reversals))
	out = append(out, d.Sales...)
	return append(out, d.Reversals...)
}

// DeriveOrder expands an order into ledger candidates. Mapped lines produce
// a sale candidate; a cancelled order additionally produces the negated
// reversal of every sale. Unmapped lines are returned for tracking and do
// not stop the others. An order without a creation time has no sale day, so
// its candidates carry an empty SaleDate and fail validation.
func DeriveOrder(order OrderEvent, lines []ResolvedLine, loc *time.Location) OrderDerivation {
	if loc == nil {
		loc = time.UTC
	}
	var d OrderDerivation
	saleDate := ""
	if !order.CreatedAt.IsZero() {
		saleDate = SaleDate(order.CreatedAt, loc)
	}

	for _, line := range lines {
		if line.Item.IsCustom() {
			d.Skipped++
			continue
		}
		if !line.Mapped {
			d.Unmapped = append(d.Unmapped, line)
			continue
		}
		d.Sales = append(d.Sales, newSaleCandidate(order, line, saleDate))
	}

	if order.IsCancelled() {
		reversalDate := ""
		if saleDate != "" {
			reversalDate = SaleDate(*order.CancelledAt, loc)
		}
		for _, sale := range d.Sales {
			d.Reversals = append(d.Reversals, sale.Reverse(*order.CancelledAt, reversalDate))
		}
	}
	return d
}

func newSaleCandidate(order OrderEvent, line ResolvedLine, saleDate string) LedgerCandidate {
	metadata := map[string]any{
		"variant_id":         line.Item.VariantID,
		"external_sku":       line.Item.SKU,
		"title":              line.Item.Title,
		"unit_price":         line.Item.UnitPrice.String(),
		"currency":           order.Currency,
		"financial_status":   order.FinancialStatus,
		"fulfillment_status": order.FulfillmentStatus,
		"order_created_at":   order.CreatedAt.UTC().Format(time.RFC3339),
	}
	if order.OrderName != "" {
		metadata["order_name"] = order.OrderName
	}
	return LedgerCandidate{
		TenantID:           order.TenantID,
		SKU:                strings.TrimSpace(line.InternalSKU),
		SaleDate:           saleDate,
		Quantity:           line.Item.Quantity,
		Revenue:            line.Item.Revenue(),
		Source:             LedgerSourcePlatform,
		ExternalOrderID:    order.OrderID,
		ExternalLineItemID: line.Item.LineItemID,
		Metadata:           metadata,
	}
}
