package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultEchoWindow is how long after our own write an identical value
// coming back the other way is treated as an echo.
const DefaultEchoWindow = 30 * time.Second

// StockAction is the outcome of a stock sync decision.
type StockAction string

const (
	StockActionApply StockAction = "apply"
	StockActionSkip  StockAction = "skip"
)

// StockDecisionReason explains a StockAction.
type StockDecisionReason string

const (
	// ReasonLocationFiltered: event is for a non-authoritative location
	ReasonLocationFiltered StockDecisionReason = "location_filtered"
	// ReasonLocationInactive: the mirrored authoritative location is deactivated
	ReasonLocationInactive StockDecisionReason = "location_inactive"
	// ReasonNotMapped: no mapping for the item
	ReasonNotMapped StockDecisionReason = "not_mapped"
	// ReasonEchoSuppressed: same value we just wrote the other way
	ReasonEchoSuppressed StockDecisionReason = "echo_suppressed"
	// ReasonNoOp: target already holds the value
	ReasonNoOp StockDecisionReason = "no_op"
	// ReasonEchoOverride: inside the echo window but the value differs
	ReasonEchoOverride StockDecisionReason = "echo_window_value_changed"
	// ReasonChanged: ordinary change
	ReasonChanged StockDecisionReason = "changed"
)

// StockChangeEvent is an inbound platform inventory level update.
type StockChangeEvent struct {
	TenantID                uuid.UUID
	ExternalInventoryItemID string
	ExternalLocationID      string
	NewAvailableQuantity    int64
	OccurredAt              time.Time
}

// StockWriteCandidate is the input of DecideStockWrite.
type StockWriteCandidate struct {
	// Direction the write would travel if applied
	Direction SyncDirection
	Quantity  int64
	// Current is the value already held by the target side, nil when unknown
	Current  *int64
	Metadata SyncMetadata
	Now      time.Time
	Window   time.Duration
}

// StockDecision carries the verdict and everything needed to audit it.
type StockDecision struct {
	Action        StockAction
	Reason        StockDecisionReason
	Direction     SyncDirection
	LastDirection SyncDirection
	// Elapsed since the last stamp; valid only when HasElapsed
	Elapsed    time.Duration
	HasElapsed bool
	InWindow   bool
	Previous   *int64
	LastSynced *int64
	Candidate  int64
}

// ShouldApply reports whether the write should happen.
func (d StockDecision) ShouldApply() bool {
	return d.Action == StockActionApply
}

// FilterLocation reports whether a stock event for locationID should be processed.
func FilterLocation(cfg TenantSyncConfig, locationID string) bool {
	return cfg.IsAuthoritativeLocation(locationID)
}

// CheckLocation combines FilterLocation with the warehouse mirror's view of
// the authoritative location. mirrored is nil when the mirror has no row for
// it yet, in which case the tenant config alone decides.
func CheckLocation(cfg TenantSyncConfig, locationID string, mirrored *WarehouseMapping) (bool, StockDecisionReason) {
	if !FilterLocation(cfg, locationID) {
		return false, ReasonLocationFiltered
	}
	if mirrored != nil && !mirrored.Active {
		return false, ReasonLocationInactive
	}
	return true, ""
}

// DecideStockWrite compares a candidate write with the mapping's last-write
// stamp and the target's current value.
//
// An echo is a value arriving in direction D while the stamp says we wrote
// the opposite way within the window, carrying exactly the value we wrote.
// A different value inside the window is a real concurrent change and is
// applied. A stamp from the future (clock skew) counts as inside the window.
func DecideStockWrite(c StockWriteCandidate) StockDecision {
	window := c.Window
	if window <= 0 {
		window = DefaultEchoWindow
	}

	d := StockDecision{
		Direction:     c.Direction,
		LastDirection: c.Metadata.LastSyncDirection,
		Previous:      c.Current,
		LastSynced:    c.Metadata.LastSyncedStockValue,
		Candidate:     c.Quantity,
	}

	if c.Metadata.LastSyncedAt != nil {
		d.Elapsed = c.Now.Sub(*c.Metadata.LastSyncedAt)
		d.HasElapsed = true
	}

	if d.HasElapsed && c.Metadata.LastSyncDirection == c.Direction.Opposite() {
		d.InWindow = d.Elapsed < window
		if d.InWindow && c.Metadata.LastSyncedStockValue != nil && *c.Metadata.LastSyncedStockValue == c.Quantity {
			d.Action = StockActionSkip
			d.Reason = ReasonEchoSuppressed
			return d
		}
	}

	if c.Current != nil && *c.Current == c.Quantity {
		d.Action = StockActionSkip
		d.Reason = ReasonNoOp
		return d
	}

	d.Action = StockActionApply
	if d.InWindow {
		d.Reason = ReasonEchoOverride
	} else {
		d.Reason = ReasonChanged
	}
	return d
}

// StockRepository reads and writes the internal store's product stock.
type StockRepository interface {
	// GetStock returns ErrProductNotFound when the SKU does not exist
	GetStock(ctx context.Context, tenantID uuid.UUID, sku string) (int64, error)
	SetStock(ctx context.Context, tenantID uuid.UUID, sku string, quantity int64) error
	ExistsSKU(ctx context.Context, tenantID uuid.UUID, sku string) (bool, error)
}
