package integration

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/integration"
)

// MatchKind says how a mapping was found.
type MatchKind string

const (
	MatchByVariant       MatchKind = "variant"
	MatchBySKU           MatchKind = "sku"
	MatchByInventoryItem MatchKind = "inventory_item"
)

// Resolution is the outcome of a mapping lookup. A miss is a normal
// value with Mapped=false, not an error.
type Resolution struct {
	Mapping   *integration.ProductMapping
	Mapped    bool
	MatchedBy MatchKind
}

// SKU returns the internal SKU, or "" when not mapped.
func (r Resolution) SKU() string {
	if !r.Mapped || r.Mapping == nil {
		return ""
	}
	return r.Mapping.InternalSKU
}

// DiscoveryResult summarises a product discovery pass.
type DiscoveryResult struct {
	Mapped   int
	Unmapped int
	Removed  int
}

// MappingRegistry resolves platform identifiers onto internal SKUs and owns
// the per-mapping sync stamp.
type MappingRegistry struct {
	mappings integration.ProductMappingRepository
	unmapped integration.UnmappedProductRepository
	stock    integration.StockRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewMappingRegistry creates a MappingRegistry
func NewMappingRegistry(
	mappings integration.ProductMappingRepository,
	unmapped integration.UnmappedProductRepository,
	stock integration.StockRepository,
	logger *zap.Logger,
) *MappingRegistry {
	return &MappingRegistry{
		mappings: mappings,
		unmapped: unmapped,
		stock:    stock,
		logger:   logger,
		now:      time.Now,
	}
}

// Resolve looks a line item up by variant id, then by SKU.
func (r *MappingRegistry) Resolve(ctx context.Context, tenantID uuid.UUID, variantID, sku string) (Resolution, error) {
	variantID = strings.TrimSpace(variantID)
	sku = strings.TrimSpace(sku)

	if variantID != "" {
		m, err := r.mappings.FindByVariant(ctx, tenantID, variantID)
		if err == nil {
			return Resolution{Mapping: m, Mapped: true, MatchedBy: MatchByVariant}, nil
		}
		if !errors.Is(err, integration.ErrMappingNotFound) {
			return Resolution{}, integration.NewTransientStoreError("find mapping by variant", err)
		}
	}

	if sku != "" {
		m, err := r.mappings.FindBySKU(ctx, tenantID, sku)
		if err == nil {
			return Resolution{Mapping: m, Mapped: true, MatchedBy: MatchBySKU}, nil
		}
		if !errors.Is(err, integration.ErrMappingNotFound) {
			return Resolution{}, integration.NewTransientStoreError("find mapping by sku", err)
		}
	}

	return Resolution{}, nil
}

// ResolveInventoryItem finds the mapping addressed by a stock event. An
// empty id is never mapped: mappings discovered without an inventory item
// store it as an empty string.
func (r *MappingRegistry) ResolveInventoryItem(ctx context.Context, tenantID uuid.UUID, inventoryItemID string) (Resolution, error) {
	inventoryItemID = strings.TrimSpace(inventoryItemID)
	if inventoryItemID == "" {
		return Resolution{}, nil
	}
	m, err := r.mappings.FindByInventoryItem(ctx, tenantID, inventoryItemID)
	if err != nil {
		if errors.Is(err, integration.ErrMappingNotFound) {
			return Resolution{}, nil
		}
		return Resolution{}, integration.NewTransientStoreError("find mapping by inventory item", err)
	}
	return Resolution{Mapping: m, Mapped: true, MatchedBy: MatchByInventoryItem}, nil
}

// Stamp records a decided stock write on the mapping.
func (r *MappingRegistry) Stamp(ctx context.Context, m *integration.ProductMapping, direction integration.SyncDirection, value int64) error {
	m.Stamp(direction, r.now(), value)
	if err := r.mappings.SaveSyncMetadata(ctx, m.TenantID, m.ExternalVariantID, m.Sync); err != nil {
		return integration.NewTransientStoreError("stamp sync metadata", err)
	}
	return nil
}

// TrackUnmapped upserts an unmapped sighting of a line item.
func (r *MappingRegistry) TrackUnmapped(ctx context.Context, tenantID uuid.UUID, item integration.LineItem) error {
	p := integration.NewUnmappedProduct(tenantID, item.VariantID, item.SKU, item.Title, r.now())
	if err := r.unmapped.Upsert(ctx, p); err != nil {
		return integration.NewTransientStoreError("upsert unmapped product", err)
	}
	return nil
}

// ListUnmapped returns the most recently seen unmapped variants.
func (r *MappingRegistry) ListUnmapped(ctx context.Context, tenantID uuid.UUID, limit int) ([]integration.UnmappedProduct, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return r.unmapped.ListByTenant(ctx, tenantID, limit)
}

// Discover creates or refreshes mappings for the variants of a platform
// product whose SKU exists in the internal store. Variants with no matching
// store product are tracked as unmapped. A deleted product drops its mappings.
func (r *MappingRegistry) Discover(ctx context.Context, ev integration.ProductEvent) (DiscoveryResult, error) {
	var result DiscoveryResult

	if ev.Deleted {
		for _, v := range ev.Variants {
			if err := r.mappings.Delete(ctx, ev.TenantID, v.VariantID); err != nil {
				return result, integration.NewTransientStoreError("delete mapping", err)
			}
			result.Removed++
		}
		r.logger.Info("Product removed from platform, mappings dropped",
			zap.String("tenant_id", ev.TenantID.String()),
			zap.String("product_id", ev.ProductID),
			zap.Int("variants", result.Removed),
		)
		return result, nil
	}

	for _, v := range ev.Variants {
		sku := strings.TrimSpace(v.SKU)
		exists := false
		if sku != "" {
			var err error
			exists, err = r.stock.ExistsSKU(ctx, ev.TenantID, sku)
			if err != nil {
				return result, integration.NewTransientStoreError("check store sku", err)
			}
		}

		if !exists {
			title := v.Title
			if title == "" {
				title = ev.Title
			}
			item := integration.LineItem{VariantID: v.VariantID, SKU: sku, Title: title}
			if item.IsCustom() {
				continue
			}
			if err := r.TrackUnmapped(ctx, ev.TenantID, item); err != nil {
				return result, err
			}
			result.Unmapped++
			continue
		}

		if err := r.upsertDiscovered(ctx, ev.TenantID, v, sku); err != nil {
			return result, err
		}
		result.Mapped++
	}

	r.logger.Debug("Product discovery processed",
		zap.String("tenant_id", ev.TenantID.String()),
		zap.String("product_id", ev.ProductID),
		zap.Int("mapped", result.Mapped),
		zap.Int("unmapped", result.Unmapped),
	)
	return result, nil
}

func (r *MappingRegistry) upsertDiscovered(ctx context.Context, tenantID uuid.UUID, v integration.ProductVariant, sku string) error {
	existing, err := r.mappings.FindByVariant(ctx, tenantID, v.VariantID)
	switch {
	case err == nil:
		existing.Refresh(v.InventoryItemID, sku)
		if err := r.mappings.Upsert(ctx, existing); err != nil {
			return integration.NewTransientStoreError("refresh mapping", err)
		}
	case errors.Is(err, integration.ErrMappingNotFound):
		m, err := integration.NewProductMapping(tenantID, v.VariantID, v.InventoryItemID, sku)
		if err != nil {
			return err
		}
		if err := r.mappings.Upsert(ctx, m); err != nil {
			return integration.NewTransientStoreError("create mapping", err)
		}
	default:
		return integration.NewTransientStoreError("find mapping by variant", err)
	}

	if err := r.unmapped.Delete(ctx, tenantID, v.VariantID); err != nil {
		r.logger.Warn("Failed to clear unmapped record after discovery",
			zap.String("tenant_id", tenantID.String()),
			zap.String("variant_id", v.VariantID),
			zap.Error(err),
		)
	}
	return nil
}
