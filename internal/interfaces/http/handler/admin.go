package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	app "github.com/erp/stocksync/internal/application/integration"
	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/infrastructure/scheduler"
	"github.com/erp/stocksync/internal/interfaces/http/dto"
)

const defaultUnmappedLimit = 100

// TenantLoader returns a tenant's validated sync config
type TenantLoader interface {
	LoadTenant(ctx context.Context, tenantID uuid.UUID) (*integration.TenantSyncConfig, error)
}

// StockPusher pushes store-side stock changes to the platform
type StockPusher interface {
	PushStoreStockChange(ctx context.Context, cfg integration.TenantSyncConfig, sku string, quantity int64) (app.StockSyncOutcome, error)
}

// TenantReconciler re-derives a tenant's ledger from the platform
type TenantReconciler interface {
	ReconcileTenant(ctx context.Context, cfg integration.TenantSyncConfig, since time.Time) app.TenantReconciliation
	ReconcileTenantWindow(ctx context.Context, cfg integration.TenantSyncConfig) app.TenantReconciliation
}

// LocationSyncer mirrors platform locations into warehouse mappings
type LocationSyncer interface {
	SyncLocations(ctx context.Context, cfg integration.TenantSyncConfig) (app.MirrorResult, error)
}

// UnmappedLister lists variants seen on orders without a mapping
type UnmappedLister interface {
	ListUnmapped(ctx context.Context, tenantID uuid.UUID, limit int) ([]integration.UnmappedProduct, error)
}

// SweepTrigger runs a full reconciliation sweep on demand
type SweepTrigger interface {
	TriggerNow(ctx context.Context) (app.SweepReport, error)
}

// AdminHandlerConfig wires an AdminHandler
type AdminHandlerConfig struct {
	Tenants    TenantLoader
	Inventory  StockPusher
	Reconciler TenantReconciler
	Locations  LocationSyncer
	Unmapped   UnmappedLister
	// Sweeps is optional; without it the sweep endpoint is not registered
	Sweeps SweepTrigger
}

// AdminHandler serves the operator API
type AdminHandler struct {
	BaseHandler
	cfg AdminHandlerConfig
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(cfg AdminHandlerConfig) *AdminHandler {
	return &AdminHandler{cfg: cfg}
}

// RegisterRoutes registers the admin endpoints under rg
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	t := rg.Group("/tenants/:tenant_id")
	t.POST("/stock", h.PushStock)
	t.POST("/reconcile", h.Reconcile)
	t.POST("/locations/sync", h.SyncLocations)
	t.GET("/unmapped", h.ListUnmapped)
	if h.cfg.Sweeps != nil {
		rg.POST("/reconciliation/run", h.RunSweep)
	}
}

func (h *AdminHandler) loadTenant(c *gin.Context) (*integration.TenantSyncConfig, bool) {
	tenantID, ok := tenantParam(c)
	if !ok {
		h.BadRequest(c, "Invalid tenant ID")
		return nil, false
	}
	cfg, err := h.cfg.Tenants.LoadTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	return cfg, true
}

// PushStock handles POST /tenants/:tenant_id/stock
func (h *AdminHandler) PushStock(c *gin.Context) {
	var req dto.StoreStockChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())
		return
	}
	cfg, ok := h.loadTenant(c)
	if !ok {
		return
	}

	outcome, err := h.cfg.Inventory.PushStoreStockChange(c.Request.Context(), *cfg, req.SKU, *req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewStockDecisionResponse(outcome))
}

// Reconcile handles POST /tenants/:tenant_id/reconcile
func (h *AdminHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())
			return
		}
	}
	if req.Since != nil && req.Since.After(time.Now()) {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "since must not be in the future")
		return
	}
	cfg, ok := h.loadTenant(c)
	if !ok {
		return
	}

	var out app.TenantReconciliation
	if req.Since != nil {
		out = h.cfg.Reconciler.ReconcileTenant(c.Request.Context(), *cfg, *req.Since)
	} else {
		out = h.cfg.Reconciler.ReconcileTenantWindow(c.Request.Context(), *cfg)
	}
	if out.Err != nil {
		h.HandleError(c, out.Err)
		return
	}
	h.Success(c, dto.NewReconciliationResponse(out))
}

// SyncLocations handles POST /tenants/:tenant_id/locations/sync
func (h *AdminHandler) SyncLocations(c *gin.Context) {
	cfg, ok := h.loadTenant(c)
	if !ok {
		return
	}
	res, err := h.cfg.Locations.SyncLocations(c.Request.Context(), *cfg)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.LocationSyncResponse{
		Upserted:            res.Upserted,
		Deactivated:         res.Deactivated,
		AuthoritativeActive: res.AuthoritativeActive,
	})
}

// ListUnmapped handles GET /tenants/:tenant_id/unmapped. It does not require
// the tenant to be sync-enabled.
func (h *AdminHandler) ListUnmapped(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	var req dto.UnmappedListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultUnmappedLimit
	}

	items, err := h.cfg.Unmapped.ListUnmapped(c.Request.Context(), tenantID, req.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewUnmappedProductResponses(items))
}

// RunSweep handles POST /reconciliation/run
func (h *AdminHandler) RunSweep(c *gin.Context) {
	report, err := h.cfg.Sweeps.TriggerNow(c.Request.Context())
	switch {
	case errors.Is(err, scheduler.ErrSweepInProgress), errors.Is(err, scheduler.ErrLockNotObtained):
		h.Error(c, http.StatusConflict, dto.ErrCodeConflict, err.Error())
		return
	case err != nil:
		h.HandleError(c, err)
		return
	}

	tenants := make([]dto.ReconciliationResponse, 0, len(report.Tenants))
	for _, t := range report.Tenants {
		tenants = append(tenants, dto.NewReconciliationResponse(t))
	}
	h.Success(c, dto.SweepResponse{
		StartedAt:     report.StartedAt,
		FinishedAt:    report.FinishedAt,
		Since:         report.Since,
		FailedTenants: report.FailedTenants(),
		Tenants:       tenants,
	})
}
