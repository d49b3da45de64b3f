package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/erp/stocksync/internal/application/integration"
	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/infrastructure/scheduler"
	"github.com/erp/stocksync/internal/interfaces/http/dto"
)

type fakeAdminDeps struct {
	tenants map[uuid.UUID]integration.TenantSyncConfig

	pushedSKU      string
	pushedQuantity int64
	pushErr        error

	reconcileSince *time.Time
	windowCalls    int
	reconcileErr   error

	mirror    app.MirrorResult
	mirrorErr error

	unmapped      []integration.UnmappedProduct
	unmappedLimit int

	sweepReport app.SweepReport
	sweepErr    error
}

func (f *fakeAdminDeps) LoadTenant(_ context.Context, tenantID uuid.UUID) (*integration.TenantSyncConfig, error) {
	cfg, ok := f.tenants[tenantID]
	if !ok {
		return nil, integration.ErrTenantNotConfigured
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (f *fakeAdminDeps) PushStoreStockChange(_ context.Context, _ integration.TenantSyncConfig, sku string, quantity int64) (app.StockSyncOutcome, error) {
	f.pushedSKU, f.pushedQuantity = sku, quantity
	if f.pushErr != nil {
		return app.StockSyncOutcome{}, f.pushErr
	}
	return app.StockSyncOutcome{
		SKU:     sku,
		Applied: true,
		Decision: integration.StockDecision{
			Action:    integration.StockActionApply,
			Reason:    integration.ReasonChanged,
			Direction: integration.SyncDirectionToPlatform,
			Candidate: quantity,
		},
	}, nil
}

func (f *fakeAdminDeps) ReconcileTenant(_ context.Context, cfg integration.TenantSyncConfig, since time.Time) app.TenantReconciliation {
	f.reconcileSince = &since
	return app.TenantReconciliation{TenantID: cfg.TenantID, Orders: 2, Result: integration.UpsertResult{Inserted: 3}, Err: f.reconcileErr}
}

func (f *fakeAdminDeps) ReconcileTenantWindow(_ context.Context, cfg integration.TenantSyncConfig) app.TenantReconciliation {
	f.windowCalls++
	return app.TenantReconciliation{TenantID: cfg.TenantID, Orders: 1, Err: f.reconcileErr}
}

func (f *fakeAdminDeps) SyncLocations(context.Context, integration.TenantSyncConfig) (app.MirrorResult, error) {
	return f.mirror, f.mirrorErr
}

func (f *fakeAdminDeps) ListUnmapped(_ context.Context, _ uuid.UUID, limit int) ([]integration.UnmappedProduct, error) {
	f.unmappedLimit = limit
	return f.unmapped, nil
}

func (f *fakeAdminDeps) TriggerNow(context.Context) (app.SweepReport, error) {
	return f.sweepReport, f.sweepErr
}

func setupAdminRouter(deps *fakeAdminDeps, withSweeps bool) *gin.Engine {
	cfg := AdminHandlerConfig{
		Tenants:    deps,
		Inventory:  deps,
		Reconciler: deps,
		Locations:  deps,
		Unmapped:   deps,
	}
	if withSweeps {
		cfg.Sweeps = deps
	}
	router := gin.New()
	NewAdminHandler(cfg).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func adminRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newAdminDeps() (*fakeAdminDeps, integration.TenantSyncConfig) {
	cfg := testTenantConfig()
	return &fakeAdminDeps{tenants: map[uuid.UUID]integration.TenantSyncConfig{cfg.TenantID: cfg}}, cfg
}

func TestAdminHandler_PushStock(t *testing.T) {
	deps, cfg := newAdminDeps()
	router := setupAdminRouter(deps, false)
	path := "/api/v1/tenants/" + cfg.TenantID.String() + "/stock"

	t.Run("success", func(t *testing.T) {
		w := adminRequest(router, http.MethodPost, path, `{"sku": "SKU-1", "quantity": 12}`)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "SKU-1", deps.pushedSKU)
		assert.Equal(t, int64(12), deps.pushedQuantity)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, true, data["applied"])
		assert.Equal(t, "to_platform", data["direction"])
	})

	t.Run("zero quantity is allowed", func(t *testing.T) {
		w := adminRequest(router, http.MethodPost, path, `{"sku": "SKU-1", "quantity": 0}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, int64(0), deps.pushedQuantity)
	})

	t.Run("validation errors", func(t *testing.T) {
		for _, body := range []string{
			`{"quantity": 3}`,
			`{"sku": "SKU-1"}`,
			`{"sku": "SKU-1", "quantity": -1}`,
			`not json`,
		} {
			w := adminRequest(router, http.MethodPost, path, body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
			assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code, body)
		}
	})

	t.Run("unknown tenant", func(t *testing.T) {
		w := adminRequest(router, http.MethodPost, "/api/v1/tenants/"+uuid.New().String()+"/stock", `{"sku": "SKU-1", "quantity": 1}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeTenantNotConfigured, decodeResponse(t, w).Error.Code)
	})

	t.Run("mapping not found", func(t *testing.T) {
		deps.pushErr = integration.ErrMappingNotFound
		defer func() { deps.pushErr = nil }()

		w := adminRequest(router, http.MethodPost, path, `{"sku": "SKU-404", "quantity": 1}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("platform unavailable", func(t *testing.T) {
		deps.pushErr = integration.ErrPlatformUnavailable
		defer func() { deps.pushErr = nil }()

		w := adminRequest(router, http.MethodPost, path, `{"sku": "SKU-1", "quantity": 1}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestAdminHandler_DisabledTenant(t *testing.T) {
	deps, cfg := newAdminDeps()
	cfg.SyncEnabled = false
	deps.tenants[cfg.TenantID] = cfg
	router := setupAdminRouter(deps, false)

	w := adminRequest(router, http.MethodPost, "/api/v1/tenants/"+cfg.TenantID.String()+"/locations/sync", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeTenantSyncDisabled, decodeResponse(t, w).Error.Code)
}

func TestAdminHandler_Reconcile(t *testing.T) {
	deps, cfg := newAdminDeps()
	router := setupAdminRouter(deps, false)
	path := "/api/v1/tenants/" + cfg.TenantID.String() + "/reconcile"

	t.Run("default window", func(t *testing.T) {
		w := adminRequest(router, http.MethodPost, path, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, 1, deps.windowCalls)
		assert.Nil(t, deps.reconcileSince)
	})

	t.Run("explicit since", func(t *testing.T) {
		w := adminRequest(router, http.MethodPost, path, `{"since": "2024-03-01T00:00:00Z"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.NotNil(t, deps.reconcileSince)
		assert.True(t, deps.reconcileSince.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, float64(3), data["inserted"])
	})

	t.Run("future since is rejected", func(t *testing.T) {
		future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
		w := adminRequest(router, http.MethodPost, path, `{"since": "`+future+`"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("reconciliation error", func(t *testing.T) {
		deps.reconcileErr = integration.ErrPlatformRateLimited
		defer func() { deps.reconcileErr = nil }()

		w := adminRequest(router, http.MethodPost, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestAdminHandler_SyncLocations(t *testing.T) {
	deps, cfg := newAdminDeps()
	deps.mirror = app.MirrorResult{Upserted: 3, Deactivated: 1, AuthoritativeActive: true}
	router := setupAdminRouter(deps, false)

	w := adminRequest(router, http.MethodPost, "/api/v1/tenants/"+cfg.TenantID.String()+"/locations/sync", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, float64(3), data["upserted"])
	assert.Equal(t, float64(1), data["deactivated"])
	assert.Equal(t, true, data["authoritative_active"])
}

func TestAdminHandler_ListUnmapped(t *testing.T) {
	deps, _ := newAdminDeps()
	seen := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	deps.unmapped = []integration.UnmappedProduct{
		{ExternalVariantID: "55", ExternalSKU: "A-1", Title: "Mug", FirstSeenAt: seen, LastSeenAt: seen, SeenCount: 4},
	}
	router := setupAdminRouter(deps, false)
	// listing works for tenants that are not configured for sync
	path := "/api/v1/tenants/" + uuid.New().String() + "/unmapped"

	w := adminRequest(router, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, defaultUnmappedLimit, deps.unmappedLimit)
	items := decodeResponse(t, w).Data.([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "55", items[0].(map[string]any)["external_variant_id"])

	w = adminRequest(router, http.MethodGet, path+"?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, deps.unmappedLimit)

	w = adminRequest(router, http.MethodGet, path+"?limit=1000", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHandler_RunSweep(t *testing.T) {
	t.Run("not registered without trigger", func(t *testing.T) {
		deps, _ := newAdminDeps()
		w := adminRequest(setupAdminRouter(deps, false), http.MethodPost, "/api/v1/reconciliation/run", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("report", func(t *testing.T) {
		deps, _ := newAdminDeps()
		failed := uuid.New()
		now := time.Now().UTC()
		deps.sweepReport = app.SweepReport{
			StartedAt:  now,
			FinishedAt: now,
			Tenants: []app.TenantReconciliation{
				{TenantID: uuid.New(), Orders: 5},
				{TenantID: failed, Err: errors.New("platform down")},
			},
		}
		w := adminRequest(setupAdminRouter(deps, true), http.MethodPost, "/api/v1/reconciliation/run", "")

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, float64(1), data["failed_tenants"])
		tenants := data["tenants"].([]any)
		require.Len(t, tenants, 2)
		second := tenants[1].(map[string]any)
		assert.Equal(t, failed.String(), second["tenant_id"])
		assert.Equal(t, "platform down", second["error"])
	})

	t.Run("sweep already running", func(t *testing.T) {
		for _, err := range []error{scheduler.ErrSweepInProgress, scheduler.ErrLockNotObtained} {
			deps, _ := newAdminDeps()
			deps.sweepErr = err
			w := adminRequest(setupAdminRouter(deps, true), http.MethodPost, "/api/v1/reconciliation/run", "")
			assert.Equal(t, http.StatusConflict, w.Code)
		}
	})
}
