package integration

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/integration"
)

// MirrorResult summarises a location sync.
type MirrorResult struct {
	Upserted    int
	Deactivated int
	// AuthoritativeActive is false when the tenant's authoritative location
	// is missing on the platform or inactive
	AuthoritativeActive bool
}

// WarehouseMirrorService keeps WarehouseMapping rows aligned with the
// platform's locations.
type WarehouseMirrorService struct {
	repo   integration.WarehouseMappingRepository
	source integration.LocationSource
	logger *zap.Logger
}

// NewWarehouseMirrorService creates a WarehouseMirrorService
func NewWarehouseMirrorService(repo integration.WarehouseMappingRepository, source integration.LocationSource, logger *zap.Logger) *WarehouseMirrorService {
	return &WarehouseMirrorService{repo: repo, source: source, logger: logger}
}

// SyncLocations pulls every platform location, upserts the mirrors and
// deactivates mirrors of locations the platform no longer reports.
func (s *WarehouseMirrorService) SyncLocations(ctx context.Context, cfg integration.TenantSyncConfig) (MirrorResult, error) {
	ctx, span := tracer.Start(ctx, "WarehouseMirror.SyncLocations")
	defer span.End()

	var result MirrorResult
	if err := cfg.Validate(); err != nil {
		return result, err
	}

	locations, err := s.source.ListLocations(ctx, cfg)
	if err != nil {
		return result, err
	}

	seen := make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		if err := s.upsertLocation(ctx, cfg, loc); err != nil {
			return result, err
		}
		seen[loc.ID] = struct{}{}
		result.Upserted++
		if loc.ID == cfg.AuthoritativeLocationID && loc.Active {
			result.AuthoritativeActive = true
		}
	}

	existing, err := s.repo.ListByTenant(ctx, cfg.TenantID)
	if err != nil {
		return result, integration.NewTransientStoreError("list warehouse mappings", err)
	}
	for _, w := range existing {
		if _, ok := seen[w.ExternalLocationID]; ok || !w.Active {
			continue
		}
		if err := s.repo.Deactivate(ctx, cfg.TenantID, w.ExternalLocationID); err != nil {
			return result, integration.NewTransientStoreError("deactivate warehouse mapping", err)
		}
		result.Deactivated++
	}

	if !result.AuthoritativeActive {
		s.logger.Warn("Authoritative location is not an active platform location",
			zap.String("tenant_id", cfg.TenantID.String()),
			zap.String("authoritative_location_id", cfg.AuthoritativeLocationID),
		)
	}
	s.logger.Info("Platform locations mirrored",
		zap.String("tenant_id", cfg.TenantID.String()),
		zap.Int("upserted", result.Upserted),
		zap.Int("deactivated", result.Deactivated),
	)
	return result, nil
}

// ApplyLocationEvent mirrors a single location change.
func (s *WarehouseMirrorService) ApplyLocationEvent(ctx context.Context, cfg integration.TenantSyncConfig, ev integration.LocationEvent) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if ev.Deleted {
		err := s.repo.Deactivate(ctx, cfg.TenantID, ev.Location.ID)
		if err != nil && !errors.Is(err, integration.ErrWarehouseMappingNotFound) {
			return integration.NewTransientStoreError("deactivate warehouse mapping", err)
		}
	} else if err := s.upsertLocation(ctx, cfg, ev.Location); err != nil {
		return err
	}

	if ev.Location.ID == cfg.AuthoritativeLocationID && (ev.Deleted || !ev.Location.Active) {
		s.logger.Warn("Authoritative location deactivated on platform",
			zap.String("tenant_id", cfg.TenantID.String()),
			zap.String("location_id", ev.Location.ID),
		)
	}
	return nil
}

// ListWarehouses returns the mirrored locations of a tenant.
func (s *WarehouseMirrorService) ListWarehouses(ctx context.Context, cfg integration.TenantSyncConfig) ([]integration.WarehouseMapping, error) {
	return s.repo.ListByTenant(ctx, cfg.TenantID)
}

func (s *WarehouseMirrorService) upsertLocation(ctx context.Context, cfg integration.TenantSyncConfig, loc integration.PlatformLocation) error {
	existing, err := s.repo.FindByExternalLocation(ctx, cfg.TenantID, loc.ID)
	switch {
	case err == nil:
		existing.Apply(loc)
		if err := s.repo.Upsert(ctx, existing); err != nil {
			return integration.NewTransientStoreError("update warehouse mapping", err)
		}
		return nil
	case errors.Is(err, integration.ErrWarehouseMappingNotFound):
		w, err := integration.NewWarehouseMapping(cfg.TenantID, loc)
		if err != nil {
			return err
		}
		if err := s.repo.Upsert(ctx, w); err != nil {
			return integration.NewTransientStoreError("create warehouse mapping", err)
		}
		return nil
	default:
		return integration.NewTransientStoreError("find warehouse mapping", err)
	}
}
