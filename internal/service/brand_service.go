package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/orderreports/internal/domain"
	"github.com/yourorg/orderreports/internal/observability/metrics"
	"github.com/yourorg/orderreports/internal/repository"
	"github.com/yourorg/orderreports/internal/security/audit"
)

// BrandService is the only code path that changes both the brand registry
// and the per-brand databases, which is what keeps the two consistent. On
// create the database is provisioned first and the registry entry published
// last; on delete the registry entry goes first and the database second. A
// crash between the two steps leaves at worst an unreachable orphan
// directory, never a registered brand without a database.
type BrandService struct {
	registry domain.BrandRegistry
	tenants  *repository.TenantDBManager
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewBrandService creates the brand lifecycle service.
func NewBrandService(registry domain.BrandRegistry, tenants *repository.TenantDBManager, auditLog *audit.Logger, logger *slog.Logger) *BrandService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrandService{
		registry: registry,
		tenants:  tenants,
		audit:    auditLog,
		logger:   logger,
	}
}

// List returns all registered brands. Order is not meaningful; display
// layers sort as they see fit.
func (s *BrandService) List(ctx context.Context) ([]*domain.Brand, error) {
	return s.registry.List(ctx)
}

// Get returns one brand by id.
func (s *BrandService) Get(ctx context.Context, brandID string) (*domain.Brand, error) {
	return s.registry.Get(ctx, brandID)
}

// Create registers a new brand and provisions its database. When
// requestedID is empty an id is derived from the display name.
func (s *BrandService) Create(ctx context.Context, displayName, requestedID string) (*domain.Brand, error) {
	start := time.Now()

	id := requestedID
	if id == "" {
		id = domain.SlugifyBrandID(displayName)
	}
	if err := domain.ValidateBrandID(id); err != nil {
		return nil, err
	}

	brand := &domain.Brand{
		ID:          id,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}

	// Database first: if the process dies before the registry entry is
	// published, the next attempt just finds an unregistered directory.
	created, err := s.tenants.Provision(ctx, id)
	if err != nil {
		metrics.ObserveStorageOp("brands", "create", err, time.Since(start))
		return nil, err
	}

	if err := s.registry.Add(ctx, brand); err != nil {
		// Roll back our own provisioning, but never touch a directory that
		// predates this call: on a duplicate id it belongs to the existing
		// brand. The rolled-back directory is empty, so it is removed rather
		// than archived.
		if created && !errors.Is(err, domain.ErrDuplicateBrand) {
			if derr := s.tenants.Purge(ctx, id); derr != nil {
				s.logger.Error("failed to roll back provisioned brand",
					slog.String("brand_id", id),
					slog.String("error", derr.Error()),
				)
			}
		}
		metrics.ObserveStorageOp("brands", "create", err, time.Since(start))
		s.audit.LogBrandCreated(ctx, id, "failure", err.Error())
		return nil, err
	}

	metrics.ObserveStorageOp("brands", "create", nil, time.Since(start))
	s.audit.LogBrandCreated(ctx, id, "success", displayName)
	s.logger.Info("brand created",
		slog.String("brand_id", id),
		slog.String("display_name", displayName),
	)
	return brand, nil
}

// Delete unregisters a brand and then archives (or removes) its database
// directory. The registry removal commits first, so once this returns the
// brand is gone from every lookup even if the directory cleanup failed.
func (s *BrandService) Delete(ctx context.Context, brandID string) error {
	start := time.Now()

	if err := s.registry.Remove(ctx, brandID); err != nil {
		metrics.ObserveStorageOp("brands", "delete", err, time.Since(start))
		return err
	}

	err := s.tenants.Deprovision(ctx, brandID)
	metrics.ObserveStorageOp("brands", "delete", err, time.Since(start))
	if err != nil {
		s.audit.LogBrandDeleted(ctx, brandID, "failure", err.Error())
		return fmt.Errorf("brand %q unregistered but directory cleanup failed: %w", brandID, err)
	}

	s.audit.LogBrandDeleted(ctx, brandID, "success", "")
	s.logger.Info("brand deleted", slog.String("brand_id", brandID))
	return nil
}

// Rename changes a brand's display name. The id, and with it the data
// directory, never changes.
func (s *BrandService) Rename(ctx context.Context, brandID, displayName string) error {
	return s.registry.Rename(ctx, brandID, displayName)
}
