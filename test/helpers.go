package test

import (
	"context"
	"testing"

	"github.com/yourorg/orderreports/internal/infrastructure/logger"
	"github.com/yourorg/orderreports/internal/paths"
	"github.com/yourorg/orderreports/internal/repository"
	"github.com/yourorg/orderreports/internal/security/audit"
	"github.com/yourorg/orderreports/internal/service"

	"golang.org/x/crypto/bcrypt"
)

// TestEnv wires the full persistence stack into a throwaway data directory,
// the same way cmd/reports-admin does at startup.
type TestEnv struct {
	Root    string
	Users   *service.AuthService
	Brands  *service.BrandService
	Ingest  *service.IngestService
	Tenants *repository.TenantDBManager
}

func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	root := t.TempDir()
	t.Setenv(paths.EnvDataDir, root)

	resolved, err := paths.DataDir()
	if err != nil {
		t.Fatalf("failed to resolve data dir: %v", err)
	}
	if resolved != root {
		t.Fatalf("data dir override not honored: got %q, want %q", resolved, root)
	}
	return reopenEnv(t, root)
}

// reopenEnv wires a fresh stack over an existing data directory, simulating
// a process restart.
func reopenEnv(t *testing.T, root string) *TestEnv {
	t.Helper()

	if err := paths.Ensure(paths.StagingDir(root)); err != nil {
		t.Fatal(err)
	}

	log := logger.NewLogger("error")
	auditLog := audit.NewLogger(log)

	users, err := repository.NewSQLiteUserRepository(context.Background(), paths.UsersDBPath(root), log)
	if err != nil {
		t.Fatalf("failed to open user store: %v", err)
	}
	t.Cleanup(func() { users.Close() })

	registry := repository.NewFileBrandRegistry(paths.BrandsFilePath(root), log)
	tenants := repository.NewTenantDBManager(root, registry, false, log)
	t.Cleanup(func() { tenants.Close() })

	staging := repository.NewStagingArea(paths.StagingDir(root), log)

	return &TestEnv{
		Root:    root,
		Users:   service.NewAuthService(users, bcrypt.MinCost, auditLog, log),
		Brands:  service.NewBrandService(registry, tenants, auditLog, log),
		Ingest:  service.NewIngestService(staging, tenants, registry, root, auditLog, log),
		Tenants: tenants,
	}
}
