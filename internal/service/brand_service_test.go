package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/yourorg/orderreports/internal/domain"
	"github.com/yourorg/orderreports/internal/paths"
	"github.com/yourorg/orderreports/internal/repository"
	"github.com/yourorg/orderreports/internal/security/audit"
)

func newTestBrandService(t *testing.T) (*BrandService, *repository.TenantDBManager, string) {
	t.Helper()
	root := t.TempDir()
	reg := repository.NewFileBrandRegistry(paths.BrandsFilePath(root), nil)
	tenants := repository.NewTenantDBManager(root, reg, false, nil)
	t.Cleanup(func() { tenants.Close() })
	svc := NewBrandService(reg, tenants, audit.NewLogger(nil), nil)
	return svc, tenants, root
}

func TestCreateBrandThenGetDatabase(t *testing.T) {
	svc, tenants, root := newTestBrandService(t)
	ctx := context.Background()

	brand, err := svc.Create(ctx, "Acme Co", "acme")
	if err != nil {
		t.Fatal(err)
	}
	if brand.ID != "acme" || brand.DisplayName != "Acme Co" {
		t.Fatalf("unexpected brand: %+v", brand)
	}
	if brand.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}

	db, err := tenants.Get(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	n, err := repository.NewOrderRepository(db).CountOrders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("fresh brand has %d orders", n)
	}

	if _, err := os.Stat(paths.BrandOrdersPath(root, "acme")); err != nil {
		t.Errorf("tenant database missing: %v", err)
	}
}

func TestCreateBrandGeneratesID(t *testing.T) {
	svc, _, _ := newTestBrandService(t)

	brand, err := svc.Create(context.Background(), "Widget & Sons", "")
	if err != nil {
		t.Fatal(err)
	}
	if brand.ID != "widget-sons" {
		t.Errorf("generated id = %q", brand.ID)
	}
}

func TestCreateBrandInvalidID(t *testing.T) {
	svc, _, root := newTestBrandService(t)
	ctx := context.Background()

	for _, id := range []string{"Bad Name", "../escape", "UPPER"} {
		if _, err := svc.Create(ctx, "X", id); !errors.Is(err, domain.ErrInvalidBrandID) {
			t.Errorf("Create(%q) = %v, want ErrInvalidBrandID", id, err)
		}
	}

	// Nothing may be left on disk after a rejected create.
	if entries, err := os.ReadDir(root + "/brands"); err == nil && len(entries) > 0 {
		t.Errorf("rejected creates left %d directories behind", len(entries))
	}
}

func TestCreateBrandDuplicateKeepsOriginal(t *testing.T) {
	svc, tenants, _ := newTestBrandService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "Acme Co", "acme"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Create(ctx, "Acme Two", "acme")
	if !errors.Is(err, domain.ErrDuplicateBrand) {
		t.Fatalf("duplicate create = %v, want ErrDuplicateBrand", err)
	}

	// The original brand and its database must be intact.
	brand, err := svc.Get(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if brand.DisplayName != "Acme Co" {
		t.Errorf("display name = %q after duplicate attempt", brand.DisplayName)
	}
	if _, err := tenants.Get(ctx, "acme"); err != nil {
		t.Errorf("tenant database lost after duplicate attempt: %v", err)
	}
}

func TestCreateBrandDuplicateKeepsCachedHandle(t *testing.T) {
	svc, tenants, _ := newTestBrandService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "Acme Co", "acme"); err != nil {
		t.Fatal(err)
	}
	db, err := tenants.Get(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Create(ctx, "Acme Two", "acme"); !errors.Is(err, domain.ErrDuplicateBrand) {
		t.Fatalf("duplicate create = %v, want ErrDuplicateBrand", err)
	}

	// The duplicate attempt must not have opened a second handle for the
	// same file and displaced the cached one.
	again, err := tenants.Get(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if again != db {
		t.Error("cached handle replaced by duplicate create")
	}
	if err := db.PingContext(ctx); err != nil {
		t.Errorf("original handle unusable after duplicate create: %v", err)
	}
}

func TestCreateBrandRollbackRemovesDirectory(t *testing.T) {
	svc, _, root := newTestBrandService(t)
	ctx := context.Background()

	// A corrupt registry file makes the publish step fail with a storage
	// error after the tenant directory has been provisioned.
	if err := os.WriteFile(paths.BrandsFilePath(root), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Create(ctx, "Acme Co", "acme")
	if err == nil {
		t.Fatal("create succeeded against corrupt registry")
	}
	if errors.Is(err, domain.ErrDuplicateBrand) {
		t.Fatalf("unexpected duplicate error: %v", err)
	}

	// Rollback removes the empty directory outright instead of archiving it.
	entries, err := os.ReadDir(filepath.Join(root, "brands"))
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	for _, e := range entries {
		t.Errorf("failed create left %q behind", e.Name())
	}
}

func TestDeleteBrand(t *testing.T) {
	svc, tenants, _ := newTestBrandService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "Acme Co", "acme"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, "acme"); err != nil {
		t.Fatal(err)
	}

	brands, err := svc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(brands) != 0 {
		t.Errorf("brand still listed after delete: %+v", brands)
	}
	if _, err := tenants.Get(ctx, "acme"); !errors.Is(err, domain.ErrNoSuchBrand) {
		t.Errorf("Get after delete = %v, want ErrNoSuchBrand", err)
	}

	if err := svc.Delete(ctx, "acme"); !errors.Is(err, domain.ErrNoSuchBrand) {
		t.Errorf("second delete = %v, want ErrNoSuchBrand", err)
	}
}

func TestConcurrentCreateDistinctIDs(t *testing.T) {
	svc, tenants, _ := newTestBrandService(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, fmt.Sprintf("Brand %d", i), fmt.Sprintf("brand-%d", i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	brands, err := svc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(brands) != n {
		t.Fatalf("expected %d brands, got %d", n, len(brands))
	}
	for i := 0; i < n; i++ {
		if _, err := tenants.Get(ctx, fmt.Sprintf("brand-%d", i)); err != nil {
			t.Errorf("brand-%d database missing: %v", i, err)
		}
	}
}

func TestConcurrentCreateSameID(t *testing.T) {
	svc, tenants, _ := newTestBrandService(t)
	ctx := context.Background()

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, "Acme Co", "acme")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrDuplicateBrand):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("got %d successes, want exactly 1", successes)
	}
	// The winner's database must still be reachable.
	if _, err := tenants.Get(ctx, "acme"); err != nil {
		t.Errorf("winner's database unreachable: %v", err)
	}
}
