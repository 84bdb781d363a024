package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yourorg/orderreports/internal/domain"
	"github.com/yourorg/orderreports/internal/paths"
)

func newTestTenants(t *testing.T, hardDelete bool) (*TenantDBManager, *FileBrandRegistry, string) {
	t.Helper()
	root := t.TempDir()
	reg := NewFileBrandRegistry(paths.BrandsFilePath(root), nil)
	mgr := NewTenantDBManager(root, reg, hardDelete, nil)
	t.Cleanup(func() { mgr.Close() })
	return mgr, reg, root
}

func registerBrand(t *testing.T, mgr *TenantDBManager, reg *FileBrandRegistry, id string) {
	t.Helper()
	ctx := context.Background()
	if _, err := mgr.Provision(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := reg.Add(ctx, testBrand(id, strings.ToUpper(id))); err != nil {
		t.Fatal(err)
	}
}

func TestGetUnregisteredBrandFails(t *testing.T) {
	mgr, _, _ := newTestTenants(t, false)
	if _, err := mgr.Get(context.Background(), "ghost"); !errors.Is(err, domain.ErrNoSuchBrand) {
		t.Fatalf("Get unregistered = %v, want ErrNoSuchBrand", err)
	}
}

func TestGetIgnoresOrphanDirectory(t *testing.T) {
	mgr, _, root := newTestTenants(t, false)

	// A leftover directory from a crashed create must stay unreachable.
	if err := os.MkdirAll(paths.BrandDir(root, "orphan"), 0o700); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Get(context.Background(), "orphan"); !errors.Is(err, domain.ErrNoSuchBrand) {
		t.Fatalf("Get orphan = %v, want ErrNoSuchBrand", err)
	}
}

func TestGetInvalidID(t *testing.T) {
	mgr, _, _ := newTestTenants(t, false)
	if _, err := mgr.Get(context.Background(), "../escape"); !errors.Is(err, domain.ErrInvalidBrandID) {
		t.Fatalf("Get invalid id = %v, want ErrInvalidBrandID", err)
	}
}

func TestProvisionThenGet(t *testing.T) {
	mgr, reg, root := newTestTenants(t, false)
	ctx := context.Background()

	registerBrand(t, mgr, reg, "acme")

	if _, err := os.Stat(paths.BrandOrdersPath(root, "acme")); err != nil {
		t.Fatalf("orders.sqlite missing after provision: %v", err)
	}

	db, err := mgr.Get(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}

	// Fresh tenant database starts empty.
	n, err := NewOrderRepository(db).CountOrders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("new tenant has %d orders, want 0", n)
	}

	again, err := mgr.Get(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if again != db {
		t.Error("expected cached handle on second Get")
	}
}

func TestProvisionReusesCachedHandle(t *testing.T) {
	mgr, reg, _ := newTestTenants(t, false)
	ctx := context.Background()

	registerBrand(t, mgr, reg, "acme")
	db, err := mgr.Get(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}

	// Re-provisioning an existing tenant must not displace the open handle.
	created, err := mgr.Provision(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("existing tenant reported as newly created")
	}

	again, err := mgr.Get(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if again != db {
		t.Error("cached handle replaced by re-provision")
	}
	if err := db.PingContext(ctx); err != nil {
		t.Errorf("original handle unusable after re-provision: %v", err)
	}
}

func TestTenantIsolation(t *testing.T) {
	mgr, reg, _ := newTestTenants(t, false)
	ctx := context.Background()

	registerBrand(t, mgr, reg, "acme")
	registerBrand(t, mgr, reg, "widgetco")

	acme, err := mgr.Get(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	widgetco, err := mgr.Get(ctx, "widgetco")
	if err != nil {
		t.Fatal(err)
	}

	price := 9.99
	if _, err := NewOrderRepository(acme).ReplaceOrders(ctx, []*domain.Order{{
		AmazonOrderID:   "111-222",
		LastUpdatedDate: "2025-06-01 00:00:00",
		PurchaseDate:    "2025-06-01 00:00:00",
		ItemPrice:       &price,
	}}); err != nil {
		t.Fatal(err)
	}

	n, err := NewOrderRepository(widgetco).CountOrders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("acme order visible through widgetco handle")
	}

	n, err = NewOrderRepository(acme).CountOrders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("acme order count = %d, want 1", n)
	}
}

func TestDeprovisionArchives(t *testing.T) {
	mgr, reg, root := newTestTenants(t, false)
	ctx := context.Background()

	registerBrand(t, mgr, reg, "acme")
	if err := reg.Remove(ctx, "acme"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Deprovision(ctx, "acme"); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(paths.BrandDir(root, "acme")); !os.IsNotExist(err) {
		t.Errorf("brand dir still present after deprovision: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "brands"))
	if err != nil {
		t.Fatal(err)
	}
	archived := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "acme.archived-") {
			archived = true
		}
	}
	if !archived {
		t.Error("expected an archived copy of the brand directory")
	}

	if _, err := mgr.Get(ctx, "acme"); !errors.Is(err, domain.ErrNoSuchBrand) {
		t.Errorf("Get after deprovision = %v, want ErrNoSuchBrand", err)
	}
}

func TestDeprovisionHardDelete(t *testing.T) {
	mgr, reg, root := newTestTenants(t, true)
	ctx := context.Background()

	registerBrand(t, mgr, reg, "acme")
	if err := reg.Remove(ctx, "acme"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Deprovision(ctx, "acme"); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "brands"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty brands dir after hard delete, got %d entries", len(entries))
	}
}
