package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/yourorg/orderreports/internal/domain"
	"github.com/yourorg/orderreports/internal/infrastructure/sqlite"
	"github.com/yourorg/orderreports/internal/observability/metrics"
	"github.com/yourorg/orderreports/internal/paths"
)

var orderSchema = []string{`
	CREATE TABLE orders (
		id                           INTEGER PRIMARY KEY AUTOINCREMENT,

		amazon_order_id              TEXT NOT NULL,
		merchant_order_id            TEXT,
		purchase_date                TEXT,
		last_updated_date            TEXT NOT NULL,
		order_status                 TEXT,
		fulfillment_channel          TEXT,
		sales_channel                TEXT,
		order_channel                TEXT,
		url                          TEXT,
		ship_service_level           TEXT,
		product_name                 TEXT,
		sku                          TEXT,
		asin                         TEXT,
		item_status                  TEXT,
		quantity                     INTEGER,
		currency                     TEXT,
		item_price                   REAL,
		item_tax                     REAL,
		shipping_price               REAL,
		shipping_tax                 REAL,
		gift_wrap_price              REAL,
		gift_wrap_tax                REAL,
		item_promotion_discount      REAL,
		ship_promotion_discount      REAL,
		ship_city                    TEXT,
		ship_state                   TEXT,
		ship_postal_code             TEXT,
		ship_country                 TEXT,
		promotion_ids                TEXT,
		is_business_order            INTEGER,
		purchase_order_number        TEXT,
		price_designation            TEXT,
		buyer_identification_number  TEXT,
		buyer_identification_type    TEXT,

		gross_item_revenue AS (COALESCE(item_price,0) * COALESCE(quantity,1)),
		net_item_revenue   AS (
			COALESCE(item_price,0) * COALESCE(quantity,1)
			+ COALESCE(item_tax,0)
			+ COALESCE(shipping_price,0)
			+ COALESCE(shipping_tax,0)
			+ COALESCE(gift_wrap_price,0)
			+ COALESCE(gift_wrap_tax,0)
			- COALESCE(item_promotion_discount,0)
			- COALESCE(ship_promotion_discount,0)
		)
	);

	CREATE INDEX idx_orders_amazon_order_id ON orders(amazon_order_id);
	CREATE INDEX idx_orders_asin            ON orders(asin);
	CREATE INDEX idx_orders_purchase_date   ON orders(purchase_date);

	CREATE TABLE asin_meta (
		asin           TEXT PRIMARY KEY,
		title_override TEXT,
		brand          TEXT,
		category       TEXT,
		subcategory    TEXT,
		cost           REAL,
		launch_date    TEXT,
		notes          TEXT
	);

	CREATE TABLE imports (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		original_path TEXT NOT NULL,
		archived_path TEXT NOT NULL,
		imported_at   TEXT NOT NULL,
		row_count     INTEGER NOT NULL,
		file_sha256   TEXT
	);
`}

// TenantDBManager owns the mapping from brand id to that brand's isolated
// orders database. Handles are opened lazily and cached; each tenant file
// carries its own engine-level write lock, so writers to different brands
// never contend. Provision and Deprovision are called only by the brand
// service, which keeps the registry and the filesystem in step.
type TenantDBManager struct {
	root       string
	registry   domain.BrandRegistry
	logger     *slog.Logger
	hardDelete bool

	mu      sync.RWMutex
	handles map[string]*sql.DB
}

// NewTenantDBManager creates a manager rooted at the resolved data
// directory. When hardDelete is false, deprovisioned brand directories are
// archived by rename instead of removed.
func NewTenantDBManager(root string, registry domain.BrandRegistry, hardDelete bool, logger *slog.Logger) *TenantDBManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantDBManager{
		root:       root,
		registry:   registry,
		logger:     logger,
		hardDelete: hardDelete,
		handles:    map[string]*sql.DB{},
	}
}

// Get returns the open database handle for a registered brand, opening it
// on first use. Unregistered ids fail with domain.ErrNoSuchBrand even if an
// orphaned directory is still on disk.
func (m *TenantDBManager) Get(ctx context.Context, brandID string) (*sql.DB, error) {
	if err := domain.ValidateBrandID(brandID); err != nil {
		return nil, err
	}

	ok, err := m.registry.Exists(ctx, brandID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("brand %q: %w", brandID, domain.ErrNoSuchBrand)
	}

	m.mu.RLock()
	db := m.handles[brandID]
	m.mu.RUnlock()
	if db != nil {
		return db, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if db := m.handles[brandID]; db != nil {
		return db, nil
	}

	db, err = m.open(ctx, brandID)
	if err != nil {
		return nil, err
	}
	m.handles[brandID] = db
	metrics.SetOpenTenantDatabases(len(m.handles))
	return db, nil
}

// Provision creates the brand's directory and database schema. It reports
// whether the directory was newly created, so the caller can roll back its
// own work without touching a pre-existing tenant.
func (m *TenantDBManager) Provision(ctx context.Context, brandID string) (created bool, err error) {
	if err := domain.ValidateBrandID(brandID); err != nil {
		return false, err
	}

	dir := paths.BrandDir(m.root, brandID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		created = true
	}
	if err := paths.Ensure(dir); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// The tenant may already be open, e.g. a duplicate create racing an
	// existing brand. Reuse the cached handle instead of displacing it.
	if m.handles[brandID] != nil {
		return created, nil
	}

	db, err := m.open(ctx, brandID)
	if err != nil {
		if created {
			os.RemoveAll(dir)
		}
		return false, err
	}
	m.handles[brandID] = db
	metrics.SetOpenTenantDatabases(len(m.handles))

	m.logger.Info("provisioned tenant database",
		slog.String("brand_id", brandID),
		slog.Bool("created", created),
	)
	return created, nil
}

// Deprovision closes the brand's handle and archives (or, with hard delete
// enabled, removes) its directory. The registry entry is already gone by
// the time this runs, so a crash here leaves only an unreachable orphan.
func (m *TenantDBManager) Deprovision(ctx context.Context, brandID string) error {
	return m.teardown(ctx, brandID, m.hardDelete)
}

// Purge closes the brand's handle and removes its directory outright,
// regardless of the archive setting. Used to roll back a provisioning whose
// registry publish failed; there is nothing in the directory worth keeping.
func (m *TenantDBManager) Purge(ctx context.Context, brandID string) error {
	return m.teardown(ctx, brandID, true)
}

func (m *TenantDBManager) teardown(ctx context.Context, brandID string, remove bool) error {
	if err := domain.ValidateBrandID(brandID); err != nil {
		return err
	}

	m.mu.Lock()
	if db := m.handles[brandID]; db != nil {
		if err := db.Close(); err != nil {
			m.logger.Warn("failed to close tenant database",
				slog.String("brand_id", brandID),
				slog.String("error", err.Error()),
			)
		}
		delete(m.handles, brandID)
		metrics.SetOpenTenantDatabases(len(m.handles))
	}
	m.mu.Unlock()

	dir := paths.BrandDir(m.root, brandID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	if remove {
		if err := os.RemoveAll(dir); err != nil {
			return &domain.StorageError{Op: "remove tenant directory", Path: dir, Err: err}
		}
		return nil
	}

	archived := fmt.Sprintf("%s.archived-%d", dir, time.Now().Unix())
	if err := os.Rename(dir, archived); err != nil {
		return &domain.StorageError{Op: "archive tenant directory", Path: dir, Err: err}
	}
	m.logger.Info("archived tenant directory",
		slog.String("brand_id", brandID),
		slog.String("archived_path", archived),
	)
	return nil
}

// Close releases every cached tenant handle.
func (m *TenantDBManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for id, db := range m.handles {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.handles, id)
	}
	metrics.SetOpenTenantDatabases(0)
	return firstErr
}

func (m *TenantDBManager) open(ctx context.Context, brandID string) (*sql.DB, error) {
	path := paths.BrandOrdersPath(m.root, brandID)
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, &domain.StorageError{Op: "open tenant database", Path: path, Err: err}
	}
	if err := sqlite.Migrate(ctx, db, orderSchema); err != nil {
		db.Close()
		return nil, &domain.StorageError{Op: "migrate tenant database", Path: path, Err: err}
	}
	return db, nil
}
