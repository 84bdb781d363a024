package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/yourorg/orderreports/internal/domain"
)

// OrderRepository runs order, product-metadata and import queries against a
// single brand's database handle. It is a thin wrapper; isolation comes
// from the handle itself pointing at that brand's own file.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository wraps a tenant handle obtained from the TenantDBManager.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// ReplaceOrders deletes any existing rows carrying the incoming order ids
// and inserts the new rows, all in one transaction. Re-ingesting an
// overlapping report therefore updates orders instead of duplicating them.
func (r *OrderRepository) ReplaceOrders(ctx context.Context, orders []*domain.Order) (int, error) {
	if len(orders) == 0 {
		return 0, nil
	}

	seen := map[string]bool{}
	var orderIDs []any
	for _, o := range orders {
		if !seen[o.AmazonOrderID] {
			seen[o.AmazonOrderID] = true
			orderIDs = append(orderIDs, o.AmazonOrderID)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to replace orders: %w", err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(orderIDs)), ",")
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM orders WHERE amazon_order_id IN (%s)", placeholders),
		orderIDs...); err != nil {
		return 0, fmt.Errorf("failed to replace orders: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO orders (
			amazon_order_id, merchant_order_id, purchase_date, last_updated_date,
			order_status, fulfillment_channel, sales_channel, order_channel, url,
			ship_service_level, product_name, sku, asin, item_status, quantity,
			currency, item_price, item_tax, shipping_price, shipping_tax,
			gift_wrap_price, gift_wrap_tax, item_promotion_discount,
			ship_promotion_discount, ship_city, ship_state, ship_postal_code,
			ship_country, promotion_ids, is_business_order, purchase_order_number,
			price_designation, buyer_identification_number, buyer_identification_type
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to replace orders: %w", err)
	}
	defer stmt.Close()

	for _, o := range orders {
		var isBusiness any
		if o.IsBusinessOrder != nil {
			if *o.IsBusinessOrder {
				isBusiness = 1
			} else {
				isBusiness = 0
			}
		}
		if _, err := stmt.ExecContext(ctx,
			o.AmazonOrderID, nullStr(o.MerchantOrderID), nullStr(o.PurchaseDate), o.LastUpdatedDate,
			nullStr(o.OrderStatus), nullStr(o.FulfillmentChannel), nullStr(o.SalesChannel),
			nullStr(o.OrderChannel), nullStr(o.URL), nullStr(o.ShipServiceLevel),
			nullStr(o.ProductName), nullStr(o.SKU), nullStr(o.ASIN), nullStr(o.ItemStatus),
			o.Quantity, nullStr(o.Currency), o.ItemPrice, o.ItemTax, o.ShippingPrice,
			o.ShippingTax, o.GiftWrapPrice, o.GiftWrapTax, o.ItemPromotionDiscount,
			o.ShipPromotionDiscount, nullStr(o.ShipCity), nullStr(o.ShipState),
			nullStr(o.ShipPostalCode), nullStr(o.ShipCountry), nullStr(o.PromotionIDs),
			isBusiness, nullStr(o.PurchaseOrderNumber), nullStr(o.PriceDesignation),
			nullStr(o.BuyerIdentificationNumber), nullStr(o.BuyerIdentificationType),
		); err != nil {
			return 0, fmt.Errorf("failed to insert order %s: %w", o.AmazonOrderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to replace orders: %w", err)
	}
	return len(orders), nil
}

// EnsureASINMeta backfills asin_meta rows for ASINs that appear in orders
// but have no metadata yet, using the first comma-separated segment of the
// product name (minus a leading brand-name prefix) as the title.
func (r *OrderRepository) EnsureASINMeta(ctx context.Context, brandName string) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.asin, MIN(o.product_name) AS product_name
		FROM orders o
		LEFT JOIN asin_meta m ON o.asin = m.asin
		WHERE o.asin IS NOT NULL
		  AND TRIM(o.asin) <> ''
		  AND m.asin IS NULL
		  AND o.product_name IS NOT NULL
		  AND TRIM(o.product_name) <> ''
		  AND TRIM(o.product_name) <> '-'
		GROUP BY o.asin
	`)
	if err != nil {
		return fmt.Errorf("failed to scan for new asins: %w", err)
	}
	defer rows.Close()

	type pair struct{ asin, title string }
	var toInsert []pair
	for rows.Next() {
		var asin, productName string
		if err := rows.Scan(&asin, &productName); err != nil {
			return fmt.Errorf("failed to scan for new asins: %w", err)
		}
		title := stripBrandPrefix(extractTitle(productName), brandName)
		if title == "" {
			continue
		}
		toInsert = append(toInsert, pair{asin: asin, title: title})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to scan for new asins: %w", err)
	}
	if len(toInsert) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to backfill asin metadata: %w", err)
	}
	defer tx.Rollback()
	for _, p := range toInsert {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO asin_meta (asin, title_override) VALUES (?, ?)`,
			p.asin, p.title); err != nil {
			return fmt.Errorf("failed to backfill asin metadata: %w", err)
		}
	}
	return tx.Commit()
}

// UpsertASINMeta inserts or updates one product metadata row.
func (r *OrderRepository) UpsertASINMeta(ctx context.Context, meta *domain.ASINMeta) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO asin_meta (asin, title_override, brand, category, subcategory, cost, launch_date, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(asin) DO UPDATE SET
			title_override = excluded.title_override,
			brand          = excluded.brand,
			category       = excluded.category,
			subcategory    = excluded.subcategory,
			cost           = excluded.cost,
			launch_date    = excluded.launch_date,
			notes          = excluded.notes
	`, meta.ASIN, nullStr(meta.TitleOverride), nullStr(meta.Brand), nullStr(meta.Category),
		nullStr(meta.Subcategory), meta.Cost, nullStr(meta.LaunchDate), nullStr(meta.Notes))
	if err != nil {
		return fmt.Errorf("failed to upsert asin metadata: %w", err)
	}
	return nil
}

// ListASINMeta returns all product metadata rows ordered by ASIN.
func (r *OrderRepository) ListASINMeta(ctx context.Context) ([]*domain.ASINMeta, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT asin, title_override, brand, category, subcategory, cost, launch_date, notes
		FROM asin_meta
		ORDER BY asin
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list asin metadata: %w", err)
	}
	defer rows.Close()

	var metas []*domain.ASINMeta
	for rows.Next() {
		meta := &domain.ASINMeta{}
		var title, brand, category, subcategory, launchDate, notes sql.NullString
		var cost sql.NullFloat64
		if err := rows.Scan(&meta.ASIN, &title, &brand, &category, &subcategory, &cost, &launchDate, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan asin metadata: %w", err)
		}
		meta.TitleOverride = title.String
		meta.Brand = brand.String
		meta.Category = category.String
		meta.Subcategory = subcategory.String
		meta.LaunchDate = launchDate.String
		meta.Notes = notes.String
		if cost.Valid {
			c := cost.Float64
			meta.Cost = &c
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// RecordImport appends one row to the imports log.
func (r *OrderRepository) RecordImport(ctx context.Context, rec *domain.ImportRecord) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO imports (original_path, archived_path, imported_at, row_count, file_sha256)
		VALUES (?, ?, ?, ?, ?)
	`, rec.OriginalPath, rec.ArchivedPath, rec.ImportedAt, rec.RowCount, rec.FileSHA256)
	if err != nil {
		return fmt.Errorf("failed to record import: %w", err)
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

// SalesTotal returns total item revenue for purchases between from and to
// (inclusive, "2006-01-02" dates), excluding cancelled items. Tax and
// shipping are ignored.
func (r *OrderRepository) SalesTotal(ctx context.Context, from, to string) (float64, error) {
	var total float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(COALESCE(item_price, 0.0)), 0.0)
		FROM orders
		WHERE purchase_date IS NOT NULL
		  AND date(purchase_date) BETWEEN ? AND ?
		  AND LOWER(COALESCE(item_status, '')) NOT IN ('cancelled', 'canceled')
		  AND item_price IS NOT NULL
	`, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to query sales total: %w", err)
	}
	return total, nil
}

// LatestOrderUpdate returns the most recent last_updated_date (date part
// only), or the empty string when the brand has no orders yet.
func (r *OrderRepository) LatestOrderUpdate(ctx context.Context) (string, error) {
	var latest sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(date(last_updated_date))
		FROM orders
		WHERE last_updated_date IS NOT NULL
	`).Scan(&latest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to query latest order update: %w", err)
	}
	return latest.String, nil
}

// CountOrders returns the number of order rows in this brand's database.
func (r *OrderRepository) CountOrders(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

// extractTitle takes the first comma-separated segment of a product name.
func extractTitle(productName string) string {
	name, _, _ := strings.Cut(productName, ",")
	name = strings.TrimSpace(name)
	if name == "-" {
		return ""
	}
	return name
}

// stripBrandPrefix removes a leading brand name from a product title.
func stripBrandPrefix(title, brandName string) string {
	brand := strings.TrimSpace(brandName)
	if title == "" || brand == "" {
		return title
	}
	if strings.HasPrefix(strings.ToLower(title), strings.ToLower(brand)) {
		stripped := strings.TrimLeft(title[len(brand):], " ,:-")
		return stripped
	}
	return title
}

// nullStr maps the empty string to NULL so text columns match the original
// report semantics.
func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
