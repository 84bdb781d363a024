package service

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/orderreports/internal/domain"
	"github.com/yourorg/orderreports/internal/observability/metrics"
	"github.com/yourorg/orderreports/internal/paths"
	"github.com/yourorg/orderreports/internal/repository"
	"github.com/yourorg/orderreports/internal/security/audit"
)

// IngestService moves uploaded order reports through the staging area and
// into a brand's database. Whatever happens, a staged file does not survive
// the request that created it: commit archives it into the brand directory,
// and every failure path discards it.
type IngestService struct {
	staging  *repository.StagingArea
	tenants  *repository.TenantDBManager
	registry domain.BrandRegistry
	root     string
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewIngestService creates the report ingest pipeline.
func NewIngestService(staging *repository.StagingArea, tenants *repository.TenantDBManager, registry domain.BrandRegistry, root string, auditLog *audit.Logger, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		staging:  staging,
		tenants:  tenants,
		registry: registry,
		root:     root,
		audit:    auditLog,
		logger:   logger,
	}
}

// Stage parks an upload in the staging area and hands back its handle.
func (s *IngestService) Stage(ctx context.Context, stream io.Reader, name string) (*domain.StagingFile, error) {
	return s.staging.Stage(ctx, stream, name)
}

// Discard drops a staged upload without ingesting it.
func (s *IngestService) Discard(sf *domain.StagingFile) error {
	return s.staging.Discard(sf)
}

// Commit ingests a staged report into the brand's database, archives the
// file under the brand directory and records the import. The staged file is
// removed on every path out of this function.
func (s *IngestService) Commit(ctx context.Context, sf *domain.StagingFile, brandID string) (*domain.ImportRecord, error) {
	start := time.Now()
	committed := false
	defer func() {
		if !committed {
			if err := s.staging.Discard(sf); err != nil {
				s.logger.Warn("failed to discard staging file",
					slog.String("staging_id", sf.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}()

	db, err := s.tenants.Get(ctx, brandID)
	if err != nil {
		return nil, err
	}
	brand, err := s.registry.Get(ctx, brandID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(sf.Path)
	if err != nil {
		return nil, &domain.StorageError{Op: "open staging file", Path: sf.Path, Err: err}
	}
	orders, err := ParseOrderReport(f)
	f.Close()
	if err != nil {
		s.audit.LogIngest(ctx, brandID, "failure", err.Error())
		return nil, err
	}

	repo := repository.NewOrderRepository(db)
	rowCount, err := repo.ReplaceOrders(ctx, orders)
	if err != nil {
		s.audit.LogIngest(ctx, brandID, "failure", err.Error())
		return nil, err
	}
	if err := repo.EnsureASINMeta(ctx, brand.DisplayName); err != nil {
		s.logger.Warn("asin metadata backfill failed",
			slog.String("brand_id", brandID),
			slog.String("error", err.Error()),
		)
	}

	archiveDir := paths.BrandArchiveDir(s.root, brandID)
	if err := paths.Ensure(archiveDir); err != nil {
		return nil, err
	}
	ts := time.Now().UTC().Format("20060102T150405Z")
	archivedPath := filepath.Join(archiveDir, ts+"__"+sf.Name)
	if err := s.staging.PromoteTo(sf, archivedPath); err != nil {
		return nil, err
	}
	committed = true

	sha, err := fileSHA256(archivedPath)
	if err != nil {
		s.logger.Warn("failed to hash archived report",
			slog.String("path", archivedPath),
			slog.String("error", err.Error()),
		)
	}

	rec := &domain.ImportRecord{
		OriginalPath: sf.Name,
		ArchivedPath: archivedPath,
		ImportedAt:   time.Now().UTC().Format("2006-01-02 15:04:05"),
		RowCount:     rowCount,
		FileSHA256:   sha,
	}
	if err := repo.RecordImport(ctx, rec); err != nil {
		return nil, err
	}

	metrics.ObserveStorageOp("ingest", "commit", nil, time.Since(start))
	metrics.AddIngestedRows(brandID, rowCount)
	s.audit.LogIngest(ctx, brandID, "success", fmt.Sprintf("%d rows from %s", rowCount, sf.Name))
	s.logger.Info("report ingested",
		slog.String("brand_id", brandID),
		slog.Int("rows", rowCount),
		slog.String("archived_path", archivedPath),
	)
	return rec, nil
}

// ParseOrderReport reads a tab-separated order report (the export format:
// header row with hyphenated column names) into order rows.
func ParseOrderReport(r io.Reader) ([]*domain.Order, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("order report is empty")
		}
		return nil, fmt.Errorf("failed to read report header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	if _, ok := col["amazon-order-id"]; !ok {
		return nil, fmt.Errorf("order report has no amazon-order-id column")
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var orders []*domain.Order
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read report line %d: %w", line, err)
		}

		orderID := field(record, "amazon-order-id")
		if orderID == "" {
			continue
		}

		purchaseDate, err := normalizeDate(field(record, "purchase-date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: bad purchase-date: %w", line, err)
		}
		lastUpdated, err := normalizeDate(field(record, "last-updated-date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: bad last-updated-date: %w", line, err)
		}

		orders = append(orders, &domain.Order{
			AmazonOrderID:             orderID,
			MerchantOrderID:           field(record, "merchant-order-id"),
			PurchaseDate:              purchaseDate,
			LastUpdatedDate:           lastUpdated,
			OrderStatus:               field(record, "order-status"),
			FulfillmentChannel:        field(record, "fulfillment-channel"),
			SalesChannel:              field(record, "sales-channel"),
			OrderChannel:              field(record, "order-channel"),
			URL:                       field(record, "url"),
			ShipServiceLevel:          field(record, "ship-service-level"),
			ProductName:               field(record, "product-name"),
			SKU:                       field(record, "sku"),
			ASIN:                      field(record, "asin"),
			ItemStatus:                field(record, "item-status"),
			Quantity:                  toInt(field(record, "quantity")),
			Currency:                  field(record, "currency"),
			ItemPrice:                 toFloat(field(record, "item-price")),
			ItemTax:                   toFloat(field(record, "item-tax")),
			ShippingPrice:             toFloat(field(record, "shipping-price")),
			ShippingTax:               toFloat(field(record, "shipping-tax")),
			GiftWrapPrice:             toFloat(field(record, "gift-wrap-price")),
			GiftWrapTax:               toFloat(field(record, "gift-wrap-tax")),
			ItemPromotionDiscount:     toFloat(field(record, "item-promotion-discount")),
			ShipPromotionDiscount:     toFloat(field(record, "ship-promotion-discount")),
			ShipCity:                  field(record, "ship-city"),
			ShipState:                 field(record, "ship-state"),
			ShipPostalCode:            field(record, "ship-postal-code"),
			ShipCountry:               field(record, "ship-country"),
			PromotionIDs:              field(record, "promotion-ids"),
			IsBusinessOrder:           toBool(field(record, "is-business-order")),
			PurchaseOrderNumber:       field(record, "purchase-order-number"),
			PriceDesignation:          field(record, "price-designation"),
			BuyerIdentificationNumber: field(record, "buyer-identification-number"),
			BuyerIdentificationType:   field(record, "buyer-identification-type"),
		})
	}
	return orders, nil
}

// normalizeDate converts a report timestamp (RFC 3339, "Z" or offset) to
// the "2006-01-02 15:04:05" form stored in the database. Empty stays empty.
func normalizeDate(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02 15:04:05"), nil
}

func toInt(s string) *int64 {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func toFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func toBool(s string) *bool {
	if s == "" {
		return nil
	}
	b := s == "true"
	return &b
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
