package domain

// Order represents one line of an order report inside a brand's database.
// Text columns use the empty string for "not present"; numeric columns use
// nil so missing values stay NULL in storage.
type Order struct {
	ID                        int64
	AmazonOrderID             string
	MerchantOrderID           string
	PurchaseDate              string // "2006-01-02 15:04:05", UTC
	LastUpdatedDate           string
	OrderStatus               string
	FulfillmentChannel        string
	SalesChannel              string
	OrderChannel              string
	URL                       string
	ShipServiceLevel          string
	ProductName               string
	SKU                       string
	ASIN                      string
	ItemStatus                string
	Quantity                  *int64
	Currency                  string
	ItemPrice                 *float64
	ItemTax                   *float64
	ShippingPrice             *float64
	ShippingTax               *float64
	GiftWrapPrice             *float64
	GiftWrapTax               *float64
	ItemPromotionDiscount     *float64
	ShipPromotionDiscount     *float64
	ShipCity                  string
	ShipState                 string
	ShipPostalCode            string
	ShipCountry               string
	PromotionIDs              string
	IsBusinessOrder           *bool
	PurchaseOrderNumber       string
	PriceDesignation          string
	BuyerIdentificationNumber string
	BuyerIdentificationType   string
}

// ASINMeta holds per-product metadata within a brand's database.
type ASINMeta struct {
	ASIN          string
	TitleOverride string
	Brand         string
	Category      string
	Subcategory   string
	Cost          *float64
	LaunchDate    string
	Notes         string
}

// ImportRecord describes one completed report ingest for a brand.
type ImportRecord struct {
	ID           int64
	OriginalPath string
	ArchivedPath string
	ImportedAt   string // "2006-01-02 15:04:05", UTC
	RowCount     int
	FileSHA256   string
}
