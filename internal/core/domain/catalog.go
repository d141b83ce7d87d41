package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID           int64
	Name         string
	Description  string
	ImageURL     string
	IsActive     bool
	SortOrder    int
	ProductCount int
}

type Product struct {
	ID            int64
	Name          string
	Description   string
	Price         decimal.Decimal
	OriginalPrice decimal.NullDecimal
	CategoryID    int64
	CategoryName  string
	ImageURL      string
	StockQuantity int
	MinStockLevel int
	IsAvailable   bool
	IsFeatured    bool
	Weight        *float64
	Unit          string
	Barcode       string
	Brand         string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Derived from reviews, filled by read queries.
	AverageRating float64
	ReviewCount   int
}

func (p *Product) IsLowStock() bool {
	return p.StockQuantity <= p.MinStockLevel
}

const DefaultMinStockLevel = 10

type ProductSort string

const (
	SortName      ProductSort = "name"
	SortPrice     ProductSort = "price"
	SortCreatedAt ProductSort = "created_at"
	SortRelevance ProductSort = "relevance"
	SortPriceLow  ProductSort = "price_low"
	SortPriceHigh ProductSort = "price_high"
	SortRating    ProductSort = "rating"
	SortNewest    ProductSort = "newest"
)

// ProductFilter drives both catalog listing and search. Search is a single
// substring; Terms must all match (each against name, description or brand).
type ProductFilter struct {
	CategoryID   int64
	Search       string
	Terms        []string
	MinPrice     decimal.NullDecimal
	MaxPrice     decimal.NullDecimal
	InStockOnly  bool
	FeaturedOnly bool
	Sort         ProductSort
	Descending   bool
	Page         Page
}
