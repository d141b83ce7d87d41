package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/port"
)

const productDetailReviews = 10

type CatalogService struct {
	catalog port.CatalogRepository
	reviews port.ReviewRepository
	deps    Deps
}

func NewCatalogService(catalog port.CatalogRepository, reviews port.ReviewRepository, deps Deps) *CatalogService {
	return &CatalogService{catalog: catalog, reviews: reviews, deps: deps.withDefaults()}
}

type ProductQuery struct {
	CategoryID   int64
	Search       string
	MinPrice     decimal.NullDecimal
	MaxPrice     decimal.NullDecimal
	InStockOnly  bool
	FeaturedOnly bool
	// SortBy is name, price or created_at; SortOrder is asc or desc.
	SortBy    string
	SortOrder string
	Page      int
	PerPage   int
}

func (q ProductQuery) filter() domain.ProductFilter {
	f := domain.ProductFilter{
		CategoryID:   q.CategoryID,
		Search:       strings.TrimSpace(q.Search),
		MinPrice:     q.MinPrice,
		MaxPrice:     q.MaxPrice,
		InStockOnly:  q.InStockOnly,
		FeaturedOnly: q.FeaturedOnly,
		Sort:         domain.SortName,
		Descending:   strings.EqualFold(q.SortOrder, "desc"),
		Page:         domain.NewPage(q.Page, q.PerPage, domain.DefaultPerPage),
	}
	switch domain.ProductSort(q.SortBy) {
	case domain.SortPrice, domain.SortCreatedAt:
		f.Sort = domain.ProductSort(q.SortBy)
	}
	return f
}

func (s *CatalogService) ListProducts(ctx context.Context, q ProductQuery) (_ []domain.Product, _ domain.Pagination, err error) {
	defer s.deps.track("catalog.list_products")(&err)

	f := q.filter()
	products, total, err := s.catalog.ListProducts(ctx, f)
	if err != nil {
		return nil, domain.Pagination{}, fmt.Errorf("list products: %w", err)
	}
	return products, domain.NewPagination(f.Page, total), nil
}

type ProductDetail struct {
	Product domain.Product
	Reviews []domain.Review
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*ProductDetail, error) {
	p, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	reviews, _, err := s.reviews.ListReviews(ctx, id, domain.ReviewSortNewest, domain.Page{Number: 1, PerPage: productDetailReviews})
	if err != nil {
		return nil, fmt.Errorf("list reviews for product %d: %w", id, err)
	}
	return &ProductDetail{Product: *p, Reviews: reviews}, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	cats, err := s.catalog.ListCategories(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

type CategoryInput struct {
	Name        string
	Description string
	ImageURL    string
	SortOrder   int
	IsActive    *bool
}

func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (*domain.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	c := &domain.Category{
		Name:        name,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		SortOrder:   in.SortOrder,
		IsActive:    in.IsActive == nil || *in.IsActive,
	}
	if err := s.catalog.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.Invalid("Category already exists")
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

type ProductInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	OriginalPrice decimal.NullDecimal
	CategoryID    int64
	ImageURL      string
	StockQuantity int
	MinStockLevel *int
	IsAvailable   *bool
	IsFeatured    bool
	Weight        *float64
	Unit          string
	Barcode       string
	Brand         string
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return domain.NewValidationError("name", "is required")
	}
	if !in.Price.IsPositive() {
		return domain.NewValidationError("price", "must be greater than zero")
	}
	if in.CategoryID <= 0 {
		return domain.NewValidationError("category_id", "is required")
	}
	if in.StockQuantity < 0 {
		return domain.NewValidationError("stock_quantity", "must not be negative")
	}
	if in.MinStockLevel != nil && *in.MinStockLevel < 0 {
		return domain.NewValidationError("min_stock_level", "must not be negative")
	}
	return nil
}

func (in ProductInput) apply(p *domain.Product) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Price = in.Price.Round(2)
	p.OriginalPrice = in.OriginalPrice
	p.CategoryID = in.CategoryID
	p.ImageURL = in.ImageURL
	p.IsAvailable = in.IsAvailable == nil || *in.IsAvailable
	p.IsFeatured = in.IsFeatured
	p.Weight = in.Weight
	p.Unit = in.Unit
	p.Barcode = in.Barcode
	p.Brand = in.Brand
	p.MinStockLevel = domain.DefaultMinStockLevel
	if in.MinStockLevel != nil {
		p.MinStockLevel = *in.MinStockLevel
	}
}

func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p := &domain.Product{StockQuantity: in.StockQuantity}
	in.apply(p)
	if err := s.catalog.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.Invalid("Barcode already exists")
		}
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.deps.logger(ctx).Info("product_created", zap.Int64("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

// UpdateProduct replaces the editable fields. Stock is left untouched; it
// only moves through inventory adjustments and checkout.
func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	in.apply(p)
	if err := s.catalog.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.Invalid("Barcode already exists")
		}
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}
	return s.catalog.GetProduct(ctx, id)
}
