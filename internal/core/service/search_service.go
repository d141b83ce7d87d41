package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/port"
)

const (
	minSuggestionQuery     = 2
	defaultSuggestionLimit = 10
)

type SearchService struct {
	catalog  port.CatalogRepository
	searches port.SearchRepository
	deps     Deps
}

func NewSearchService(catalog port.CatalogRepository, searches port.SearchRepository, deps Deps) *SearchService {
	return &SearchService{catalog: catalog, searches: searches, deps: deps.withDefaults()}
}

type SearchQuery struct {
	Query       string
	CategoryID  int64
	MinPrice    decimal.NullDecimal
	MaxPrice    decimal.NullDecimal
	InStockOnly bool
	// SortBy is relevance, price_low, price_high, rating or newest.
	SortBy  string
	Page    int
	PerPage int
	// UserID is zero for anonymous searches, which are not logged.
	UserID int64
}

func (s *SearchService) Search(ctx context.Context, q SearchQuery) (_ []domain.Product, _ domain.Pagination, err error) {
	defer s.deps.track("search.products")(&err)

	query := strings.TrimSpace(q.Query)
	if query == "" {
		return nil, domain.Pagination{}, domain.Invalid("Search query is required")
	}

	f := domain.ProductFilter{
		CategoryID:  q.CategoryID,
		Terms:       strings.Fields(query),
		MinPrice:    q.MinPrice,
		MaxPrice:    q.MaxPrice,
		InStockOnly: q.InStockOnly,
		Sort:        domain.SortRelevance,
		Page:        domain.NewPage(q.Page, q.PerPage, domain.DefaultPerPage),
	}
	switch domain.ProductSort(q.SortBy) {
	case domain.SortPriceLow, domain.SortPriceHigh, domain.SortRating, domain.SortNewest:
		f.Sort = domain.ProductSort(q.SortBy)
	}

	products, total, err := s.catalog.ListProducts(ctx, f)
	if err != nil {
		return nil, domain.Pagination{}, fmt.Errorf("search products: %w", err)
	}

	if q.UserID != 0 {
		entry := domain.SearchLog{
			UserID:       q.UserID,
			Query:        strings.ToLower(query),
			ResultsCount: total,
			CreatedAt:    s.deps.now(),
		}
		if err := s.searches.LogSearch(ctx, entry); err != nil {
			s.deps.logger(ctx).Warn("search_log_failed", zap.Error(err))
		}
	}
	return products, domain.NewPagination(f.Page, total), nil
}

// Suggestions returns product names first, then matching categories.
func (s *SearchService) Suggestions(ctx context.Context, q string, limit int) ([]domain.Suggestion, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < minSuggestionQuery {
		return []domain.Suggestion{}, nil
	}
	if limit <= 0 || limit > domain.MaxPerPage {
		limit = defaultSuggestionLimit
	}
	out, err := s.searches.Suggest(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}
	return out, nil
}
