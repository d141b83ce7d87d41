package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

func (s *Store) ListCategories(_ context.Context, activeOnly bool) ([]domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[int64]int)
	for _, p := range s.products {
		if p.IsAvailable {
			counts[p.CategoryID]++
		}
	}

	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		cat := *c
		cat.ProductCount = counts[c.ID]
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cat := *c
	return &cat, nil
}

func (s *Store) CreateCategory(_ context.Context, category *domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.categories {
		if strings.EqualFold(c.Name, category.Name) {
			return domain.ErrDuplicate
		}
	}
	category.ID = s.nextID()
	cat := *category
	s.categories[cat.ID] = &cat
	return nil
}

// decorate fills the read-only joined fields. mu must be held.
func (s *Store) decorate(p *domain.Product) domain.Product {
	out := *p
	if c, ok := s.categories[p.CategoryID]; ok {
		out.CategoryName = c.Name
	}
	var sum, n int
	for _, r := range s.reviews {
		if r.ProductID == p.ID {
			sum += r.Rating
			n++
		}
	}
	out.ReviewCount = n
	out.AverageRating = 0
	if n > 0 {
		out.AverageRating = float64(sum) / float64(n)
	}
	return out
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func matchesText(p *domain.Product, term string) bool {
	return containsFold(p.Name, term) || containsFold(p.Description, term) || containsFold(p.Brand, term)
}

func matchesFilter(p *domain.Product, f domain.ProductFilter) bool {
	if !p.IsAvailable {
		return false
	}
	if f.CategoryID != 0 && p.CategoryID != f.CategoryID {
		return false
	}
	if f.Search != "" && !matchesText(p, f.Search) {
		return false
	}
	for _, term := range f.Terms {
		if !matchesText(p, term) {
			return false
		}
	}
	if f.MinPrice.Valid && p.Price.LessThan(f.MinPrice.Decimal) {
		return false
	}
	if f.MaxPrice.Valid && p.Price.GreaterThan(f.MaxPrice.Decimal) {
		return false
	}
	if f.InStockOnly && p.StockQuantity <= 0 {
		return false
	}
	if f.FeaturedOnly && !p.IsFeatured {
		return false
	}
	return true
}

func productLess(f domain.ProductFilter) func(a, b domain.Product) bool {
	byName := func(a, b domain.Product) bool {
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	}
	switch f.Sort {
	case domain.SortPrice:
		return func(a, b domain.Product) bool {
			if !a.Price.Equal(b.Price) {
				if f.Descending {
					return a.Price.GreaterThan(b.Price)
				}
				return a.Price.LessThan(b.Price)
			}
			return byName(a, b)
		}
	case domain.SortPriceLow, domain.SortPriceHigh:
		desc := f.Sort == domain.SortPriceHigh
		return func(a, b domain.Product) bool {
			if !a.Price.Equal(b.Price) {
				return a.Price.LessThan(b.Price) != desc
			}
			return byName(a, b)
		}
	case domain.SortCreatedAt, domain.SortNewest:
		return func(a, b domain.Product) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
	case domain.SortRating:
		return func(a, b domain.Product) bool {
			if a.AverageRating != b.AverageRating {
				return a.AverageRating > b.AverageRating
			}
			return byName(a, b)
		}
	case domain.SortName:
		if f.Descending {
			return func(a, b domain.Product) bool { return byName(b, a) }
		}
	}
	return byName
}

func (s *Store) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]domain.Product, 0)
	for _, p := range s.products {
		if matchesFilter(p, filter) {
			matched = append(matched, s.decorate(p))
		}
	}
	less := productLess(filter)
	sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j]) })

	total := len(matched)
	if filter.Page.PerPage <= 0 {
		return matched, total, nil
	}
	start := filter.Page.Offset()
	if start >= total {
		return []domain.Product{}, total, nil
	}
	end := start + filter.Page.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := s.decorate(p)
	return &out, nil
}

func (s *Store) CreateProduct(_ context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[product.CategoryID]; !ok {
		return domain.NewValidationError("category_id", "category does not exist")
	}
	if product.Barcode != "" {
		for _, p := range s.products {
			if p.Barcode == product.Barcode {
				return domain.ErrDuplicate
			}
		}
	}
	now := s.now()
	product.ID = s.nextID()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = cloneProduct(product)
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if _, ok := s.categories[product.CategoryID]; !ok {
		return domain.NewValidationError("category_id", "category does not exist")
	}
	updated := cloneProduct(product)
	// stock only moves through AdjustStock and checkout
	updated.StockQuantity = existing.StockQuantity
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()
	s.products[product.ID] = updated
	product.StockQuantity = updated.StockQuantity
	product.UpdatedAt = updated.UpdatedAt
	return nil
}

// applyStock must be called with mu held.
func (s *Store) applyStock(change domain.StockChange) (*domain.InventoryLog, error) {
	p, ok := s.products[change.ProductID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := p.StockQuantity + change.Delta
	if next < 0 {
		return nil, domain.ErrInsufficientStock
	}
	log := domain.InventoryLog{
		ID:               s.nextID(),
		ProductID:        p.ID,
		ChangeType:       change.ChangeType,
		QuantityChange:   change.Delta,
		PreviousQuantity: p.StockQuantity,
		NewQuantity:      next,
		Reason:           change.Reason,
		CreatedBy:        change.CreatedBy,
		CreatedAt:        s.now(),
	}
	p.StockQuantity = next
	p.UpdatedAt = log.CreatedAt
	s.inventoryLogs = append(s.inventoryLogs, log)
	return &log, nil
}

func (s *Store) AdjustStock(_ context.Context, change domain.StockChange) (*domain.InventoryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyStock(change)
}

func (s *Store) ListInventoryLogs(_ context.Context, productID int64, limit int) ([]domain.InventoryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.InventoryLog, 0)
	for i := len(s.inventoryLogs) - 1; i >= 0; i-- {
		if s.inventoryLogs[i].ProductID != productID {
			continue
		}
		out = append(out, s.inventoryLogs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
