package memory

import (
	"context"
	"sort"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

const maxCategorySuggestions = 5

func (s *Store) LogSearch(_ context.Context, entry domain.SearchLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.nextID()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	s.searches = append(s.searches, entry)
	return nil
}

func (s *Store) Suggest(_ context.Context, query string, limit int) ([]domain.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make([]*domain.Product, 0)
	for _, p := range s.products {
		if p.IsAvailable && containsFold(p.Name, query) {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	if len(products) > limit {
		products = products[:limit]
	}

	out := make([]domain.Suggestion, 0, limit)
	for _, p := range products {
		sug := domain.Suggestion{Type: domain.SuggestionProduct, Text: p.Name, ID: p.ID}
		if c, ok := s.categories[p.CategoryID]; ok {
			sug.Category = c.Name
		}
		out = append(out, sug)
	}

	cats := make([]*domain.Category, 0)
	for _, c := range s.categories {
		if c.IsActive && containsFold(c.Name, query) {
			cats = append(cats, c)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	for i, c := range cats {
		if i == maxCategorySuggestions {
			break
		}
		out = append(out, domain.Suggestion{Type: domain.SuggestionCategory, Text: c.Name, ID: c.ID})
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
