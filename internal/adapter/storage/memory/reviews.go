package memory

import (
	"context"
	"sort"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

func (s *Store) CreateReview(_ context.Context, review *domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[review.ProductID]; !ok {
		return domain.ErrNotFound
	}
	for _, r := range s.reviews {
		if r.UserID == review.UserID && r.ProductID == review.ProductID {
			return domain.ErrDuplicate
		}
	}
	review.ID = s.nextID()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = s.now()
	}
	stored := *review
	s.reviews[stored.ID] = &stored
	return nil
}

func (s *Store) ListReviews(_ context.Context, productID int64, order domain.ReviewSort, page domain.Page) ([]domain.Review, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]domain.Review, 0)
	for _, r := range s.reviews {
		if r.ProductID != productID {
			continue
		}
		out := *r
		if u, ok := s.users[r.UserID]; ok {
			out.FirstName = u.FirstName
			out.LastName = u.LastName
		}
		all = append(all, out)
	}

	newest := func(a, b domain.Review) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		switch order {
		case domain.ReviewSortOldest:
			return newest(b, a)
		case domain.ReviewSortRatingHigh:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
		case domain.ReviewSortRatingLow:
			if a.Rating != b.Rating {
				return a.Rating < b.Rating
			}
		}
		return newest(a, b)
	})

	total := len(all)
	start := page.Offset()
	if start >= total {
		return []domain.Review{}, total, nil
	}
	end := start + page.PerPage
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}
