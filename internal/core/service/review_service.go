package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/port"
)

const reviewsPerPage = 10

type ReviewService struct {
	reviews port.ReviewRepository
	catalog port.CatalogRepository
	orders  port.OrderRepository
	deps    Deps
}

func NewReviewService(reviews port.ReviewRepository, catalog port.CatalogRepository, orders port.OrderRepository, deps Deps) *ReviewService {
	return &ReviewService{reviews: reviews, catalog: catalog, orders: orders, deps: deps.withDefaults()}
}

type ReviewInput struct {
	UserID    int64
	ProductID int64
	Rating    int
	Title     string
	Comment   string
}

// Add stores one review per user and product. Reviews from users with a
// paid order containing the product are marked as verified purchases.
func (s *ReviewService) Add(ctx context.Context, in ReviewInput) (_ *domain.Review, err error) {
	defer s.deps.track("review.add")(&err)

	if in.Rating < domain.MinRating || in.Rating > domain.MaxRating {
		return nil, domain.Invalid("Rating must be between %d and %d", domain.MinRating, domain.MaxRating)
	}
	if _, err := s.catalog.GetProduct(ctx, in.ProductID); err != nil {
		return nil, fmt.Errorf("get product %d: %w", in.ProductID, err)
	}
	purchased, err := s.orders.HasPurchased(ctx, in.UserID, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("check purchase: %w", err)
	}

	r := &domain.Review{
		UserID:             in.UserID,
		ProductID:          in.ProductID,
		Rating:             in.Rating,
		Title:              strings.TrimSpace(in.Title),
		Comment:            strings.TrimSpace(in.Comment),
		IsVerifiedPurchase: purchased,
		CreatedAt:          s.deps.now(),
	}
	if err := s.reviews.CreateReview(ctx, r); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.Invalid("You have already reviewed this product")
		}
		return nil, fmt.Errorf("create review: %w", err)
	}
	return r, nil
}

func (s *ReviewService) List(ctx context.Context, productID int64, sort string, page, perPage int) ([]domain.Review, domain.Pagination, error) {
	order := domain.ReviewSort(sort)
	switch order {
	case domain.ReviewSortNewest, domain.ReviewSortOldest, domain.ReviewSortRatingHigh, domain.ReviewSortRatingLow:
	default:
		order = domain.ReviewSortNewest
	}
	p := domain.NewPage(page, perPage, reviewsPerPage)
	reviews, total, err := s.reviews.ListReviews(ctx, productID, order, p)
	if err != nil {
		return nil, domain.Pagination{}, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, domain.NewPagination(p, total), nil
}
