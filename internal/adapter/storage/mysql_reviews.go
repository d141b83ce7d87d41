package storage

import (
	"context"
	"fmt"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

func reviewOrder(sort domain.ReviewSort) string {
	switch sort {
	case domain.ReviewSortOldest:
		return "rv.created_at, rv.id"
	case domain.ReviewSortRatingHigh:
		return "rv.rating DESC, rv.created_at DESC, rv.id DESC"
	case domain.ReviewSortRatingLow:
		return "rv.rating, rv.created_at DESC, rv.id DESC"
	}
	return "rv.created_at DESC, rv.id DESC"
}

func (m *MySQLAdapter) CreateReview(ctx context.Context, review *domain.Review) error {
	if _, err := m.GetProduct(ctx, review.ProductID); err != nil {
		return err
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = m.now()
	}
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO reviews (user_id, product_id, rating, title, comment, is_verified_purchase, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		review.UserID, review.ProductID, review.Rating, review.Title, review.Comment,
		review.IsVerifiedPurchase, review.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert review: %w", err)
	}
	review.ID, err = res.LastInsertId()
	return err
}

func (m *MySQLAdapter) ListReviews(ctx context.Context, productID int64, sort domain.ReviewSort, page domain.Page) ([]domain.Review, int, error) {
	var total int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews WHERE product_id = ?`, productID).
		Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT rv.id, rv.user_id, rv.product_id, rv.rating, rv.title, rv.comment,
			rv.is_verified_purchase, rv.created_at, u.first_name, u.last_name
		FROM reviews rv JOIN users u ON u.id = rv.user_id
		WHERE rv.product_id = ?
		ORDER BY `+reviewOrder(sort)+`
		LIMIT ? OFFSET ?`, productID, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Review, 0)
	for rows.Next() {
		var r domain.Review
		if err := rows.Scan(&r.ID, &r.UserID, &r.ProductID, &r.Rating, &r.Title, &r.Comment,
			&r.IsVerifiedPurchase, &r.CreatedAt, &r.FirstName, &r.LastName); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}
