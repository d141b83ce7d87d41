package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

const couponColumns = `id, code, description, discount_type, discount_value, min_order_amount,
	max_discount_amount, usage_limit, used_count, is_active, valid_from, valid_until, created_at`

func scanCoupon(row rowScanner) (*domain.Coupon, error) {
	var (
		c          domain.Coupon
		limit      sql.NullInt64
		validUntil sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Code, &c.Description, &c.DiscountType, &c.DiscountValue,
		&c.MinOrderAmount, &c.MaxDiscountAmount, &limit, &c.UsedCount, &c.IsActive,
		&c.ValidFrom, &validUntil, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if limit.Valid {
		n := int(limit.Int64)
		c.UsageLimit = &n
	}
	c.ValidUntil = timePtr(validUntil)
	return &c, nil
}

func (m *MySQLAdapter) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = ?`,
		domain.NormalizeCouponCode(code))
	return scanCoupon(row)
}

func (m *MySQLAdapter) CreateCoupon(ctx context.Context, coupon *domain.Coupon) error {
	if coupon.CreatedAt.IsZero() {
		coupon.CreatedAt = m.now()
	}
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO coupons (code, description, discount_type, discount_value, min_order_amount,
			max_discount_amount, usage_limit, used_count, is_active, valid_from, valid_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		coupon.Code, coupon.Description, coupon.DiscountType, coupon.DiscountValue,
		coupon.MinOrderAmount, coupon.MaxDiscountAmount, coupon.UsageLimit, coupon.UsedCount,
		coupon.IsActive, coupon.ValidFrom, nullTime(coupon.ValidUntil), coupon.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert coupon: %w", err)
	}
	coupon.ID, err = res.LastInsertId()
	return err
}

func (m *MySQLAdapter) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Coupon, 0)
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
