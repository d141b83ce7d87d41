package memory

import (
	"context"
	"sort"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

func (s *Store) GetCouponByCode(_ context.Context, code string) (*domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code = domain.NormalizeCouponCode(code)
	for _, c := range s.coupons {
		if c.Code == code {
			out := *c
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) CreateCoupon(_ context.Context, coupon *domain.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.coupons {
		if c.Code == coupon.Code {
			return domain.ErrDuplicate
		}
	}
	coupon.ID = s.nextID()
	if coupon.CreatedAt.IsZero() {
		coupon.CreatedAt = s.now()
	}
	stored := *coupon
	s.coupons[stored.ID] = &stored
	return nil
}

func (s *Store) ListCoupons(_ context.Context) ([]domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
