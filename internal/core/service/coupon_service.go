package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/core/pricing"
	"github.com/rl1809/grocery-store/internal/port"
)

type CouponService struct {
	coupons port.CouponRepository
	cart    *CartService
	deps    Deps
}

func NewCouponService(coupons port.CouponRepository, cart *CartService, deps Deps) *CouponService {
	return &CouponService{coupons: coupons, cart: cart, deps: deps.withDefaults()}
}

type CouponValidation struct {
	Valid          bool
	Message        string
	DiscountAmount decimal.Decimal
	Coupon         *domain.Coupon
}

// Validate evaluates code against cartTotal, or against the user's current
// cart subtotal when cartTotal is nil.
func (s *CouponService) Validate(ctx context.Context, userID int64, code string, cartTotal *decimal.Decimal) (_ *CouponValidation, err error) {
	defer s.deps.track("coupon.validate")(&err)

	code = domain.NormalizeCouponCode(code)
	if code == "" {
		return nil, domain.NewValidationError("coupon_code", "is required")
	}

	var total decimal.Decimal
	if cartTotal != nil {
		total = *cartTotal
	} else {
		total, err = s.cart.Subtotal(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	c, err := s.coupons.GetCouponByCode(ctx, code)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	res := pricing.EvaluateCoupon(c, total, s.deps.now())
	out := &CouponValidation{Valid: res.Valid, Message: res.Message, DiscountAmount: res.Discount}
	if res.Valid {
		out.Coupon = c
	}
	return out, nil
}

type CouponInput struct {
	Code              string
	Description       string
	DiscountType      domain.DiscountType
	DiscountValue     decimal.Decimal
	MinOrderAmount    decimal.Decimal
	MaxDiscountAmount decimal.NullDecimal
	UsageLimit        *int
	ValidFrom         *time.Time
	ValidUntil        *time.Time
}

var maxPercentage = decimal.NewFromInt(100)

func (in CouponInput) validate() error {
	if domain.NormalizeCouponCode(in.Code) == "" {
		return domain.NewValidationError("code", "is required")
	}
	switch in.DiscountType {
	case domain.DiscountPercentage:
		if !in.DiscountValue.IsPositive() || in.DiscountValue.GreaterThan(maxPercentage) {
			return domain.NewValidationError("discount_value", "percentage must be in (0, 100]")
		}
	case domain.DiscountFixed:
		if !in.DiscountValue.IsPositive() {
			return domain.NewValidationError("discount_value", "must be greater than zero")
		}
	default:
		return domain.NewValidationError("discount_type", "must be percentage or fixed")
	}
	if in.MinOrderAmount.IsNegative() {
		return domain.NewValidationError("min_order_amount", "must not be negative")
	}
	if in.MaxDiscountAmount.Valid && !in.MaxDiscountAmount.Decimal.IsPositive() {
		return domain.NewValidationError("max_discount_amount", "must be greater than zero")
	}
	if in.UsageLimit != nil && *in.UsageLimit < 1 {
		return domain.NewValidationError("usage_limit", "must be at least 1")
	}
	if in.ValidFrom != nil && in.ValidUntil != nil && in.ValidUntil.Before(*in.ValidFrom) {
		return domain.NewValidationError("valid_until", "must be after valid_from")
	}
	return nil
}

func (s *CouponService) Create(ctx context.Context, in CouponInput) (*domain.Coupon, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c := &domain.Coupon{
		Code:              domain.NormalizeCouponCode(in.Code),
		Description:       in.Description,
		DiscountType:      in.DiscountType,
		DiscountValue:     in.DiscountValue,
		MinOrderAmount:    in.MinOrderAmount,
		MaxDiscountAmount: in.MaxDiscountAmount,
		UsageLimit:        in.UsageLimit,
		IsActive:          true,
		ValidFrom:         s.deps.now(),
		ValidUntil:        in.ValidUntil,
		CreatedAt:         s.deps.now(),
	}
	if in.ValidFrom != nil {
		c.ValidFrom = in.ValidFrom.UTC()
	}
	if err := s.coupons.CreateCoupon(ctx, c); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.Invalid("Coupon code already exists")
		}
		return nil, fmt.Errorf("create coupon: %w", err)
	}
	s.deps.logger(ctx).Info("coupon_created", zap.String("code", c.Code))
	return c, nil
}

func (s *CouponService) List(ctx context.Context) ([]domain.Coupon, error) {
	coupons, err := s.coupons.ListCoupons(ctx)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	return coupons, nil
}
