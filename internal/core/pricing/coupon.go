package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

const (
	MsgInvalidCoupon  = "Invalid coupon code"
	MsgNotYetValid    = "Coupon is not yet valid"
	MsgExpired        = "Coupon has expired"
	MsgUsageExhausted = "Coupon usage limit reached"
)

var hundred = decimal.NewFromInt(100)

type CouponResult struct {
	Valid    bool
	Message  string
	Discount decimal.Decimal
}

// EvaluateCoupon checks c against cartTotal at time now. The first failing
// rule decides the message.
func EvaluateCoupon(c *domain.Coupon, cartTotal decimal.Decimal, now time.Time) CouponResult {
	switch {
	case c == nil || !c.IsActive:
		return CouponResult{Message: MsgInvalidCoupon}
	case !c.ValidFrom.IsZero() && now.Before(c.ValidFrom):
		return CouponResult{Message: MsgNotYetValid}
	case c.ValidUntil != nil && c.ValidUntil.Before(now):
		return CouponResult{Message: MsgExpired}
	case c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit:
		return CouponResult{Message: MsgUsageExhausted}
	case cartTotal.LessThan(c.MinOrderAmount):
		return CouponResult{Message: fmt.Sprintf("Minimum order amount is $%s", c.MinOrderAmount.StringFixed(2))}
	}
	return CouponResult{Valid: true, Discount: Discount(c, cartTotal)}
}

// Discount computes the coupon's discount for cartTotal without checking
// validity. The result never exceeds cartTotal or max_discount_amount.
func Discount(c *domain.Coupon, cartTotal decimal.Decimal) decimal.Decimal {
	if cartTotal.Sign() <= 0 {
		return decimal.Zero
	}
	var d decimal.Decimal
	switch c.DiscountType {
	case domain.DiscountPercentage:
		d = cartTotal.Mul(c.DiscountValue).Div(hundred).Round(centPlaces)
		if c.MaxDiscountAmount.Valid && d.GreaterThan(c.MaxDiscountAmount.Decimal) {
			d = c.MaxDiscountAmount.Decimal
		}
	default:
		d = c.DiscountValue
	}
	return clamp(d, decimal.Zero, cartTotal)
}
