package pricing

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func percentCoupon(value string, max string) *domain.Coupon {
	c := &domain.Coupon{
		Code:          "SAVE",
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: money(value),
		IsActive:      true,
		ValidFrom:     now.Add(-24 * time.Hour),
	}
	if max != "" {
		c.MaxDiscountAmount = decimal.NewNullDecimal(money(max))
	}
	return c
}

func TestEvaluateCoupon_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *domain.Coupon)
		total  string
		want   string
	}{
		{"inactive", func(c *domain.Coupon) { c.IsActive = false }, "100", MsgInvalidCoupon},
		{"not started", func(c *domain.Coupon) { c.ValidFrom = now.Add(time.Hour) }, "100", MsgNotYetValid},
		{"expired", func(c *domain.Coupon) { c.ValidUntil = timePtr(now.Add(-time.Second)) }, "100", MsgExpired},
		{"over limit", func(c *domain.Coupon) { c.UsageLimit = intPtr(3); c.UsedCount = 3 }, "100", MsgUsageExhausted},
		{"below minimum", func(c *domain.Coupon) { c.MinOrderAmount = money("30") }, "29.99", "Minimum order amount is $30.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := percentCoupon("10", "")
			tt.mutate(c)

			res := EvaluateCoupon(c, money(tt.total), now)

			assert.False(t, res.Valid)
			assert.Equal(t, tt.want, res.Message)
			assert.True(t, res.Discount.IsZero())
		})
	}
}

func TestEvaluateCoupon_NilCoupon(t *testing.T) {
	res := EvaluateCoupon(nil, money("10"), now)
	assert.False(t, res.Valid)
	assert.Equal(t, MsgInvalidCoupon, res.Message)
}

func TestEvaluateCoupon_ValidWithinWindow(t *testing.T) {
	c := percentCoupon("10", "")
	c.ValidUntil = timePtr(now.Add(time.Hour))
	c.UsageLimit = intPtr(5)
	c.UsedCount = 4

	res := EvaluateCoupon(c, money("80"), now)

	require.True(t, res.Valid)
	assertMoney(t, "8.00", res.Discount)
}

func TestDiscount_PercentageCappedByMax(t *testing.T) {
	c := percentCoupon("20", "15")
	assertMoney(t, "15.00", Discount(c, money("200")))
	assertMoney(t, "10.00", Discount(c, money("50")))
}

func TestDiscount_FixedCappedAtCartTotal(t *testing.T) {
	c := &domain.Coupon{DiscountType: domain.DiscountFixed, DiscountValue: money("25"), IsActive: true}
	assertMoney(t, "12.40", Discount(c, money("12.40")))
	assertMoney(t, "25.00", Discount(c, money("80")))
	assert.True(t, Discount(c, decimal.Zero).IsZero())
}

func TestDiscount_NeverExceedsCaps(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		total := decimal.New(int64(r.Intn(20000)), -2)
		c := percentCoupon(decimal.NewFromInt(int64(r.Intn(100)+1)).String(), "")
		if r.Intn(2) == 0 {
			c.MaxDiscountAmount = decimal.NewNullDecimal(decimal.New(int64(r.Intn(3000)), -2))
		}
		if r.Intn(3) == 0 {
			c.DiscountType = domain.DiscountFixed
			c.DiscountValue = decimal.New(int64(r.Intn(10000)), -2)
		}

		d := Discount(c, total)

		require.True(t, d.LessThanOrEqual(total), "discount %s > total %s", d, total)
		if c.DiscountType == domain.DiscountPercentage && c.MaxDiscountAmount.Valid {
			require.True(t, d.LessThanOrEqual(c.MaxDiscountAmount.Decimal))
		}
		require.False(t, d.IsNegative())
	}
}
