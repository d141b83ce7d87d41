package pricing

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, money(want).StringFixed(2), got.StringFixed(2))
}

func TestQuote_SmallCartPaysDelivery(t *testing.T) {
	e := DefaultEngine()
	b := e.Quote([]Line{
		{UnitPrice: money("2.50"), Quantity: 4},
		{UnitPrice: money("3.99"), Quantity: 1},
	}, decimal.Zero)

	assertMoney(t, "13.99", b.Subtotal)
	assertMoney(t, "1.12", b.Tax)
	assertMoney(t, "5.99", b.Delivery)
	assertMoney(t, "0", b.Discount)
	assertMoney(t, "21.10", b.Total)
	assert.Equal(t, 2, b.ItemCount)
}

func TestQuote_FreeDeliveryAtThreshold(t *testing.T) {
	e := DefaultEngine()

	b := e.Quote([]Line{{UnitPrice: money("50.00"), Quantity: 1}}, decimal.Zero)
	assertMoney(t, "0", b.Delivery)
	assertMoney(t, "54.00", b.Total)

	b = e.Quote([]Line{{UnitPrice: money("49.99"), Quantity: 1}}, decimal.Zero)
	assertMoney(t, "5.99", b.Delivery)
}

func TestQuote_EmptyCart(t *testing.T) {
	b := DefaultEngine().Quote(nil, decimal.Zero)
	assert.True(t, b.Total.IsZero())
	assert.True(t, b.Delivery.IsZero())
	assert.Zero(t, b.ItemCount)
}

func TestQuote_DiscountClampedToSubtotal(t *testing.T) {
	b := DefaultEngine().Quote([]Line{{UnitPrice: money("10.00"), Quantity: 1}}, money("25"))
	assertMoney(t, "10.00", b.Discount)
	assertMoney(t, "6.79", b.Total) // 10 + 0.80 + 5.99 - 10

	b = DefaultEngine().Quote([]Line{{UnitPrice: money("10.00"), Quantity: 1}}, money("-3"))
	assert.True(t, b.Discount.IsZero())
}

func TestQuote_TotalIdentityHoldsForRandomCarts(t *testing.T) {
	e := DefaultEngine()
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		n := r.Intn(6)
		lines := make([]Line, 0, n)
		for j := 0; j < n; j++ {
			cents := int64(r.Intn(5000) + 1)
			lines = append(lines, Line{UnitPrice: decimal.New(cents, -2), Quantity: r.Intn(5) + 1})
		}
		discount := decimal.New(int64(r.Intn(8000)), -2)

		b := e.Quote(lines, discount)

		want := b.Subtotal.Add(b.Tax).Add(b.Delivery).Sub(b.Discount)
		require.True(t, want.Equal(b.Total), "cart %d: %s != %s", i, want, b.Total)
		require.True(t, b.Discount.LessThanOrEqual(b.Subtotal))
		require.False(t, b.Total.IsNegative())
		require.True(t, b.Tax.Equal(b.Tax.Round(2)))
	}
}
