// Package pricing computes cart totals and coupon discounts. All amounts are
// decimal; tax and discount are rounded half-up to cents before the total is
// assembled, so total always equals subtotal + tax + delivery - discount.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

var (
	DefaultTaxRate               = decimal.RequireFromString("0.08")
	DefaultDeliveryFee           = decimal.RequireFromString("5.99")
	DefaultFreeDeliveryThreshold = decimal.NewFromInt(50)
)

const centPlaces = 2

type Engine struct {
	TaxRate               decimal.Decimal
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
}

func DefaultEngine() Engine {
	return Engine{
		TaxRate:               DefaultTaxRate,
		DeliveryFee:           DefaultDeliveryFee,
		FreeDeliveryThreshold: DefaultFreeDeliveryThreshold,
	}
}

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Breakdown struct {
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Delivery  decimal.Decimal
	Discount  decimal.Decimal
	Total     decimal.Decimal
	ItemCount int
}

func LinesFromCart(lines []domain.CartLine) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, Line{UnitPrice: l.Product.Price, Quantity: l.Item.Quantity})
	}
	return out
}

func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Quote prices the lines and applies an already computed discount, clamped
// to [0, subtotal].
func (e Engine) Quote(lines []Line, discount decimal.Decimal) Breakdown {
	subtotal := Subtotal(lines)
	tax := subtotal.Mul(e.TaxRate).Round(centPlaces)

	delivery := decimal.Zero
	if len(lines) > 0 && subtotal.LessThan(e.FreeDeliveryThreshold) {
		delivery = e.DeliveryFee
	}

	discount = clamp(discount.Round(centPlaces), decimal.Zero, subtotal)

	return Breakdown{
		Subtotal:  subtotal,
		Tax:       tax,
		Delivery:  delivery,
		Discount:  discount,
		Total:     subtotal.Add(tax).Add(delivery).Sub(discount),
		ItemCount: len(lines),
	}
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
