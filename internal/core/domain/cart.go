package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ID        int64
	UserID    int64
	ProductID int64
	Quantity  int
	AddedAt   time.Time
}

// CartLine is a cart row joined with the current product row.
type CartLine struct {
	Item    CartItem
	Product Product
}

func (l CartLine) Total() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Item.Quantity)))
}

type WishlistItem struct {
	ID        int64
	UserID    int64
	ProductID int64
	AddedAt   time.Time
}

type WishlistEntry struct {
	Item    WishlistItem
	Product Product
}
