package domain

import "time"

type ChangeType string

const (
	ChangeRestock    ChangeType = "restock"
	ChangeSale       ChangeType = "sale"
	ChangeAdjustment ChangeType = "adjustment"
	ChangeExpired    ChangeType = "expired"
)

func (c ChangeType) Valid() bool {
	switch c {
	case ChangeRestock, ChangeSale, ChangeAdjustment, ChangeExpired:
		return true
	}
	return false
}

// StockChange is a signed delta applied to one product.
type StockChange struct {
	ProductID  int64
	Delta      int
	ChangeType ChangeType
	Reason     string
	CreatedBy  *int64
}

type InventoryLog struct {
	ID               int64
	ProductID        int64
	ChangeType       ChangeType
	QuantityChange   int
	PreviousQuantity int
	NewQuantity      int
	Reason           string
	CreatedBy        *int64
	CreatedAt        time.Time
}
