package domain

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCard || m == PaymentMethodCashOnDelivery
}

type Order struct {
	ID                  int64
	OrderNumber         string
	UserID              int64
	Subtotal            decimal.Decimal
	TaxAmount           decimal.Decimal
	DeliveryFee         decimal.Decimal
	DiscountAmount      decimal.Decimal
	TotalAmount         decimal.Decimal
	CouponID            *int64
	CouponCode          string
	Status              OrderStatus
	PaymentStatus       PaymentStatus
	PaymentMethod       PaymentMethod
	PaymentToken        string
	DeliveryAddress     string
	DeliveryDate        *time.Time
	DeliveryTimeSlot    string
	SpecialInstructions string
	TrackingNumber      string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Items               []OrderItem
}

// OrderItem freezes the unit price at the moment of purchase.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int
	Price       decimal.Decimal
	Total       decimal.Decimal
}

// NewOrderNumber returns ORD + YYYYMMDD + 8 uppercase hex characters.
func NewOrderNumber(now time.Time) string {
	id := uuid.New()
	return "ORD" + now.Format("20060102") + strings.ToUpper(hex.EncodeToString(id[:4]))
}
