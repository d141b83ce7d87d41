package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

func (s *Store) CreateOrder(_ context.Context, order *domain.Order) ([]domain.InventoryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// check everything first so a failure leaves no partial writes
	for _, item := range order.Items {
		p, ok := s.products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, domain.ErrNotFound)
		}
		if p.StockQuantity < item.Quantity {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, domain.ErrInsufficientStock)
		}
		row, ok := s.cart[pairKey{order.UserID, item.ProductID}]
		if !ok || row.Quantity != item.Quantity {
			return nil, domain.ErrCartChanged
		}
	}
	var coupon *domain.Coupon
	if order.CouponID != nil {
		c, ok := s.coupons[*order.CouponID]
		if !ok {
			return nil, fmt.Errorf("coupon %d: %w", *order.CouponID, domain.ErrNotFound)
		}
		if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
			return nil, domain.ErrCouponExhausted
		}
		coupon = c
	}

	now := s.now()
	order.ID = s.nextID()
	order.CreatedAt = now
	order.UpdatedAt = now

	logs := make([]domain.InventoryLog, 0, len(order.Items))
	userID := order.UserID
	for i := range order.Items {
		item := &order.Items[i]
		item.ID = s.nextID()
		item.OrderID = order.ID

		log, err := s.applyStock(domain.StockChange{
			ProductID:  item.ProductID,
			Delta:      -item.Quantity,
			ChangeType: domain.ChangeSale,
			Reason:     "Order #" + order.OrderNumber,
			CreatedBy:  &userID,
		})
		if err != nil {
			// unreachable after the checks above
			return nil, err
		}
		logs = append(logs, *log)
		delete(s.cart, pairKey{order.UserID, item.ProductID})
	}
	if coupon != nil {
		coupon.UsedCount++
	}

	s.orders[order.ID] = cloneOrder(order)
	return logs, nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) ListOrders(_ context.Context, userID int64, page domain.Page) ([]domain.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]domain.Order, 0)
	for _, o := range s.orders {
		if o.UserID == userID {
			all = append(all, *cloneOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := len(all)
	start := page.Offset()
	if start >= total {
		return []domain.Order{}, total, nil
	}
	end := start + page.PerPage
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id int64, from, to domain.OrderStatus, trackingNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	if o.Status != from {
		return domain.ErrInvalidTransition
	}
	if to == domain.OrderStatusCancelled {
		for _, item := range o.Items {
			if _, err := s.applyStock(domain.StockChange{
				ProductID:  item.ProductID,
				Delta:      item.Quantity,
				ChangeType: domain.ChangeAdjustment,
				Reason:     "Order #" + o.OrderNumber + " cancelled",
			}); err != nil {
				return err
			}
		}
		if o.PaymentStatus == domain.PaymentStatusPaid {
			o.PaymentStatus = domain.PaymentStatusRefunded
		}
	}
	o.Status = to
	if trackingNumber != "" {
		o.TrackingNumber = trackingNumber
	}
	o.UpdatedAt = s.now()
	return nil
}

func (s *Store) HasPurchased(_ context.Context, userID, productID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.UserID != userID || o.PaymentStatus != domain.PaymentStatusPaid {
			continue
		}
		for _, item := range o.Items {
			if item.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}
