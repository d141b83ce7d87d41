package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

const orderColumns = `id, order_number, user_id, subtotal, tax_amount, delivery_fee, discount_amount,
	total_amount, coupon_id, coupon_code, status, payment_status, payment_method, payment_token,
	delivery_address, delivery_date, delivery_time_slot, special_instructions, tracking_number,
	created_at, updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o            domain.Order
		couponID     sql.NullInt64
		deliveryDate sql.NullTime
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Subtotal, &o.TaxAmount, &o.DeliveryFee,
		&o.DiscountAmount, &o.TotalAmount, &couponID, &o.CouponCode, &o.Status, &o.PaymentStatus,
		&o.PaymentMethod, &o.PaymentToken, &o.DeliveryAddress, &deliveryDate, &o.DeliveryTimeSlot,
		&o.SpecialInstructions, &o.TrackingNumber, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	o.CouponID = int64Ptr(couponID)
	o.DeliveryDate = timePtr(deliveryDate)
	return &o, nil
}

// CreateOrder runs the whole checkout write in one transaction. Product rows
// are locked in id order so concurrent checkouts cannot deadlock each other.
func (m *MySQLAdapter) CreateOrder(ctx context.Context, order *domain.Order) ([]domain.InventoryLog, error) {
	now := m.now()
	var logs []domain.InventoryLog

	err := m.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO orders (order_number, user_id, subtotal, tax_amount, delivery_fee,
				discount_amount, total_amount, coupon_id, coupon_code, status, payment_status,
				payment_method, payment_token, delivery_address, delivery_date, delivery_time_slot,
				special_instructions, tracking_number, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			order.OrderNumber, order.UserID, order.Subtotal, order.TaxAmount, order.DeliveryFee,
			order.DiscountAmount, order.TotalAmount, nullInt64(order.CouponID), order.CouponCode,
			order.Status, order.PaymentStatus, order.PaymentMethod, order.PaymentToken,
			order.DeliveryAddress, nullTime(order.DeliveryDate), order.DeliveryTimeSlot,
			order.SpecialInstructions, order.TrackingNumber, now, now)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		orderID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		idx := make([]int, len(order.Items))
		for i := range idx {
			idx[i] = i
		}
		sort.Slice(idx, func(a, b int) bool {
			return order.Items[idx[a]].ProductID < order.Items[idx[b]].ProductID
		})

		userID := order.UserID
		logs = make([]domain.InventoryLog, 0, len(order.Items))
		for _, i := range idx {
			item := &order.Items[i]
			log, err := adjustStockTx(ctx, tx, domain.StockChange{
				ProductID:  item.ProductID,
				Delta:      -item.Quantity,
				ChangeType: domain.ChangeSale,
				Reason:     "Order #" + order.OrderNumber,
				CreatedBy:  &userID,
			}, now)
			if err != nil {
				return fmt.Errorf("product %d: %w", item.ProductID, err)
			}
			logs = append(logs, *log)

			res, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (order_id, product_id, product_name, quantity, price, total)
				VALUES (?, ?, ?, ?, ?, ?)`,
				orderID, item.ProductID, item.ProductName, item.Quantity, item.Price, item.Total)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			if item.ID, err = res.LastInsertId(); err != nil {
				return err
			}
			item.OrderID = orderID

			res, err = tx.ExecContext(ctx, `
				DELETE FROM cart_items WHERE user_id = ? AND product_id = ? AND quantity = ?`,
				order.UserID, item.ProductID, item.Quantity)
			if err != nil {
				return fmt.Errorf("delete cart item: %w", err)
			}
			if err := checkAffected(res, domain.ErrCartChanged); err != nil {
				return err
			}
		}

		if order.CouponID != nil {
			res, err := tx.ExecContext(ctx, `
				UPDATE coupons SET used_count = used_count + 1
				WHERE id = ? AND (usage_limit IS NULL OR used_count < usage_limit)`, *order.CouponID)
			if err != nil {
				return fmt.Errorf("redeem coupon: %w", err)
			}
			if err := checkAffected(res, domain.ErrCouponExhausted); err != nil {
				return err
			}
		}

		order.ID = orderID
		return nil
	})
	if err != nil {
		for i := range order.Items {
			order.Items[i].ID = 0
			order.Items[i].OrderID = 0
		}
		return nil, err
	}
	order.CreatedAt = now
	order.UpdatedAt = now
	return logs, nil
}

func (m *MySQLAdapter) loadItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[int64]*domain.Order, len(orders))
	args := make([]any, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		o.Items = make([]domain.OrderItem, 0)
		args = append(args, o.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(orders)), ",")

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, price, total
		FROM order_items WHERE order_id IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity,
			&it.Price, &it.Total); err != nil {
			return err
		}
		if o, ok := byID[it.OrderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(m.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := m.loadItems(ctx, []*domain.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, userID int64, page domain.Page) ([]domain.Order, int, error) {
	var total int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = ?`, userID).
		Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	ptrs := make([]*domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		ptrs = append(ptrs, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := m.loadItems(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	out := make([]domain.Order, len(ptrs))
	for i, o := range ptrs {
		out[i] = *o
	}
	return out, total, nil
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, id int64, from, to domain.OrderStatus, trackingNumber string) error {
	now := m.now()
	return m.withTx(ctx, func(tx *sql.Tx) error {
		var (
			current domain.OrderStatus
			number  string
		)
		err := tx.QueryRowContext(ctx, `SELECT status, order_number FROM orders WHERE id = ? FOR UPDATE`, id).
			Scan(&current, &number)
		if err != nil {
			return notFound(err)
		}
		if current != from {
			return domain.ErrInvalidTransition
		}

		if to == domain.OrderStatusCancelled {
			rows, err := tx.QueryContext(ctx, `SELECT product_id, quantity FROM order_items
				WHERE order_id = ? ORDER BY product_id`, id)
			if err != nil {
				return fmt.Errorf("list order items: %w", err)
			}
			type line struct {
				productID int64
				quantity  int
			}
			var lines []line
			for rows.Next() {
				var l line
				if err := rows.Scan(&l.productID, &l.quantity); err != nil {
					rows.Close()
					return err
				}
				lines = append(lines, l)
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return err
			}
			for _, l := range lines {
				if _, err := adjustStockTx(ctx, tx, domain.StockChange{
					ProductID:  l.productID,
					Delta:      l.quantity,
					ChangeType: domain.ChangeAdjustment,
					Reason:     "Order #" + number + " cancelled",
				}, now); err != nil {
					return err
				}
			}
		}

		paymentStatus := "payment_status"
		var args []any
		if to == domain.OrderStatusCancelled {
			paymentStatus = "IF(payment_status = ?, ?, payment_status)"
			args = append(args, domain.PaymentStatusPaid, domain.PaymentStatusRefunded)
		}
		args = append(args, to, now, trackingNumber, trackingNumber, id)
		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET payment_status = `+paymentStatus+`, status = ?, updated_at = ?,
				tracking_number = IF(? = '', tracking_number, ?)
			WHERE id = ?`, args...)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		return nil
	})
}

func (m *MySQLAdapter) HasPurchased(ctx context.Context, userID, productID int64) (bool, error) {
	var ok bool
	err := m.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM order_items oi JOIN orders o ON o.id = oi.order_id
			WHERE o.user_id = ? AND oi.product_id = ? AND o.payment_status = ?
		)`, userID, productID, domain.PaymentStatusPaid).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("has purchased: %w", err)
	}
	return ok, nil
}
