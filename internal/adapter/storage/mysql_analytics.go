package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

const (
	topProductsLimit = 10
	topSearchesLimit = 10
	lowStockSample   = 5
)

func (m *MySQLAdapter) Dashboard(ctx context.Context, since time.Time) (*domain.Dashboard, error) {
	d := &domain.Dashboard{TotalRevenue: decimal.Zero}

	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN payment_status = ? THEN total_amount ELSE 0 END), 0),
			COUNT(DISTINCT user_id)
		FROM orders WHERE created_at >= ?`, domain.PaymentStatusPaid, since).
		Scan(&d.TotalOrders, &d.TotalRevenue, &d.ActiveUsers)
	if err != nil {
		return nil, fmt.Errorf("order totals: %w", err)
	}
	if d.TotalOrders > 0 {
		d.AverageOrderValue = d.TotalRevenue.Div(decimal.NewFromInt(int64(d.TotalOrders))).Round(2)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT oi.product_id, p.name, SUM(oi.quantity) AS sold
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE o.created_at >= ? AND o.payment_status = ?
		GROUP BY oi.product_id, p.name
		ORDER BY sold DESC, oi.product_id
		LIMIT ?`, since, domain.PaymentStatusPaid, topProductsLimit)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	for rows.Next() {
		var ps domain.ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.Name, &ps.QuantitySold); err != nil {
			rows.Close()
			return nil, err
		}
		d.TopProducts = append(d.TopProducts, ps)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = m.db.QueryContext(ctx, `
		SELECT c.id, c.name, SUM(oi.total) AS revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		JOIN categories c ON c.id = p.category_id
		WHERE o.created_at >= ? AND o.payment_status = ?
		GROUP BY c.id, c.name
		ORDER BY revenue DESC`, since, domain.PaymentStatusPaid)
	if err != nil {
		return nil, fmt.Errorf("category sales: %w", err)
	}
	for rows.Next() {
		var cs domain.CategorySales
		if err := rows.Scan(&cs.CategoryID, &cs.Name, &cs.Revenue); err != nil {
			rows.Close()
			return nil, err
		}
		d.CategorySales = append(d.CategorySales, cs)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE created_at >= ?`, since).
		Scan(&d.NewUsers); err != nil {
		return nil, fmt.Errorf("new users: %w", err)
	}

	rows, err = m.db.QueryContext(ctx, `
		SELECT query, COUNT(*) AS n FROM search_logs
		WHERE created_at >= ?
		GROUP BY query
		ORDER BY n DESC, query
		LIMIT ?`, since, topSearchesLimit)
	if err != nil {
		return nil, fmt.Errorf("top searches: %w", err)
	}
	for rows.Next() {
		var sc domain.SearchCount
		if err := rows.Scan(&sc.Query, &sc.Count); err != nil {
			rows.Close()
			return nil, err
		}
		d.TopSearches = append(d.TopSearches, sc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const lowStock = `p.is_available = TRUE AND p.stock_quantity <= p.min_stock_level`
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products p WHERE `+lowStock).
		Scan(&d.LowStockCount); err != nil {
		return nil, fmt.Errorf("low stock count: %w", err)
	}
	rows, err = m.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products p`+productJoins+
		` WHERE `+lowStock+` ORDER BY p.stock_quantity, p.id LIMIT ?`, lowStockSample)
	if err != nil {
		return nil, fmt.Errorf("low stock products: %w", err)
	}
	if d.LowStockProducts, err = scanProducts(rows); err != nil {
		return nil, err
	}
	return d, nil
}
