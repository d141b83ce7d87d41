package storage

import (
	"context"
	"fmt"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

func (m *MySQLAdapter) ListCart(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.added_at, `+productColumns+`
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id`+productJoins+`
		WHERE ci.user_id = ?
		ORDER BY ci.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.CartLine, 0)
	for rows.Next() {
		var l domain.CartLine
		if err := scanProduct(rows, &l.Product,
			&l.Item.ID, &l.Item.UserID, &l.Item.ProductID, &l.Item.Quantity, &l.Item.AddedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (m *MySQLAdapter) GetCartItem(ctx context.Context, userID, productID int64) (*domain.CartItem, error) {
	var item domain.CartItem
	err := m.db.QueryRowContext(ctx, `
		SELECT id, user_id, product_id, quantity, added_at
		FROM cart_items WHERE user_id = ? AND product_id = ?`, userID, productID).
		Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.AddedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (m *MySQLAdapter) SaveCartItem(ctx context.Context, item *domain.CartItem) error {
	if item.AddedAt.IsZero() {
		item.AddedAt = m.now()
	}
	// LAST_INSERT_ID(id) makes the existing row's id visible on update
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity, added_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity), id = LAST_INSERT_ID(id)`,
		item.UserID, item.ProductID, item.Quantity, item.AddedAt)
	if err != nil {
		return fmt.Errorf("save cart item: %w", err)
	}
	item.ID, err = res.LastInsertId()
	return err
}

func (m *MySQLAdapter) DeleteCartItem(ctx context.Context, userID, productID int64) error {
	res, err := m.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = ? AND product_id = ?`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return checkAffected(res, domain.ErrNotFound)
}

func (m *MySQLAdapter) ListWishlist(ctx context.Context, userID int64) ([]domain.WishlistEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT w.id, w.user_id, w.product_id, w.added_at, `+productColumns+`
		FROM wishlist_items w
		JOIN products p ON p.id = w.product_id`+productJoins+`
		WHERE w.user_id = ?
		ORDER BY w.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	out := make([]domain.WishlistEntry, 0)
	for rows.Next() {
		var e domain.WishlistEntry
		if err := scanProduct(rows, &e.Product,
			&e.Item.ID, &e.Item.UserID, &e.Item.ProductID, &e.Item.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) AddWishlistItem(ctx context.Context, item *domain.WishlistItem) error {
	if item.AddedAt.IsZero() {
		item.AddedAt = m.now()
	}
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO wishlist_items (user_id, product_id, added_at) VALUES (?, ?, ?)`,
		item.UserID, item.ProductID, item.AddedAt)
	if err != nil {
		if isDuplicate(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("add wishlist item: %w", err)
	}
	item.ID, err = res.LastInsertId()
	return err
}

func (m *MySQLAdapter) DeleteWishlistItem(ctx context.Context, userID, productID int64) error {
	res, err := m.db.ExecContext(ctx, `DELETE FROM wishlist_items WHERE user_id = ? AND product_id = ?`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("delete wishlist item: %w", err)
	}
	return checkAffected(res, domain.ErrNotFound)
}
