package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

const productColumns = `p.id, p.name, p.description, p.price, p.original_price, p.category_id, c.name,
	p.image_url, p.stock_quantity, p.min_stock_level, p.is_available, p.is_featured, p.weight,
	p.unit, COALESCE(p.barcode, ''), p.brand, p.created_at, p.updated_at,
	COALESCE(r.avg_rating, 0), COALESCE(r.review_count, 0)`

const productJoins = `
	JOIN categories c ON c.id = p.category_id
	LEFT JOIN (
		SELECT product_id, AVG(rating) AS avg_rating, COUNT(*) AS review_count
		FROM reviews GROUP BY product_id
	) r ON r.product_id = p.id`

// scanProduct reads productColumns after any leading columns.
func scanProduct(row rowScanner, p *domain.Product, lead ...any) error {
	var weight sql.NullFloat64
	dest := append(lead,
		&p.ID, &p.Name, &p.Description, &p.Price, &p.OriginalPrice, &p.CategoryID, &p.CategoryName,
		&p.ImageURL, &p.StockQuantity, &p.MinStockLevel, &p.IsAvailable, &p.IsFeatured, &weight,
		&p.Unit, &p.Barcode, &p.Brand, &p.CreatedAt, &p.UpdatedAt,
		&p.AverageRating, &p.ReviewCount)
	if err := row.Scan(dest...); err != nil {
		return notFound(err)
	}
	if weight.Valid {
		w := weight.Float64
		p.Weight = &w
	}
	return nil
}

func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	defer rows.Close()
	out := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const categorySelect = `
	SELECT c.id, c.name, c.description, c.image_url, c.is_active, c.sort_order,
		(SELECT COUNT(*) FROM products p WHERE p.category_id = c.id AND p.is_available = TRUE)
	FROM categories c`

func scanCategory(row rowScanner) (*domain.Category, error) {
	var c domain.Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.ImageURL, &c.IsActive, &c.SortOrder, &c.ProductCount)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (m *MySQLAdapter) ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	query := categorySelect
	if activeOnly {
		query += ` WHERE c.is_active = TRUE`
	}
	rows, err := m.db.QueryContext(ctx, query+` ORDER BY c.sort_order, c.name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	return scanCategory(m.db.QueryRowContext(ctx, categorySelect+` WHERE c.id = ?`, id))
}

func (m *MySQLAdapter) CreateCategory(ctx context.Context, category *domain.Category) error {
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO categories (name, description, image_url, is_active, sort_order)
		VALUES (?, ?, ?, ?, ?)`,
		category.Name, category.Description, category.ImageURL, category.IsActive, category.SortOrder)
	if err != nil {
		if isDuplicate(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert category: %w", err)
	}
	category.ID, err = res.LastInsertId()
	return err
}

func productWhere(f domain.ProductFilter) (string, []any) {
	clauses := []string{"p.is_available = TRUE"}
	var args []any

	if f.CategoryID != 0 {
		clauses = append(clauses, "p.category_id = ?")
		args = append(args, f.CategoryID)
	}
	terms := make([]string, 0, len(f.Terms)+1)
	if f.Search != "" {
		terms = append(terms, f.Search)
	}
	terms = append(terms, f.Terms...)
	for _, term := range terms {
		like := likePattern(term)
		clauses = append(clauses, "(p.name LIKE ? OR p.description LIKE ? OR p.brand LIKE ?)")
		args = append(args, like, like, like)
	}
	if f.MinPrice.Valid {
		clauses = append(clauses, "p.price >= ?")
		args = append(args, f.MinPrice.Decimal)
	}
	if f.MaxPrice.Valid {
		clauses = append(clauses, "p.price <= ?")
		args = append(args, f.MaxPrice.Decimal)
	}
	if f.InStockOnly {
		clauses = append(clauses, "p.stock_quantity > 0")
	}
	if f.FeaturedOnly {
		clauses = append(clauses, "p.is_featured = TRUE")
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func productOrder(f domain.ProductFilter) string {
	switch f.Sort {
	case domain.SortPrice:
		if f.Descending {
			return "p.price DESC, p.name, p.id"
		}
		return "p.price, p.name, p.id"
	case domain.SortPriceLow:
		return "p.price, p.name, p.id"
	case domain.SortPriceHigh:
		return "p.price DESC, p.name, p.id"
	case domain.SortCreatedAt, domain.SortNewest:
		return "p.created_at DESC, p.id DESC"
	case domain.SortRating:
		return "COALESCE(r.avg_rating, 0) DESC, p.name, p.id"
	case domain.SortName:
		if f.Descending {
			return "p.name DESC, p.id DESC"
		}
	}
	return "p.name, p.id"
}

func (m *MySQLAdapter) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error) {
	where, args := productWhere(filter)

	var total int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := `SELECT ` + productColumns + ` FROM products p` + productJoins + where +
		` ORDER BY ` + productOrder(filter)
	if filter.Page.PerPage > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Page.PerPage, filter.Page.Offset())
	}
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	row := m.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products p`+productJoins+` WHERE p.id = ?`, id)
	if err := scanProduct(row, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *MySQLAdapter) requireCategory(ctx context.Context, id int64) error {
	if _, err := m.GetCategory(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewValidationError("category_id", "category does not exist")
		}
		return err
	}
	return nil
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, product *domain.Product) error {
	if err := m.requireCategory(ctx, product.CategoryID); err != nil {
		return err
	}
	now := m.now()
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO products (name, description, price, original_price, category_id, image_url,
			stock_quantity, min_stock_level, is_available, is_featured, weight, unit, barcode, brand,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.Name, product.Description, product.Price, product.OriginalPrice, product.CategoryID,
		product.ImageURL, product.StockQuantity, product.MinStockLevel, product.IsAvailable,
		product.IsFeatured, product.Weight, product.Unit, nullString(product.Barcode), product.Brand,
		now, now)
	if err != nil {
		if isDuplicate(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert product: %w", err)
	}
	product.ID, err = res.LastInsertId()
	product.CreatedAt = now
	product.UpdatedAt = now
	return err
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, product *domain.Product) error {
	existing, err := m.GetProduct(ctx, product.ID)
	if err != nil {
		return err
	}
	if err := m.requireCategory(ctx, product.CategoryID); err != nil {
		return err
	}
	now := m.now()
	// stock only moves through AdjustStock and checkout
	_, err = m.db.ExecContext(ctx, `
		UPDATE products SET name = ?, description = ?, price = ?, original_price = ?, category_id = ?,
			image_url = ?, min_stock_level = ?, is_available = ?, is_featured = ?, weight = ?,
			unit = ?, barcode = ?, brand = ?, updated_at = ?
		WHERE id = ?`,
		product.Name, product.Description, product.Price, product.OriginalPrice, product.CategoryID,
		product.ImageURL, product.MinStockLevel, product.IsAvailable, product.IsFeatured,
		product.Weight, product.Unit, nullString(product.Barcode), product.Brand, now, product.ID)
	if err != nil {
		if isDuplicate(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("update product: %w", err)
	}
	product.StockQuantity = existing.StockQuantity
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = now
	return nil
}

// adjustStockTx locks the product row, applies the delta and writes the log.
func adjustStockTx(ctx context.Context, tx *sql.Tx, change domain.StockChange, now time.Time) (*domain.InventoryLog, error) {
	var current int
	err := tx.QueryRowContext(ctx, `SELECT stock_quantity FROM products WHERE id = ? FOR UPDATE`,
		change.ProductID).Scan(&current)
	if err != nil {
		return nil, notFound(err)
	}
	next := current + change.Delta
	if next < 0 {
		return nil, domain.ErrInsufficientStock
	}
	if _, err := tx.ExecContext(ctx, `UPDATE products SET stock_quantity = ?, updated_at = ? WHERE id = ?`,
		next, now, change.ProductID); err != nil {
		return nil, fmt.Errorf("update stock: %w", err)
	}

	log := domain.InventoryLog{
		ProductID:        change.ProductID,
		ChangeType:       change.ChangeType,
		QuantityChange:   change.Delta,
		PreviousQuantity: current,
		NewQuantity:      next,
		Reason:           change.Reason,
		CreatedBy:        change.CreatedBy,
		CreatedAt:        now,
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_logs (product_id, change_type, quantity_change, previous_quantity,
			new_quantity, reason, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ProductID, log.ChangeType, log.QuantityChange, log.PreviousQuantity, log.NewQuantity,
		log.Reason, nullInt64(log.CreatedBy), log.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert inventory log: %w", err)
	}
	if log.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return &log, nil
}

func (m *MySQLAdapter) AdjustStock(ctx context.Context, change domain.StockChange) (*domain.InventoryLog, error) {
	var log *domain.InventoryLog
	err := m.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		log, err = adjustStockTx(ctx, tx, change, m.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return log, nil
}

func (m *MySQLAdapter) ListInventoryLogs(ctx context.Context, productID int64, limit int) ([]domain.InventoryLog, error) {
	query := `
		SELECT id, product_id, change_type, quantity_change, previous_quantity, new_quantity,
			reason, created_by, created_at
		FROM inventory_logs WHERE product_id = ? ORDER BY id DESC`
	args := []any{productID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list inventory logs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.InventoryLog, 0)
	for rows.Next() {
		var (
			l         domain.InventoryLog
			createdBy sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &l.ProductID, &l.ChangeType, &l.QuantityChange, &l.PreviousQuantity,
			&l.NewQuantity, &l.Reason, &createdBy, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.CreatedBy = int64Ptr(createdBy)
		out = append(out, l)
	}
	return out, rows.Err()
}
