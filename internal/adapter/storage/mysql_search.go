package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

const maxCategorySuggestions = 5

func (m *MySQLAdapter) LogSearch(ctx context.Context, entry domain.SearchLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.now()
	}
	userID := sql.NullInt64{Int64: entry.UserID, Valid: entry.UserID != 0}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO search_logs (user_id, query, results_count, created_at) VALUES (?, ?, ?, ?)`,
		userID, entry.Query, entry.ResultsCount, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("log search: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) Suggest(ctx context.Context, query string, limit int) ([]domain.Suggestion, error) {
	like := likePattern(query)
	out := make([]domain.Suggestion, 0, limit)

	rows, err := m.db.QueryContext(ctx, `
		SELECT p.id, p.name, c.name
		FROM products p JOIN categories c ON c.id = p.category_id
		WHERE p.is_available = TRUE AND p.name LIKE ?
		ORDER BY p.name, p.id LIMIT ?`, like, limit)
	if err != nil {
		return nil, fmt.Errorf("suggest products: %w", err)
	}
	for rows.Next() {
		s := domain.Suggestion{Type: domain.SuggestionProduct}
		if err := rows.Scan(&s.ID, &s.Text, &s.Category); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = m.db.QueryContext(ctx, `
		SELECT id, name FROM categories
		WHERE is_active = TRUE AND name LIKE ?
		ORDER BY name LIMIT ?`, like, maxCategorySuggestions)
	if err != nil {
		return nil, fmt.Errorf("suggest categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		s := domain.Suggestion{Type: domain.SuggestionCategory}
		if err := rows.Scan(&s.ID, &s.Text); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
