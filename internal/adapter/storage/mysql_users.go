package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, phone, address,
	city, postal_code, is_admin, is_active, email_verified, verification_token, reset_token,
	reset_token_expires, created_at, last_login`

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u            domain.User
		verification sql.NullString
		reset        sql.NullString
		resetExpires sql.NullTime
		lastLogin    sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Phone, &u.Address, &u.City, &u.PostalCode, &u.IsAdmin, &u.IsActive, &u.EmailVerified,
		&verification, &reset, &resetExpires, &u.CreatedAt, &lastLogin)
	if err != nil {
		return nil, notFound(err)
	}
	u.VerificationToken = verification.String
	u.ResetToken = reset.String
	u.ResetTokenExpires = timePtr(resetExpires)
	u.LastLogin = timePtr(lastLogin)
	return &u, nil
}

func (m *MySQLAdapter) CreateUser(ctx context.Context, user *domain.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = m.now()
	}
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, first_name, last_name, phone, address,
			city, postal_code, is_admin, is_active, email_verified, verification_token, reset_token,
			reset_token_expires, created_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Phone,
		user.Address, user.City, user.PostalCode, user.IsAdmin, user.IsActive, user.EmailVerified,
		nullString(user.VerificationToken), nullString(user.ResetToken),
		nullTime(user.ResetTokenExpires), user.CreatedAt, nullTime(user.LastLogin))
	if err != nil {
		if isDuplicate(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	user.ID, err = res.LastInsertId()
	return err
}

func (m *MySQLAdapter) getUserWhere(ctx context.Context, where string, arg any) (*domain.User, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	return scanUser(row)
}

func (m *MySQLAdapter) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return m.getUserWhere(ctx, "id = ?", id)
}

func (m *MySQLAdapter) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return m.getUserWhere(ctx, "username = ?", username)
}

func (m *MySQLAdapter) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.getUserWhere(ctx, "email = ?", email)
}

func (m *MySQLAdapter) GetUserByVerificationToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}
	return m.getUserWhere(ctx, "verification_token = ?", token)
}

func (m *MySQLAdapter) GetUserByResetToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}
	return m.getUserWhere(ctx, "reset_token = ?", token)
}

func (m *MySQLAdapter) UpdateUser(ctx context.Context, user *domain.User) error {
	res, err := m.db.ExecContext(ctx, `
		UPDATE users SET username = ?, email = ?, password_hash = ?, first_name = ?, last_name = ?,
			phone = ?, address = ?, city = ?, postal_code = ?, is_admin = ?, is_active = ?,
			email_verified = ?, verification_token = ?, reset_token = ?, reset_token_expires = ?,
			last_login = ?
		WHERE id = ?`,
		user.Username, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Phone,
		user.Address, user.City, user.PostalCode, user.IsAdmin, user.IsActive, user.EmailVerified,
		nullString(user.VerificationToken), nullString(user.ResetToken),
		nullTime(user.ResetTokenExpires), nullTime(user.LastLogin), user.ID)
	if err != nil {
		if isDuplicate(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("update user: %w", err)
	}
	// MySQL reports zero affected rows when nothing changed, so confirm existence
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := m.GetUser(ctx, user.ID); err != nil {
			return err
		}
	}
	return nil
}
