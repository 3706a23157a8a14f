package sql

import (
	"database/sql"
	"errors"

	"whisperflow/backend/internal/domain"
	"whisperflow/backend/internal/storage"
)

// ========== User Repository ==========

// CreateUser 创建后台用户
func (s *Store) CreateUser(user *domain.User) error {
	query := s.rebind(`
		INSERT INTO users (id, email, username, password_hash, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.Exec(query,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return storage.ErrEmailExists
	}
	return err
}

// GetUserByID 根据ID获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	return s.getUserBy("id", id)
}

// GetUserByEmail 根据邮箱获取用户
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	return s.getUserBy("email", email)
}

// GetUserByUsername 根据用户名获取用户
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	return s.getUserBy("username", username)
}

func (s *Store) getUserBy(column, value string) (*domain.User, error) {
	query := s.rebind(`
		SELECT id, email, username, password_hash, role, is_active,
		       created_at, updated_at, last_login_at
		FROM users
		WHERE ` + column + ` = ?
	`)

	var user domain.User
	var lastLoginAt sql.NullTime

	err := s.db.QueryRow(query, value).Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLoginAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}
	return &user, nil
}

// UpdateLastLogin 更新最近登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	query := s.rebind(`UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`)
	now := nowUTC()
	result, err := s.db.Exec(query, now, now, userID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}
