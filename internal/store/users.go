package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hazadus/go-tunes/internal/data"
)

// User учетная запись
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUser создает пользователя. Email приводится к нижнему регистру.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*User, error) {
	u := &User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isConstraint(err) {
			return nil, fmt.Errorf("%w: пользователь %s", ErrDuplicate, u.Email)
		}
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return u, nil
}

// UserByEmail ищет пользователя по email
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.user(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

// UserByID ищет пользователя по ID
func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	return s.user(ctx, "id", id)
}

func (s *Store) user(ctx context.Context, column, value string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE `+column+` = ?`, value,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: пользователь %s", ErrNotFound, value)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения пользователя: %w", err)
	}
	return &u, nil
}

// SaveProfile создает или обновляет профиль
func (s *Store) SaveProfile(ctx context.Context, p data.Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, username, display_name) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET username = excluded.username, display_name = excluded.display_name`,
		p.UserID, p.Username, p.DisplayName)
	if err != nil {
		return fmt.Errorf("ошибка сохранения профиля: %w", err)
	}
	return nil
}

// Profile возвращает профиль пользователя
func (s *Store) Profile(ctx context.Context, userID string) (*data.Profile, error) {
	var p data.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, display_name FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.Username, &p.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: профиль %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения профиля: %w", err)
	}
	return &p, nil
}
