package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/workbridge/api/internal/model"
)

// UserStore holds the minimal participant records the core needs to resolve
// names and roles. Account management lives elsewhere.
type UserStore struct {
	db *DB
}

func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a participant record
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, user.ID, user.Name, user.Email, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Get retrieves a user by ID
func (s *UserStore) Get(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, role, created_at FROM users WHERE id = ?`, id).
		Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
