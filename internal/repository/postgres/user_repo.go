package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xela07ax/erp-backend-prototype/internal/domain"
)

// UserRepo — отдельный типизированный доступ к users для выдачи токенов.
// Сам ресурс users при этом ходит через общий ResourceRepo.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT id, email, username, password, permissions, created_at, updated_at
		FROM users WHERE username = $1 AND deleted_at IS NULL`

	u := &domain.User{}
	var permissions []byte
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &permissions, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: select user: %w", err)
	}

	// permissions хранятся в jsonb как ["orders.read", ...]
	var list []string
	if err := json.Unmarshal(permissions, &list); err != nil {
		return nil, fmt.Errorf("postgres: decode user permissions: %w", err)
	}
	u.Permissions = make(map[string]bool, len(list))
	for _, p := range list {
		u.Permissions[p] = true
	}

	return u, nil
}
