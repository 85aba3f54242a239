package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-commerce/meridian/internal/shared"
)

// Repository loads user records from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByEmail returns the user with the given email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(ctx, `SELECT id, email, name, password_hash, role, is_active, created_at FROM users WHERE email=$1`, email)
}

// FindByID returns the user with the given ID.
func (r *Repository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.scanUser(ctx, `SELECT id, email, name, password_hash, role, is_active, created_at FROM users WHERE id=$1`, id)
}

func (r *Repository) scanUser(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
