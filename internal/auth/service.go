package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-commerce/meridian/internal/shared"
)

// RepositoryPort abstracts user lookups for the service.
type RepositoryPort interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a new Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// UserByID fetches an active user by its ID.
func (s *Service) UserByID(ctx context.Context, id int64) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrNotFound
	}
	return user, nil
}
