package app

import (
	"context"
	"errors"

	"github.com/jcmexdev/storefront/internal/pkg/apperr"
	"github.com/jcmexdev/storefront/internal/store"
	"github.com/jcmexdev/storefront/internal/user-service/domain"
)

type Service struct {
	store store.Reader
}

func NewService(s store.Reader) *Service {
	return &Service{store: s}
}

// Profile returns the caller's own user record.
func (s *Service) Profile(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, apperr.New(apperr.KindAuthenticationRequired, "User must be logged in")
	}
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.KindUserNotFound, "User not found")
	}
	if err != nil {
		return nil, apperr.Unexpected(err, "Error loading the user")
	}
	return u, nil
}

// ListCustomers returns every user with the USER role.
func (s *Service) ListCustomers(ctx context.Context) ([]domain.User, error) {
	users, err := s.store.ListUsers(ctx, domain.RoleUser)
	if err != nil {
		return nil, apperr.Unexpected(err, "Error listing users")
	}
	return users, nil
}
