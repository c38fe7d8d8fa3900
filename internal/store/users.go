package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
)

// CreateUser stores a new user.
// Returns ErrAlreadyExists when the ID or email is taken.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if err := s.Users.Create(ctx, user.ID, user); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return fmt.Errorf("user %s: %w", user.Email, ErrAlreadyExists)
		}
		return fmt.Errorf("creating user %s: %w", user.ID, err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.Users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting user %s: %w", id, err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.Users.GetByIndex(ctx, "email", normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return user, nil
}

// UpdateUser replaces a user record.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	if err := s.Users.Update(ctx, user.ID, user); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("user %s: %w", user.ID, ErrNotFound)
		}
		return fmt.Errorf("updating user %s: %w", user.ID, err)
	}
	return nil
}

// HasAnyUser reports whether at least one user exists. Drives the
// first-run setup flow.
func (s *Store) HasAnyUser(ctx context.Context) (bool, error) {
	for _, err := range s.Users.List(ctx) {
		if err != nil {
			return false, fmt.Errorf("listing users: %w", err)
		}
		return true, nil
	}
	return false, nil
}
