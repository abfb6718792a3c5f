package repository

import (
	"context"
	"errors"

	"auth-plane/internal/user/domain"
)

// ErrDuplicateEmail is returned by Create and Update when the normalized
// email is already taken by an active user.
var ErrDuplicateEmail = errors.New("email already exists")

// Repository defines persistence for users. GetByEmail and GetByID only ever
// return active (non-soft-deleted) users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) (*domain.User, error)
	SoftDelete(ctx context.Context, id string) error
	// Reactivate flips a soft-deleted user with the given email back to
	// active and returns it, or nil when no such user exists.
	Reactivate(ctx context.Context, email string) (*domain.User, error)
}
