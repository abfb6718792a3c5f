package repository

import (
	"context"

	"auth-plane/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	// Create persists the session. The session must have ID set.
	Create(ctx context.Context, s *domain.Session) error
	// GetActiveByID returns the active session for id, or nil if the session
	// is missing or deactivated. Expiry is not checked here.
	GetActiveByID(ctx context.Context, id string) (*domain.Session, error)
	// GetActiveByUserAndDevice returns all active sessions for the pair.
	GetActiveByUserAndDevice(ctx context.Context, userID string, device domain.Device) ([]*domain.Session, error)
	// Deactivate flips active to false for the given id and returns the
	// updated session, or nil if no active session matched.
	Deactivate(ctx context.Context, id string) (*domain.Session, error)
}
