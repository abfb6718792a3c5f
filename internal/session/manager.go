// Package session enforces session lifecycle on top of the session store:
// creation, lookup of active sessions, and one-way idempotent deactivation.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"auth-plane/internal/session/domain"
	"auth-plane/internal/session/repository"
)

// Sentinel errors wrapping storage failures; callers map them to Unauthorized
// at the boundary.
var (
	ErrSessionCreate     = errors.New("session create failed")
	ErrSessionDeactivate = errors.New("session deactivate failed")
)

// Manager enforces the session lifecycle. The single-active-session-per-
// (user, device) policy is applied by the authentication service, not here.
type Manager struct {
	repo repository.Repository
}

// NewManager returns a Manager over the given session store.
func NewManager(repo repository.Repository) *Manager {
	return &Manager{repo: repo}
}

// Create opens a new active session for the user on the given device class.
func (m *Manager) Create(ctx context.Context, userID string, expireAt time.Time, device domain.Device) (*domain.Session, error) {
	s := &domain.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Device:    device,
		Active:    true,
		CreatedAt: time.Now().UTC(),
		ExpireAt:  expireAt,
	}
	if err := m.repo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreate, err)
	}
	return s, nil
}

// GetActiveByUserAndDevice returns all currently active sessions for the
// (user, device) pair.
func (m *Manager) GetActiveByUserAndDevice(ctx context.Context, userID string, device domain.Device) ([]*domain.Session, error) {
	return m.repo.GetActiveByUserAndDevice(ctx, userID, device)
}

// GetActiveByID returns the active session for id, or nil when missing or
// deactivated. Expiry is the caller's concern.
func (m *Manager) GetActiveByID(ctx context.Context, id string) (*domain.Session, error) {
	return m.repo.GetActiveByID(ctx, id)
}

// Deactivate transitions the session Active→Deactivated. Deactivating an
// already-deactivated or nonexistent session is a no-op returning nil, nil.
func (m *Manager) Deactivate(ctx context.Context, id string) (*domain.Session, error) {
	s, err := m.repo.Deactivate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionDeactivate, err)
	}
	return s, nil
}
