package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	rbacrepo "auth-plane/internal/rbac/repository"
	"auth-plane/internal/security"
	"auth-plane/internal/user/domain"
	"auth-plane/internal/user/repository"
)

// Sentinel errors for user management; the boundary maps them to Conflict
// and NotFound.
var (
	ErrEmailExists  = errors.New("email already registered")
	ErrUserNotFound = errors.New("user not found")
)

// defaultRoleName is assigned to every newly created user when it exists.
const defaultRoleName = "user"

// UserService implements user creation, update, and soft deletion.
type UserService struct {
	repo     repository.Repository
	roleRepo rbacrepo.Repository
	hasher   *security.Hasher
}

// NewUserService returns a UserService with the given dependencies.
func NewUserService(repo repository.Repository, roleRepo rbacrepo.Repository, hasher *security.Hasher) *UserService {
	return &UserService{repo: repo, roleRepo: roleRepo, hasher: hasher}
}

// Create registers a new user. The email is normalized; a duplicate active
// email fails ErrEmailExists. A soft-deleted user with the same email is
// reactivated instead of recreated. New users get the default role when it
// exists.
func (s *UserService) Create(ctx context.Context, u *domain.User, password string) (*domain.User, error) {
	u.Email = domain.NormalizeEmail(u.Email)

	existing, err := s.repo.GetByEmail(ctx, u.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	revived, err := s.repo.Reactivate(ctx, u.Email)
	if err != nil {
		return nil, err
	}
	if revived != nil {
		return revived, nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u.ID = uuid.New().String()
	u.PasswordHash = hash
	u.Active = true
	u.CreatedAt = now
	u.UpdatedAt = now
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	s.assignDefaultRole(ctx, u.ID)
	return u, nil
}

// assignDefaultRole is best-effort: a missing default role is not an error.
func (s *UserService) assignDefaultRole(ctx context.Context, userID string) {
	roles, err := s.roleRepo.GetRoles(ctx, rbacrepo.RoleFilter{Names: []string{defaultRoleName}})
	if err != nil {
		slog.Warn("default role lookup failed", "user_id", userID, "error", err)
		return
	}
	if len(roles) == 0 {
		return
	}
	if _, err := s.roleRepo.AssignRolesToUser(ctx, userID, []string{roles[0].Role.ID}); err != nil {
		slog.Warn("default role assignment failed", "user_id", userID, "error", err)
	}
}

// Get returns the active user with the given id, or ErrUserNotFound.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// Update writes the given profile fields for the user. A non-empty email is
// normalized and re-checked for uniqueness against other active users; a
// non-empty password is rehashed.
func (s *UserService) Update(ctx context.Context, u *domain.User, password string) (*domain.User, error) {
	if u.Email != "" {
		u.Email = domain.NormalizeEmail(u.Email)
		existing, err := s.repo.GetByEmail(ctx, u.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != u.ID {
			return nil, ErrEmailExists
		}
	}
	if password != "" {
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	updated, err := s.repo.Update(ctx, u)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	if updated == nil {
		return nil, ErrUserNotFound
	}
	return updated, nil
}

// SoftDelete marks the user inactive; the row is kept and the email can be
// revived by a later Create. The caller is responsible for deactivating the
// user's session.
func (s *UserService) SoftDelete(ctx context.Context, id string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrUserNotFound
	}
	return s.repo.SoftDelete(ctx, id)
}
