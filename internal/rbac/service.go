package rbac

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"auth-plane/internal/rbac/domain"
	"auth-plane/internal/rbac/repository"
	userdomain "auth-plane/internal/user/domain"
)

// Sentinel errors for administrative role/permission operations.
var (
	ErrRoleNotFound       = errors.New("role not found")
	ErrInvalidRoleName    = errors.New("role name is required")
	ErrPermissionNotFound = errors.New("permission not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrRoleExists         = repository.ErrDuplicateRole
	ErrPermissionExists   = repository.ErrDuplicatePermission
)

// UserGetter is the minimal user repository surface needed for role
// assignment.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Service implements administrative role and permission management.
type Service struct {
	repo  repository.Repository
	users UserGetter
}

// NewService returns a Service over the RBAC repository and user lookup.
func NewService(repo repository.Repository, users UserGetter) *Service {
	return &Service{repo: repo, users: users}
}

// CreateRole creates a role with a normalized unique name.
func (s *Service) CreateRole(ctx context.Context, name string) (*domain.Role, error) {
	now := time.Now().UTC()
	role := &domain.Role{
		ID:        uuid.New().String(),
		Name:      domain.NormalizeName(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if role.Name == "" {
		return nil, ErrInvalidRoleName
	}
	if err := s.repo.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// CreatePermission builds the permission name from entity, action, and the
// all flag, and creates it. Duplicate normalized names fail with
// ErrPermissionExists.
func (s *Service) CreatePermission(ctx context.Context, entity, action string, all bool) (*domain.Permission, error) {
	name, err := domain.BuildPermissionName(entity, action, all)
	if err != nil {
		return nil, err
	}
	p := &domain.Permission{ID: uuid.New().String(), Name: name}
	if err := s.repo.CreatePermission(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetRoles lists roles with materialized permission sets, filtered by ids,
// normalized names, and creation-date range.
func (s *Service) GetRoles(ctx context.Context, f repository.RoleFilter) ([]*repository.RoleWithPermissions, error) {
	for i, n := range f.Names {
		f.Names[i] = domain.NormalizeName(n)
	}
	return s.repo.GetRoles(ctx, f)
}

// GetPermissions lists permissions filtered by ids and normalized names.
func (s *Service) GetPermissions(ctx context.Context, f repository.PermissionFilter) ([]*domain.Permission, error) {
	for i, n := range f.Names {
		f.Names[i] = domain.NormalizeName(n)
	}
	return s.repo.GetPermissions(ctx, f)
}

// AddPermissionsToRole associates the permissions with the role, ignoring
// already-associated pairs, and returns the resulting set. A missing role
// fails ErrRoleNotFound; no matching permissions fails ErrPermissionNotFound.
func (s *Service) AddPermissionsToRole(ctx context.Context, roleID string, permissionIDs []string) ([]domain.Permission, error) {
	roles, err := s.repo.GetRoles(ctx, repository.RoleFilter{IDs: []string{roleID}})
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, ErrRoleNotFound
	}
	perms, err := s.repo.GetPermissions(ctx, repository.PermissionFilter{IDs: permissionIDs})
	if err != nil {
		return nil, err
	}
	if len(perms) == 0 {
		return nil, ErrPermissionNotFound
	}
	ids := make([]string, len(perms))
	for i, p := range perms {
		ids[i] = p.ID
	}
	return s.repo.AddPermissionsToRole(ctx, roleID, ids)
}

// AssignRolesToUser associates the roles with the user, set semantics, and
// returns the user's resulting roles. A missing user fails ErrUserNotFound;
// no matching roles fails ErrRoleNotFound.
func (s *Service) AssignRolesToUser(ctx context.Context, userID string, roleIDs []string) ([]domain.Role, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	roles, err := s.repo.GetRoles(ctx, repository.RoleFilter{IDs: roleIDs})
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, ErrRoleNotFound
	}
	ids := make([]string, len(roles))
	for i, r := range roles {
		ids[i] = r.Role.ID
	}
	return s.repo.AssignRolesToUser(ctx, userID, ids)
}

// RemovePermissionsFromRole drops the associations and returns the role's
// resulting set. A missing role fails ErrRoleNotFound; ids that were never
// associated are ignored.
func (s *Service) RemovePermissionsFromRole(ctx context.Context, roleID string, permissionIDs []string) ([]domain.Permission, error) {
	roles, err := s.repo.GetRoles(ctx, repository.RoleFilter{IDs: []string{roleID}})
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, ErrRoleNotFound
	}
	return s.repo.RemovePermissionsFromRole(ctx, roleID, permissionIDs)
}

// RemoveRolesFromUser drops the associations and returns the user's
// resulting roles. A missing user fails ErrUserNotFound; ids that were never
// assigned are ignored.
func (s *Service) RemoveRolesFromUser(ctx context.Context, userID string, roleIDs []string) ([]domain.Role, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return s.repo.RemoveRolesFromUser(ctx, userID, roleIDs)
}
