package repository

import (
	"context"
	"errors"
	"time"

	"auth-plane/internal/rbac/domain"
)

// Duplicate-name errors surfaced as Conflict at the boundary.
var (
	ErrDuplicateRole       = errors.New("role name already exists")
	ErrDuplicatePermission = errors.New("permission name already exists")
)

// RoleFilter narrows GetRoles. When both IDs and Names are set, a role
// matching either is returned. DateFrom/DateTo bound created_at.
type RoleFilter struct {
	IDs      []string
	Names    []string
	DateFrom *time.Time
	DateTo   *time.Time
}

// PermissionFilter narrows GetPermissions by ids or names.
type PermissionFilter struct {
	IDs   []string
	Names []string
}

// RoleWithPermissions is a role together with its fully materialized
// permission set. Relationship loading is always an explicit batch fetch.
type RoleWithPermissions struct {
	Role        domain.Role
	Permissions []domain.Permission
}

// Repository defines persistence for roles, permissions, and their
// associations with users.
type Repository interface {
	CreateRole(ctx context.Context, r *domain.Role) error
	CreatePermission(ctx context.Context, p *domain.Permission) error
	GetRoles(ctx context.Context, f RoleFilter) ([]*RoleWithPermissions, error)
	GetPermissions(ctx context.Context, f PermissionFilter) ([]*domain.Permission, error)
	// AddPermissionsToRole associates permissions with the role; already
	// associated pairs are ignored. Returns the role's resulting set.
	AddPermissionsToRole(ctx context.Context, roleID string, permissionIDs []string) ([]domain.Permission, error)
	// RemovePermissionsFromRole drops the given associations; unassociated
	// ids are ignored. Returns the role's resulting set.
	RemovePermissionsFromRole(ctx context.Context, roleID string, permissionIDs []string) ([]domain.Permission, error)
	// AssignRolesToUser associates roles with the user; already assigned
	// roles are ignored. Returns the user's resulting roles.
	AssignRolesToUser(ctx context.Context, userID string, roleIDs []string) ([]domain.Role, error)
	// RemoveRolesFromUser drops the given associations; unassigned ids are
	// ignored. Returns the user's resulting roles.
	RemoveRolesFromUser(ctx context.Context, userID string, roleIDs []string) ([]domain.Role, error)
	// ListPermissionsByUser returns the de-duplicated union of permission
	// names across every role assigned to the user, in one batch query.
	ListPermissionsByUser(ctx context.Context, userID string) ([]string, error)
}
