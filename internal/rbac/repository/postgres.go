package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"auth-plane/internal/rbac/domain"
)

const uniqueViolation = "23505"

// PostgresRepository persists roles, permissions, and the users_roles and
// roles_permissions association tables.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns an RBAC repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// CreateRole persists the role. Returns ErrDuplicateRole when the normalized
// name is taken.
func (r *PostgresRepository) CreateRole(ctx context.Context, role *domain.Role) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO roles (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, role.ID, role.Name, role.CreatedAt, role.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateRole
	}
	return err
}

// CreatePermission persists the permission. Returns ErrDuplicatePermission
// when the normalized name is taken.
func (r *PostgresRepository) CreatePermission(ctx context.Context, p *domain.Permission) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO permissions (id, name)
		VALUES ($1, $2)
	`, p.ID, p.Name)
	if isUniqueViolation(err) {
		return ErrDuplicatePermission
	}
	return err
}

// GetRoles returns roles matching the filter, each with its permission set
// materialized. IDs and Names combine with OR when both are given.
func (r *PostgresRepository) GetRoles(ctx context.Context, f RoleFilter) ([]*RoleWithPermissions, error) {
	query := `SELECT id, name, created_at, updated_at FROM roles WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.DateFrom != nil {
		query += ` AND created_at >= ` + arg(*f.DateFrom)
	}
	if f.DateTo != nil {
		query += ` AND created_at <= ` + arg(*f.DateTo)
	}
	switch {
	case len(f.IDs) > 0 && len(f.Names) > 0:
		query += ` AND (id = ANY(` + arg(f.IDs) + `) OR name = ANY(` + arg(f.Names) + `))`
	case len(f.IDs) > 0:
		query += ` AND id = ANY(` + arg(f.IDs) + `)`
	case len(f.Names) > 0:
		query += ` AND name = ANY(` + arg(f.Names) + `)`
	}
	query += ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RoleWithPermissions
	index := make(map[string]*RoleWithPermissions)
	var roleIDs []string
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		rp := &RoleWithPermissions{Role: role}
		out = append(out, rp)
		index[role.ID] = rp
		roleIDs = append(roleIDs, role.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	// One batch fetch for all permission sets; no per-role round trips.
	permRows, err := r.pool.Query(ctx, `
		SELECT rp.role_id, p.id, p.name
		FROM roles_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = ANY($1)
	`, roleIDs)
	if err != nil {
		return nil, err
	}
	defer permRows.Close()
	for permRows.Next() {
		var roleID string
		var p domain.Permission
		if err := permRows.Scan(&roleID, &p.ID, &p.Name); err != nil {
			return nil, err
		}
		if rp, ok := index[roleID]; ok {
			rp.Permissions = append(rp.Permissions, p)
		}
	}
	return out, permRows.Err()
}

// GetPermissions returns permissions matching the filter; ids and names
// combine with OR when both are given.
func (r *PostgresRepository) GetPermissions(ctx context.Context, f PermissionFilter) ([]*domain.Permission, error) {
	query := `SELECT id, name FROM permissions`
	var args []any
	switch {
	case len(f.IDs) > 0 && len(f.Names) > 0:
		query += ` WHERE id = ANY($1) OR name = ANY($2)`
		args = append(args, f.IDs, f.Names)
	case len(f.IDs) > 0:
		query += ` WHERE id = ANY($1)`
		args = append(args, f.IDs)
	case len(f.Names) > 0:
		query += ` WHERE name = ANY($1)`
		args = append(args, f.Names)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Permission
	for rows.Next() {
		var p domain.Permission
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// AddPermissionsToRole inserts missing associations and returns the role's
// resulting permission set.
func (r *PostgresRepository) AddPermissionsToRole(ctx context.Context, roleID string, permissionIDs []string) ([]domain.Permission, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO roles_permissions (role_id, permission_id)
		SELECT $1, p.id FROM permissions p WHERE p.id = ANY($2)
		ON CONFLICT DO NOTHING
	`, roleID, permissionIDs)
	if err != nil {
		return nil, err
	}
	return r.rolePermissions(ctx, roleID)
}

// RemovePermissionsFromRole deletes the given associations and returns the
// role's resulting permission set. Unassociated ids are ignored.
func (r *PostgresRepository) RemovePermissionsFromRole(ctx context.Context, roleID string, permissionIDs []string) ([]domain.Permission, error) {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM roles_permissions
		WHERE role_id = $1 AND permission_id = ANY($2)
	`, roleID, permissionIDs)
	if err != nil {
		return nil, err
	}
	return r.rolePermissions(ctx, roleID)
}

func (r *PostgresRepository) rolePermissions(ctx context.Context, roleID string) ([]domain.Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name
		FROM roles_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Permission
	for rows.Next() {
		var p domain.Permission
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AssignRolesToUser inserts missing associations and returns the user's
// resulting roles.
func (r *PostgresRepository) AssignRolesToUser(ctx context.Context, userID string, roleIDs []string) ([]domain.Role, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users_roles (user_id, role_id)
		SELECT $1, r.id FROM roles r WHERE r.id = ANY($2)
		ON CONFLICT DO NOTHING
	`, userID, roleIDs)
	if err != nil {
		return nil, err
	}
	return r.userRoles(ctx, userID)
}

// RemoveRolesFromUser deletes the given associations and returns the user's
// resulting roles. Unassigned ids are ignored.
func (r *PostgresRepository) RemoveRolesFromUser(ctx context.Context, userID string, roleIDs []string) ([]domain.Role, error) {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM users_roles
		WHERE user_id = $1 AND role_id = ANY($2)
	`, userID, roleIDs)
	if err != nil {
		return nil, err
	}
	return r.userRoles(ctx, userID)
}

func (r *PostgresRepository) userRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.created_at, r.updated_at
		FROM users_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// ListPermissionsByUser returns the distinct permission names reachable from
// the user's roles in a single join.
func (r *PostgresRepository) ListPermissionsByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT p.name
		FROM users_roles ur
		JOIN roles_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
