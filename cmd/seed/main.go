// seed inserts development data: the default "user" role, an "admin" role
// holding every administrative permission, and an admin account.
// Idempotent: exits early when the admin account already exists.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"auth-plane/internal/config"
	"auth-plane/internal/db"
	rbacdomain "auth-plane/internal/rbac/domain"
	rbacrepo "auth-plane/internal/rbac/repository"
	"auth-plane/internal/security"
	userdomain "auth-plane/internal/user/domain"
	userrepo "auth-plane/internal/user/repository"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "password123"
)

// adminPermissions is the full administrative permission set granted to the
// seeded admin role.
var adminPermissions = []string{
	"user:get_all",
	"user:update_all",
	"user:delete_all",
	"role:create",
	"role:get_all",
	"role:update",
	"role:assign",
	"permission:create",
	"permission:get_all",
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := userrepo.NewPostgresRepository(pool)
	rbacStore := rbacrepo.NewPostgresRepository(pool)

	existing, err := users.GetByEmail(ctx, adminEmail)
	if err != nil {
		return err
	}
	if existing != nil {
		slog.Info("already seeded", "email", adminEmail)
		return nil
	}

	now := time.Now().UTC()
	adminRole, err := ensureRole(ctx, rbacStore, "admin", now)
	if err != nil {
		return err
	}
	if _, err := ensureRole(ctx, rbacStore, "user", now); err != nil {
		return err
	}

	var permIDs []string
	for _, name := range adminPermissions {
		p := &rbacdomain.Permission{ID: uuid.New().String(), Name: name}
		if err := rbacStore.CreatePermission(ctx, p); err != nil {
			if !errors.Is(err, rbacrepo.ErrDuplicatePermission) {
				return err
			}
			stored, err := rbacStore.GetPermissions(ctx, rbacrepo.PermissionFilter{Names: []string{name}})
			if err != nil {
				return err
			}
			if len(stored) == 0 {
				return fmt.Errorf("permission %q exists but was not found", name)
			}
			p = stored[0]
		}
		permIDs = append(permIDs, p.ID)
	}
	if _, err := rbacStore.AddPermissionsToRole(ctx, adminRole.ID, permIDs); err != nil {
		return err
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash(adminPassword)
	if err != nil {
		return err
	}
	admin := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        adminEmail,
		FirstName:    "Admin",
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Create(ctx, admin); err != nil {
		return err
	}
	if _, err := rbacStore.AssignRolesToUser(ctx, admin.ID, []string{adminRole.ID}); err != nil {
		return err
	}

	slog.Info("seed complete", "email", adminEmail, "role", "admin")
	return nil
}

func ensureRole(ctx context.Context, store rbacrepo.Repository, name string, now time.Time) (*rbacdomain.Role, error) {
	role := &rbacdomain.Role{ID: uuid.New().String(), Name: name, CreatedAt: now, UpdatedAt: now}
	err := store.CreateRole(ctx, role)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, rbacrepo.ErrDuplicateRole) {
		return nil, err
	}
	stored, err := store.GetRoles(ctx, rbacrepo.RoleFilter{Names: []string{name}})
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("role %q exists but was not found", name)
	}
	return &stored[0].Role, nil
}
