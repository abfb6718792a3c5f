// Package rbac resolves a user's effective permissions across assigned roles
// and gates protected actions on a required permission name.
package rbac

import (
	"context"
	"sort"
)

// PermissionLister is the minimal repository surface the resolver needs.
type PermissionLister interface {
	ListPermissionsByUser(ctx context.Context, userID string) ([]string, error)
}

// Resolver aggregates a user's permissions across every assigned role.
type Resolver struct {
	repo PermissionLister
}

// NewResolver returns a Resolver over the given repository.
func NewResolver(repo PermissionLister) *Resolver {
	return &Resolver{repo: repo}
}

// EffectivePermissions returns the de-duplicated, sorted union of permission
// names across the user's roles. A user with no roles gets an empty set.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	names, err := r.repo.ListPermissionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// Has reports whether the user's effective permission set contains the exact
// permission name.
func (r *Resolver) Has(ctx context.Context, userID, permission string) (bool, error) {
	perms, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}
