package rbac

import (
	"context"
	"errors"
	"fmt"
)

// ErrForbidden is returned when an authenticated user lacks the required
// permission.
var ErrForbidden = errors.New("forbidden")

// Gate performs per-action authorization checks. Each protected action
// composes the gate with a literal required permission name.
type Gate struct {
	resolver *Resolver
	decider  Decider
}

// NewGate returns a Gate combining the resolver with the policy decider.
func NewGate(resolver *Resolver, decider Decider) *Gate {
	return &Gate{resolver: resolver, decider: decider}
}

// Require resolves the user's effective permissions and fails with
// ErrForbidden when the required name is absent. Resolution failures
// propagate unwrapped as infrastructure errors.
func (g *Gate) Require(ctx context.Context, userID, permission string) error {
	perms, err := g.resolver.EffectivePermissions(ctx, userID)
	if err != nil {
		return err
	}
	allowed, err := g.decider.Allow(ctx, permission, perms)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: missing permission %s", ErrForbidden, permission)
	}
	return nil
}
