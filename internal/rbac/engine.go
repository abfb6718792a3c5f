package rbac

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const policyPackage = "authplane.rbac"

// Rego policy implementing the permission decision: a grant requires the
// exact required name to be present in the resolved set. There is no
// wildcard or hierarchy expansion; entity:action_all is an unrelated name.
const permissionPolicy = `package authplane.rbac

import rego.v1

default allow := false

allow if {
	input.required in input.permissions
}
`

// Decider makes the final grant/deny decision from a resolved permission set.
type Decider interface {
	Allow(ctx context.Context, required string, permissions []string) (bool, error)
}

// RegoDecider evaluates the permission decision with an in-process OPA Rego
// policy, compiled once at construction.
type RegoDecider struct {
	compiler *ast.Compiler
}

// NewRegoDecider compiles the permission policy and returns a decider.
func NewRegoDecider() (*RegoDecider, error) {
	compiler, err := ast.CompileModules(map[string]string{
		"rbac.rego": permissionPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("compile permission policy: %w", err)
	}
	return &RegoDecider{compiler: compiler}, nil
}

// Allow evaluates the policy for the required permission name against the
// resolved set.
func (d *RegoDecider) Allow(ctx context.Context, required string, permissions []string) (bool, error) {
	if permissions == nil {
		permissions = []string{}
	}
	input := map[string]interface{}{
		"required":    required,
		"permissions": permissions,
	}
	q := rego.New(
		rego.Query("data."+policyPackage+".allow"),
		rego.Compiler(d.compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("eval permission policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("permission policy returned no result")
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("permission policy returned non-boolean")
	}
	return allowed, nil
}
