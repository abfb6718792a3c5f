package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is a named bundle of permissions assignable to users. Names are
// normalized (trimmed, lower-cased) and unique.
type Role struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Permission is an atomic named capability of the form entity:action or
// entity:action_all. Names are compared by exact string equality; the _all
// suffix creates a distinct, unrelated name.
type Permission struct {
	ID   string
	Name string
}

// ErrInvalidPermissionName is returned when an entity or action part would
// produce a malformed permission name.
var ErrInvalidPermissionName = errors.New("invalid permission name")

// NormalizeName trims and lower-cases a role or permission name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// BuildPermissionName composes a normalized permission name from its parts.
// The entity must not contain the separator; all=true appends the _all
// suffix.
func BuildPermissionName(entity, action string, all bool) (string, error) {
	entity = NormalizeName(entity)
	action = NormalizeName(action)
	if entity == "" || action == "" {
		return "", ErrInvalidPermissionName
	}
	if strings.Contains(entity, ":") {
		return "", fmt.Errorf("%w: entity %q must not contain ':'", ErrInvalidPermissionName, entity)
	}
	name := entity + ":" + action
	if all {
		name += "_all"
	}
	return name, nil
}
