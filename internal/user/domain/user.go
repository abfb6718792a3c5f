package domain

import (
	"errors"
	"strings"
	"time"
)

// User is the core user entity. The core treats it as an immutable value
// fetched by id or email; profile fields are persisted but never interpreted.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	Patronymic   string // optional
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time // nil unless soft-deleted
}

// NormalizeEmail trims and lower-cases an email for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate validates the user for persistence.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}
