package domain

import "time"

// AuditLog is one immutable record of an authentication-related event.
type AuditLog struct {
	ID        string
	UserID    string // empty for events with no resolved user (e.g. login_failure on unknown email)
	Action    string
	Device    string
	IP        string
	CreatedAt time.Time
}
