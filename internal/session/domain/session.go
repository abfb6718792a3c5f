package domain

import (
	"errors"
	"strings"
	"time"
)

// Device is the logical client class a session is scoped to. At most one
// active session exists per (user, device) pair.
type Device string

const (
	DeviceMobile  Device = "mobile"
	DeviceDesktop Device = "desktop"
	DeviceWeb     Device = "web"
	DeviceTV      Device = "tv"
)

// ErrUnknownDevice is returned by ParseDevice for values outside the enum.
var ErrUnknownDevice = errors.New("unknown device class")

// ParseDevice maps a wire value to a Device, case-insensitively.
func ParseDevice(s string) (Device, error) {
	switch Device(strings.ToLower(strings.TrimSpace(s))) {
	case DeviceMobile:
		return DeviceMobile, nil
	case DeviceDesktop:
		return DeviceDesktop, nil
	case DeviceWeb:
		return DeviceWeb, nil
	case DeviceTV:
		return DeviceTV, nil
	default:
		return "", ErrUnknownDevice
	}
}

// Session is a device-scoped, time-bounded authenticated context. It is the
// root of trust for current-user resolution and token liveness. Deactivation
// is one-way; sessions are never physically deleted.
type Session struct {
	ID        string
	UserID    string
	Device    Device
	Active    bool
	CreatedAt time.Time
	ExpireAt  time.Time
}

// Expired reports whether the session's expiry instant has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpireAt.Before(now)
}
