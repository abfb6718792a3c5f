package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auth-plane/internal/audit"
	"auth-plane/internal/security"
	"auth-plane/internal/session"
	sessiondomain "auth-plane/internal/session/domain"
	userdomain "auth-plane/internal/user/domain"
)

// ErrUnauthorized covers every authentication failure: bad credentials,
// invalid/expired/malformed token, wrong scope, dead session, missing user.
// The caller never learns which check failed.
var ErrUnauthorized = errors.New("not authenticated")

// TokenBundle is the result of a successful login or refresh.
type TokenBundle struct {
	AccessToken     string
	RefreshToken    string
	SessionID       string
	SessionExpireAt time.Time
	Device          sessiondomain.Device
}

// CurrentUser pairs the authenticated user with the session that proved it.
type CurrentUser struct {
	User    *userdomain.User
	Session *sessiondomain.Session
}

// UserRepo is the minimal user repository needed by the auth service.
// Both lookups only ever return active users.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// AuthService orchestrates login, refresh, logout, and token-to-user
// resolution, composing the hasher, token codec, and session manager.
type AuthService struct {
	userRepo   UserRepo
	sessions   *session.Manager
	hasher     *security.Hasher
	codec      *security.TokenCodec
	auditLog   audit.Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewAuthService returns an AuthService with the given dependencies.
// auditLog may be nil to disable the audit trail.
func NewAuthService(
	userRepo UserRepo,
	sessions *session.Manager,
	hasher *security.Hasher,
	codec *security.TokenCodec,
	auditLog audit.Logger,
	accessTTL, refreshTTL time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		sessions:   sessions,
		hasher:     hasher,
		codec:      codec,
		auditLog:   auditLog,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Login authenticates with email/password, enforces single-active-session
// per (user, device), creates a session, and returns both tokens. A missing
// user and a wrong password fail identically, so callers cannot tell which
// emails exist.
func (s *AuthService) Login(ctx context.Context, email, password string, device sessiondomain.Device) (*TokenBundle, error) {
	email = userdomain.NormalizeEmail(email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if user == nil {
		s.audit(ctx, "", audit.ActionLoginFailure, string(device))
		return nil, ErrUnauthorized
	}
	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		s.audit(ctx, user.ID, audit.ActionLoginFailure, string(device))
		return nil, ErrUnauthorized
	}

	// Device-scoped exclusivity: close whatever is still open for this
	// pair before opening a new session. Not atomic across concurrent
	// logins; the storage layer carries no uniqueness constraint.
	stale, err := s.sessions.GetActiveByUserAndDevice(ctx, user.ID, device)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	for _, old := range stale {
		if _, err := s.sessions.Deactivate(ctx, old.ID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
	}

	expireAt := time.Now().UTC().Add(s.refreshTTL)
	sess, err := s.sessions.Create(ctx, user.ID, expireAt, device)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	bundle, err := s.issueTokens(sess)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, user.ID, audit.ActionLoginSuccess, string(device))
	return bundle, nil
}

// GetCurrentUser resolves an access token to its user and session. The
// session is the authority: its liveness and expiry are re-checked even
// though the token's own exp should already have been caught.
func (s *AuthService) GetCurrentUser(ctx context.Context, accessToken string) (*CurrentUser, error) {
	claims, err := s.codec.Decode(accessToken, true)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if claims.Scope != security.ScopeAccess {
		return nil, ErrUnauthorized
	}

	sess, err := s.sessions.GetActiveByID(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if sess == nil || sess.Expired(time.Now()) {
		return nil, ErrUnauthorized
	}

	user, err := s.userRepo.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if user == nil {
		return nil, ErrUnauthorized
	}
	return &CurrentUser{User: user, Session: sess}, nil
}

// Refresh mints a new access token against the refresh token's session. The
// embedded exp claim is advisory: the signature is verified but the time
// check is skipped, and session.ExpireAt alone decides liveness. The refresh
// token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenBundle, error) {
	claims, err := s.codec.Decode(refreshToken, false)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if claims.Scope != security.ScopeRefresh {
		return nil, ErrUnauthorized
	}

	sess, err := s.sessions.GetActiveByID(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if sess == nil {
		return nil, ErrUnauthorized
	}
	if sess.Expired(time.Now()) {
		if _, err := s.sessions.Deactivate(ctx, sess.ID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return nil, ErrUnauthorized
	}

	accessToken, err := s.codec.Encode(sess.ID, security.ScopeAccess, s.accessTTL, time.Time{})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, sess.UserID, audit.ActionTokenRefresh, string(sess.Device))
	return &TokenBundle{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		SessionID:       sess.ID,
		SessionExpireAt: sess.ExpireAt,
		Device:          sess.Device,
	}, nil
}

// Logout closes the given session. Underlying deactivation failures surface
// as ErrUnauthorized.
func (s *AuthService) Logout(ctx context.Context, sess *sessiondomain.Session) error {
	if sess == nil {
		return ErrUnauthorized
	}
	if _, err := s.sessions.Deactivate(ctx, sess.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	s.audit(ctx, sess.UserID, audit.ActionLogout, string(sess.Device))
	return nil
}

// DeactivateSession closes a session outside the logout flow (e.g. user
// soft-delete). Storage failures keep the session manager's error kind.
func (s *AuthService) DeactivateSession(ctx context.Context, sess *sessiondomain.Session) error {
	if sess == nil {
		return nil
	}
	if _, err := s.sessions.Deactivate(ctx, sess.ID); err != nil {
		return err
	}
	s.audit(ctx, sess.UserID, audit.ActionSessionDeactivated, string(sess.Device))
	return nil
}

func (s *AuthService) issueTokens(sess *sessiondomain.Session) (*TokenBundle, error) {
	accessToken, err := s.codec.Encode(sess.ID, security.ScopeAccess, s.accessTTL, time.Time{})
	if err != nil {
		return nil, err
	}
	// The refresh token's exp mirrors the session expiry but is advisory;
	// the session row is the sole source of truth.
	refreshToken, err := s.codec.Encode(sess.ID, security.ScopeRefresh, 0, sess.ExpireAt)
	if err != nil {
		return nil, err
	}
	return &TokenBundle{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		SessionID:       sess.ID,
		SessionExpireAt: sess.ExpireAt,
		Device:          sess.Device,
	}, nil
}

func (s *AuthService) audit(ctx context.Context, userID, action, device string) {
	if s.auditLog == nil {
		return
	}
	s.auditLog.LogEvent(ctx, userID, action, device)
}
