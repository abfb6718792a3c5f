// Package audit records a best-effort trail of authentication events.
// Failures to write the trail never affect the calling request.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"auth-plane/internal/audit/domain"
	auditrepo "auth-plane/internal/audit/repository"
)

// Audited actions.
const (
	ActionLoginSuccess       = "login_success"
	ActionLoginFailure       = "login_failure"
	ActionTokenRefresh       = "token_refresh"
	ActionLogout             = "logout"
	ActionSessionDeactivated = "session_deactivated"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// Logger writes a single audit event. Implementations must be best-effort:
// failures are logged and do not affect the caller.
type Logger interface {
	LogEvent(ctx context.Context, userID, action, device string)
}

// RepoLogger implements Logger using the audit repository and an optional IP
// extractor.
type RepoLogger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
}

// NewLogger returns a Logger that persists to repo and uses ipExtractor for
// the client IP. ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *RepoLogger {
	return &RepoLogger{repo: repo, ipExtractor: ipExtractor}
}

// LogEvent writes one audit log entry. Errors are logged and not returned.
func (l *RepoLogger) LogEvent(ctx context.Context, userID, action, device string) {
	if l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if got := l.ipExtractor(ctx); got != "" {
			ip = got
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Device:    device,
		IP:        ip,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		slog.Warn("audit log write failed", "action", action, "error", err)
	}
}
