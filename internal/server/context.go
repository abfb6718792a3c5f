package server

import (
	"context"

	"auth-plane/internal/identity/service"
)

type contextKey struct{ name string }

var (
	currentUserKey = contextKey{"current_user"}
	clientIPKey    = contextKey{"client_ip"}
)

// WithCurrentUser returns a context carrying the authenticated user and the
// session that proved it. Handlers read it back via CurrentUserFromContext.
func WithCurrentUser(ctx context.Context, cu *service.CurrentUser) context.Context {
	return context.WithValue(ctx, currentUserKey, cu)
}

// CurrentUserFromContext returns the authenticated user and true if set;
// otherwise nil, false.
func CurrentUserFromContext(ctx context.Context) (*service.CurrentUser, bool) {
	v, ok := ctx.Value(currentUserKey).(*service.CurrentUser)
	return v, ok
}

// WithClientIP returns a context carrying the client IP for audit logging.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext returns the client IP from context, or "" if unset.
// It satisfies the audit logger's IPExtractor signature.
func ClientIPFromContext(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}
