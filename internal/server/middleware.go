package server

import (
	"context"
	"net"
	"net/http"
	"strings"

	"auth-plane/internal/identity/service"
)

// TokenAuthenticator resolves an access token to its user and session.
type TokenAuthenticator interface {
	GetCurrentUser(ctx context.Context, accessToken string) (*service.CurrentUser, error)
}

// extractBearer returns the token from an Authorization header value, or ""
// if the header is missing or malformed. The header must split on a single
// space into exactly two parts with a case-insensitive "bearer" scheme, so
// leading, trailing, or doubled whitespace is rejected.
func extractBearer(header string) string {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	if !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// RequireAuth validates the Bearer access token and puts the resolved user
// and session in the request context. Requests without a valid token get 401.
func RequireAuth(auth TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				writeError(w, r, service.ErrUnauthorized)
				return
			}
			cu, err := auth.GetCurrentUser(r.Context(), token)
			if err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCurrentUser(r.Context(), cu)))
		})
	}
}

// ClientIP records the remote address (host part) in the request context so
// the audit trail can pick it up.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), host)))
	})
}
