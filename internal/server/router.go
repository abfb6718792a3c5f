package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	auditrepo "auth-plane/internal/audit/repository"
	identityservice "auth-plane/internal/identity/service"
	"auth-plane/internal/rbac"
	"auth-plane/internal/telemetry"
	userservice "auth-plane/internal/user/service"
)

// Pinger reports backend liveness for the readiness endpoint (e.g. the
// Postgres pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds the services the router wires handlers to.
type Deps struct {
	Auth     *identityservice.AuthService
	Users    *userservice.UserService
	RBAC     *rbac.Service
	Gate     *rbac.Gate
	AuditLog auditrepo.Repository
	Pinger   Pinger
	Metrics  *telemetry.HTTPMetrics
}

// NewRouter builds the full API router.
//
// Public routes: registration, login, refresh, and the health check. Every
// other route sits behind Bearer authentication.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(ClientIP)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	authHandler := NewAuthHandler(deps.Auth)
	userHandler := NewUserHandler(deps.Users, deps.Auth, deps.RBAC, deps.Gate, deps.AuditLog)
	rbacHandler := NewRBACHandler(deps.RBAC, deps.Gate)

	r.Get("/healthz", healthz(deps.Pinger))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(deps.Auth))
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})
	})

	r.Route("/user", func(r chi.Router) {
		r.Post("/", userHandler.Create)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(deps.Auth))
			r.Get("/{id}", userHandler.Get)
			r.Patch("/{id}", userHandler.Update)
			r.Delete("/{id}", userHandler.Delete)
			r.Post("/{id}/roles", userHandler.AssignRoles)
			r.Delete("/{id}/roles", userHandler.RemoveRoles)
			r.Get("/{id}/audit", userHandler.AuditTrail)
		})
	})

	r.Route("/roles", func(r chi.Router) {
		r.Use(RequireAuth(deps.Auth))
		r.Post("/", rbacHandler.CreateRole)
		r.Get("/", rbacHandler.ListRoles)
		r.Post("/permissions", rbacHandler.CreatePermission)
		r.Get("/permissions", rbacHandler.ListPermissions)
		r.Post("/{id}/permissions", rbacHandler.AddPermissions)
		r.Delete("/{id}/permissions", rbacHandler.RemovePermissions)
	})

	return otelhttp.NewHandler(r, "auth-plane")
}

func healthz(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			if err := pinger.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "database unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
