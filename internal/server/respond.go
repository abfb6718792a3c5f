package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	identityservice "auth-plane/internal/identity/service"
	"auth-plane/internal/rbac"
	rbacdomain "auth-plane/internal/rbac/domain"
	sessiondomain "auth-plane/internal/session/domain"
	userservice "auth-plane/internal/user/service"
)

// errBadRequest classifies malformed client input (bad JSON, bad fields).
var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps service sentinels to HTTP statuses. Anything unclassified
// becomes a generic 500; the cause goes to the log, never to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var msg string

	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, sessiondomain.ErrUnknownDevice),
		errors.Is(err, rbacdomain.ErrInvalidPermissionName),
		errors.Is(err, rbac.ErrInvalidRoleName):
		status, msg = http.StatusBadRequest, "bad request"
	case errors.Is(err, identityservice.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "not authenticated"
	case errors.Is(err, rbac.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, rbac.ErrRoleNotFound),
		errors.Is(err, rbac.ErrPermissionNotFound),
		errors.Is(err, rbac.ErrUserNotFound),
		errors.Is(err, userservice.ErrUserNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, rbac.ErrRoleExists),
		errors.Is(err, rbac.ErrPermissionExists),
		errors.Is(err, userservice.ErrEmailExists):
		status, msg = http.StatusConflict, "conflict"
	default:
		status, msg = http.StatusInternalServerError, "internal error"
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, errorBody{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadRequest
	}
	return nil
}
