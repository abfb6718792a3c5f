package server

import (
	"net/http"
	"time"

	"auth-plane/internal/identity/service"
	sessiondomain "auth-plane/internal/session/domain"
)

// AuthHandler serves login, refresh, logout, and the current-user lookup.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler returns an AuthHandler backed by the given auth service.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Device   string `json:"device"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	SessionID       string    `json:"session_id"`
	SessionExpireAt time.Time `json:"session_expire_at"`
	Device          string    `json:"device"`
}

func tokenResponseFrom(b *service.TokenBundle) tokenResponse {
	return tokenResponse{
		AccessToken:     b.AccessToken,
		RefreshToken:    b.RefreshToken,
		SessionID:       b.SessionID,
		SessionExpireAt: b.SessionExpireAt,
		Device:          string(b.Device),
	}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	device, err := sessiondomain.ParseDevice(req.Device)
	if err != nil {
		writeError(w, r, err)
		return
	}
	bundle, err := h.auth.Login(r.Context(), req.Email, req.Password, device)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponseFrom(bundle))
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	bundle, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponseFrom(bundle))
}

// Logout handles POST /auth/logout. Requires authentication; the session from
// the access token is the one closed.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cu, ok := CurrentUserFromContext(r.Context())
	if !ok {
		writeError(w, r, service.ErrUnauthorized)
		return
	}
	if err := h.auth.Logout(r.Context(), cu.Session); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me, returning the authenticated user's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cu, ok := CurrentUserFromContext(r.Context())
	if !ok {
		writeError(w, r, service.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, userResponseFrom(cu.User))
}
