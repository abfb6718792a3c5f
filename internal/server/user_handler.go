package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	auditrepo "auth-plane/internal/audit/repository"
	identityservice "auth-plane/internal/identity/service"
	"auth-plane/internal/rbac"
	userdomain "auth-plane/internal/user/domain"
	userservice "auth-plane/internal/user/service"
)

// UserHandler serves registration and user management.
type UserHandler struct {
	users    *userservice.UserService
	auth     *identityservice.AuthService
	rbac     *rbac.Service
	gate     *rbac.Gate
	auditLog auditrepo.Repository
}

// NewUserHandler returns a UserHandler with the given dependencies. auditLog
// may be nil; the audit trail endpoint then returns empty lists.
func NewUserHandler(users *userservice.UserService, auth *identityservice.AuthService, rbacSvc *rbac.Service, gate *rbac.Gate, auditLog auditrepo.Repository) *UserHandler {
	return &UserHandler{users: users, auth: auth, rbac: rbacSvc, gate: gate, auditLog: auditLog}
}

type createUserRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Patronymic string `json:"patronymic"`
}

type updateUserRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Patronymic string `json:"patronymic"`
}

type assignRolesRequest struct {
	RoleIDs []string `json:"role_ids"`
}

type userResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Patronymic string `json:"patronymic"`
}

func userResponseFrom(u *userdomain.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Patronymic: u.Patronymic,
	}
}

// Create handles POST /user. Public: this is registration. A previously
// soft-deleted account with the same email is revived instead of duplicated.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user := &userdomain.User{
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Patronymic: req.Patronymic,
	}
	created, err := h.users.Create(r.Context(), user, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponseFrom(created))
}

// Get handles GET /user/{id}. Users can read themselves; reading others
// requires the user:get_all permission.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.requireSelfOr(r, id, "user:get_all"); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponseFrom(user))
}

// Update handles PATCH /user/{id}. Users can update themselves; updating
// others requires user:update_all.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.requireSelfOr(r, id, "user:update_all"); err != nil {
		writeError(w, r, err)
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user := &userdomain.User{
		ID:         id,
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Patronymic: req.Patronymic,
	}
	updated, err := h.users.Update(r.Context(), user, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponseFrom(updated))
}

// Delete handles DELETE /user/{id}. Soft-deletes the account; deleting
// yourself also closes your current session. Deleting others requires
// user:delete_all.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.requireSelfOr(r, id, "user:delete_all"); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.users.SoftDelete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	if cu, ok := CurrentUserFromContext(r.Context()); ok && cu.User.ID == id {
		if err := h.auth.DeactivateSession(r.Context(), cu.Session); err != nil {
			writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssignRoles handles POST /user/{id}/roles. Requires role:assign.
func (h *UserHandler) AssignRoles(w http.ResponseWriter, r *http.Request) {
	cu, ok := CurrentUserFromContext(r.Context())
	if !ok {
		writeError(w, r, identityservice.ErrUnauthorized)
		return
	}
	if err := h.gate.Require(r.Context(), cu.User.ID, "role:assign"); err != nil {
		writeError(w, r, err)
		return
	}
	var req assignRolesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	roles, err := h.rbac.AssignRolesToUser(r.Context(), chi.URLParam(r, "id"), req.RoleIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rolesResponseFrom(roles))
}

// RemoveRoles handles DELETE /user/{id}/roles. Requires role:assign.
func (h *UserHandler) RemoveRoles(w http.ResponseWriter, r *http.Request) {
	cu, ok := CurrentUserFromContext(r.Context())
	if !ok {
		writeError(w, r, identityservice.ErrUnauthorized)
		return
	}
	if err := h.gate.Require(r.Context(), cu.User.ID, "role:assign"); err != nil {
		writeError(w, r, err)
		return
	}
	var req assignRolesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	roles, err := h.rbac.RemoveRolesFromUser(r.Context(), chi.URLParam(r, "id"), req.RoleIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rolesResponseFrom(roles))
}

type auditEntryResponse struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Device    string    `json:"device"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditTrail handles GET /user/{id}/audit. Users can read their own trail;
// reading others requires user:get_all.
func (h *UserHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.requireSelfOr(r, id, "user:get_all"); err != nil {
		writeError(w, r, err)
		return
	}
	var limit int32
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 1 {
			writeError(w, r, errBadRequest)
			return
		}
		limit = int32(n)
	}
	out := []auditEntryResponse{}
	if h.auditLog != nil {
		entries, err := h.auditLog.ListByUser(r.Context(), id, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		for _, e := range entries {
			out = append(out, auditEntryResponse{
				ID:        e.ID,
				Action:    e.Action,
				Device:    e.Device,
				IP:        e.IP,
				CreatedAt: e.CreatedAt,
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// requireSelfOr allows the request when the target is the caller, otherwise
// demands the given permission.
func (h *UserHandler) requireSelfOr(r *http.Request, targetID, permission string) error {
	cu, ok := CurrentUserFromContext(r.Context())
	if !ok {
		return identityservice.ErrUnauthorized
	}
	if cu.User.ID == targetID {
		return nil
	}
	return h.gate.Require(r.Context(), cu.User.ID, permission)
}
