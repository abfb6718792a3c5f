package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	identityservice "auth-plane/internal/identity/service"
	"auth-plane/internal/rbac"
	rbacdomain "auth-plane/internal/rbac/domain"
	rbacrepo "auth-plane/internal/rbac/repository"
)

// RBACHandler serves role and permission administration.
type RBACHandler struct {
	rbac *rbac.Service
	gate *rbac.Gate
}

// NewRBACHandler returns an RBACHandler with the given dependencies.
func NewRBACHandler(rbacSvc *rbac.Service, gate *rbac.Gate) *RBACHandler {
	return &RBACHandler{rbac: rbacSvc, gate: gate}
}

type createRoleRequest struct {
	Name string `json:"name"`
}

type createPermissionRequest struct {
	Entity string `json:"entity"`
	Action string `json:"action"`
	All    bool   `json:"all"`
}

type addPermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids"`
}

type roleResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type permissionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type roleWithPermissionsResponse struct {
	roleResponse
	Permissions []permissionResponse `json:"permissions"`
}

func roleResponseFrom(role rbacdomain.Role) roleResponse {
	return roleResponse{ID: role.ID, Name: role.Name, CreatedAt: role.CreatedAt, UpdatedAt: role.UpdatedAt}
}

func rolesResponseFrom(roles []rbacdomain.Role) []roleResponse {
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, roleResponseFrom(role))
	}
	return out
}

func permissionsResponseFrom(perms []rbacdomain.Permission) []permissionResponse {
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionResponse{ID: p.ID, Name: p.Name})
	}
	return out
}

// CreateRole handles POST /roles. Requires role:create.
func (h *RBACHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	if err := h.require(r, "role:create"); err != nil {
		writeError(w, r, err)
		return
	}
	var req createRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	role, err := h.rbac.CreateRole(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, roleResponseFrom(*role))
}

// ListRoles handles GET /roles with optional id, name, and creation date
// range filters. Requires role:get_all.
func (h *RBACHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	if err := h.require(r, "role:get_all"); err != nil {
		writeError(w, r, err)
		return
	}
	filter, err := roleFilterFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	roles, err := h.rbac.GetRoles(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]roleWithPermissionsResponse, 0, len(roles))
	for _, rp := range roles {
		out = append(out, roleWithPermissionsResponse{
			roleResponse: roleResponseFrom(rp.Role),
			Permissions:  permissionsResponseFrom(rp.Permissions),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// CreatePermission handles POST /roles/permissions. Requires permission:create.
func (h *RBACHandler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	if err := h.require(r, "permission:create"); err != nil {
		writeError(w, r, err)
		return
	}
	var req createPermissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	perm, err := h.rbac.CreatePermission(r.Context(), req.Entity, req.Action, req.All)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, permissionResponse{ID: perm.ID, Name: perm.Name})
}

// ListPermissions handles GET /roles/permissions with optional id and name
// filters. Requires permission:get_all.
func (h *RBACHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	if err := h.require(r, "permission:get_all"); err != nil {
		writeError(w, r, err)
		return
	}
	filter := rbacrepo.PermissionFilter{
		IDs:   r.URL.Query()["id"],
		Names: r.URL.Query()["name"],
	}
	perms, err := h.rbac.GetPermissions(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionResponse{ID: p.ID, Name: p.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

// AddPermissions handles POST /roles/{id}/permissions. Requires role:update.
func (h *RBACHandler) AddPermissions(w http.ResponseWriter, r *http.Request) {
	if err := h.require(r, "role:update"); err != nil {
		writeError(w, r, err)
		return
	}
	var req addPermissionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	perms, err := h.rbac.AddPermissionsToRole(r.Context(), chi.URLParam(r, "id"), req.PermissionIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, permissionsResponseFrom(perms))
}

// RemovePermissions handles DELETE /roles/{id}/permissions. Requires
// role:update.
func (h *RBACHandler) RemovePermissions(w http.ResponseWriter, r *http.Request) {
	if err := h.require(r, "role:update"); err != nil {
		writeError(w, r, err)
		return
	}
	var req addPermissionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	perms, err := h.rbac.RemovePermissionsFromRole(r.Context(), chi.URLParam(r, "id"), req.PermissionIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, permissionsResponseFrom(perms))
}

func (h *RBACHandler) require(r *http.Request, permission string) error {
	cu, ok := CurrentUserFromContext(r.Context())
	if !ok {
		return identityservice.ErrUnauthorized
	}
	return h.gate.Require(r.Context(), cu.User.ID, permission)
}

func roleFilterFromQuery(r *http.Request) (rbacrepo.RoleFilter, error) {
	filter := rbacrepo.RoleFilter{
		IDs:   r.URL.Query()["id"],
		Names: r.URL.Query()["name"],
	}
	if v := r.URL.Query().Get("date_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errBadRequest
		}
		filter.DateFrom = &t
	}
	if v := r.URL.Query().Get("date_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errBadRequest
		}
		filter.DateTo = &t
	}
	return filter, nil
}
