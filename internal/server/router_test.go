package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	auditlog "auth-plane/internal/audit"
	auditdomain "auth-plane/internal/audit/domain"
	identityservice "auth-plane/internal/identity/service"
	"auth-plane/internal/rbac"
	rbacdomain "auth-plane/internal/rbac/domain"
	rbacrepo "auth-plane/internal/rbac/repository"
	"auth-plane/internal/security"
	"auth-plane/internal/session"
	sessiondomain "auth-plane/internal/session/domain"
	userdomain "auth-plane/internal/user/domain"
	userrepo "auth-plane/internal/user/repository"
	userservice "auth-plane/internal/user/service"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*userdomain.User
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]*userdomain.User{}} }

func (r *memUsers) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || !u.Active {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email && u.Active {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUsers) Create(_ context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return userrepo.ErrDuplicateEmail
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUsers) Update(_ context.Context, u *userdomain.User) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[u.ID]
	if !ok || !stored.Active {
		return nil, nil
	}
	if u.Email != "" {
		stored.Email = u.Email
	}
	if u.FirstName != "" {
		stored.FirstName = u.FirstName
	}
	if u.LastName != "" {
		stored.LastName = u.LastName
	}
	if u.Patronymic != "" {
		stored.Patronymic = u.Patronymic
	}
	if u.PasswordHash != "" {
		stored.PasswordHash = u.PasswordHash
	}
	stored.UpdatedAt = time.Now().UTC()
	cp := *stored
	return &cp, nil
}

func (r *memUsers) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		now := time.Now().UTC()
		u.Active = false
		u.DeletedAt = &now
	}
	return nil
}

func (r *memUsers) Reactivate(_ context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email && !u.Active {
			u.Active = true
			u.DeletedAt = nil
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*sessiondomain.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: map[string]*sessiondomain.Session{}}
}

func (r *memSessions) Create(_ context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessions) GetActiveByID(_ context.Context, id string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !s.Active {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memSessions) GetActiveByUserAndDevice(_ context.Context, userID string, device sessiondomain.Device) ([]*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*sessiondomain.Session
	for _, s := range r.sessions {
		if s.Active && s.UserID == userID && s.Device == device {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memSessions) Deactivate(_ context.Context, id string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !s.Active {
		return nil, nil
	}
	s.Active = false
	cp := *s
	return &cp, nil
}

type memRBAC struct {
	mu        sync.Mutex
	roles     map[string]*rbacdomain.Role
	perms     map[string]*rbacdomain.Permission
	rolePerms map[string]map[string]bool
	userRoles map[string]map[string]bool
}

func newMemRBAC() *memRBAC {
	return &memRBAC{
		roles:     map[string]*rbacdomain.Role{},
		perms:     map[string]*rbacdomain.Permission{},
		rolePerms: map[string]map[string]bool{},
		userRoles: map[string]map[string]bool{},
	}
}

func (r *memRBAC) CreateRole(_ context.Context, role *rbacdomain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.roles {
		if existing.Name == role.Name {
			return rbacrepo.ErrDuplicateRole
		}
	}
	cp := *role
	r.roles[role.ID] = &cp
	return nil
}

func (r *memRBAC) CreatePermission(_ context.Context, p *rbacdomain.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.perms {
		if existing.Name == p.Name {
			return rbacrepo.ErrDuplicatePermission
		}
	}
	cp := *p
	r.perms[p.ID] = &cp
	return nil
}

func (r *memRBAC) GetRoles(_ context.Context, f rbacrepo.RoleFilter) ([]*rbacrepo.RoleWithPermissions, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*rbacrepo.RoleWithPermissions
	for _, role := range r.roles {
		if !roleMatches(role, f) {
			continue
		}
		rp := &rbacrepo.RoleWithPermissions{Role: *role}
		for permID := range r.rolePerms[role.ID] {
			rp.Permissions = append(rp.Permissions, *r.perms[permID])
		}
		out = append(out, rp)
	}
	return out, nil
}

func roleMatches(role *rbacdomain.Role, f rbacrepo.RoleFilter) bool {
	if len(f.IDs) > 0 || len(f.Names) > 0 {
		matched := false
		for _, id := range f.IDs {
			if role.ID == id {
				matched = true
			}
		}
		for _, name := range f.Names {
			if role.Name == name {
				matched = true
			}
		}
		if !matched {
			return false
		}
	}
	if f.DateFrom != nil && role.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && role.CreatedAt.After(*f.DateTo) {
		return false
	}
	return true
}

func (r *memRBAC) GetPermissions(_ context.Context, f rbacrepo.PermissionFilter) ([]*rbacdomain.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*rbacdomain.Permission
	for _, p := range r.perms {
		if len(f.IDs) > 0 || len(f.Names) > 0 {
			matched := false
			for _, id := range f.IDs {
				if p.ID == id {
					matched = true
				}
			}
			for _, name := range f.Names {
				if p.Name == name {
					matched = true
				}
			}
			if !matched {
				continue
			}
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memRBAC) AddPermissionsToRole(_ context.Context, roleID string, permissionIDs []string) ([]rbacdomain.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rolePerms[roleID] == nil {
		r.rolePerms[roleID] = map[string]bool{}
	}
	for _, id := range permissionIDs {
		if _, ok := r.perms[id]; ok {
			r.rolePerms[roleID][id] = true
		}
	}
	var out []rbacdomain.Permission
	for id := range r.rolePerms[roleID] {
		out = append(out, *r.perms[id])
	}
	return out, nil
}

func (r *memRBAC) AssignRolesToUser(_ context.Context, userID string, roleIDs []string) ([]rbacdomain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.userRoles[userID] == nil {
		r.userRoles[userID] = map[string]bool{}
	}
	for _, id := range roleIDs {
		if _, ok := r.roles[id]; ok {
			r.userRoles[userID][id] = true
		}
	}
	var out []rbacdomain.Role
	for id := range r.userRoles[userID] {
		out = append(out, *r.roles[id])
	}
	return out, nil
}

func (r *memRBAC) RemovePermissionsFromRole(_ context.Context, roleID string, permissionIDs []string) ([]rbacdomain.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range permissionIDs {
		delete(r.rolePerms[roleID], id)
	}
	var out []rbacdomain.Permission
	for id := range r.rolePerms[roleID] {
		out = append(out, *r.perms[id])
	}
	return out, nil
}

func (r *memRBAC) RemoveRolesFromUser(_ context.Context, userID string, roleIDs []string) ([]rbacdomain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range roleIDs {
		delete(r.userRoles[userID], id)
	}
	var out []rbacdomain.Role
	for id := range r.userRoles[userID] {
		out = append(out, *r.roles[id])
	}
	return out, nil
}

func (r *memRBAC) ListPermissionsByUser(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for roleID := range r.userRoles[userID] {
		for permID := range r.rolePerms[roleID] {
			name := r.perms[permID].Name
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []*auditdomain.AuditLog
}

func (r *memAudit) Create(_ context.Context, entry *auditdomain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *memAudit) ListByUser(_ context.Context, userID string, limit int32) ([]*auditdomain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*auditdomain.AuditLog
	for _, e := range r.entries {
		if e.UserID != userID {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

type apiFixture struct {
	router   http.Handler
	users    *memUsers
	sessions *memSessions
	rbacRepo *memRBAC
	audit    *memAudit
	hasher   *security.Hasher
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	users := newMemUsers()
	sessions := newMemSessions()
	rbacRepo := newMemRBAC()
	auditRepo := &memAudit{}

	hasher := security.NewHasher(4)
	codec, err := security.NewTokenCodec("HS256", "router-test-secret")
	if err != nil {
		t.Fatalf("token codec: %v", err)
	}
	manager := session.NewManager(sessions)
	logger := auditlog.NewLogger(auditRepo, ClientIPFromContext)
	authSvc := identityservice.NewAuthService(users, manager, hasher, codec, logger, 15*time.Minute, 24*time.Hour)
	userSvc := userservice.NewUserService(users, rbacRepo, hasher)
	rbacSvc := rbac.NewService(rbacRepo, users)

	decider, err := rbac.NewRegoDecider()
	if err != nil {
		t.Fatalf("rego decider: %v", err)
	}
	gate := rbac.NewGate(rbac.NewResolver(rbacRepo), decider)

	router := NewRouter(Deps{
		Auth:     authSvc,
		Users:    userSvc,
		RBAC:     rbacSvc,
		Gate:     gate,
		AuditLog: auditRepo,
	})
	return &apiFixture{router: router, users: users, sessions: sessions, rbacRepo: rbacRepo, audit: auditRepo, hasher: hasher}
}

// seedAdmin creates a user that already holds the given permissions through
// a dedicated role, bypassing the API.
func (f *apiFixture) seedAdmin(t *testing.T, email, password string, permissions ...string) *userdomain.User {
	t.Helper()
	ctx := context.Background()

	hash, err := f.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	admin := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	}
	if err := f.users.Create(ctx, admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	role := &rbacdomain.Role{ID: uuid.New().String(), Name: "admin", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := f.rbacRepo.CreateRole(ctx, role); err != nil {
		t.Fatalf("create role: %v", err)
	}
	var permIDs []string
	for _, name := range permissions {
		p := &rbacdomain.Permission{ID: uuid.New().String(), Name: name}
		if err := f.rbacRepo.CreatePermission(ctx, p); err != nil {
			t.Fatalf("create permission: %v", err)
		}
		permIDs = append(permIDs, p.ID)
	}
	if _, err := f.rbacRepo.AddPermissionsToRole(ctx, role.ID, permIDs); err != nil {
		t.Fatalf("add permissions: %v", err)
	}
	if _, err := f.rbacRepo.AssignRolesToUser(ctx, admin.ID, []string{role.ID}); err != nil {
		t.Fatalf("assign role: %v", err)
	}
	return admin
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) login(t *testing.T, email, password string) tokenResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": password, "device": "web",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var tokens tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tokens); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}
	return tokens
}

func TestRegisterLoginMe(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/user", "", map[string]string{
		"email": "Alice@Example.com", "password": "s3cret", "first_name": "Alice",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if created.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", created.Email)
	}

	tokens := f.login(t, "alice@example.com", "s3cret")

	rec = f.do(t, http.MethodGet, "/auth/me", tokens.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}
	var me userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.ID != created.ID {
		t.Fatalf("me id = %q, want %q", me.ID, created.ID)
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	f := newAPIFixture(t)

	body := map[string]string{"email": "alice@example.com", "password": "s3cret"}
	if rec := f.do(t, http.MethodPost, "/user", "", body); rec.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/user", "", body); rec.Code != http.StatusConflict {
		t.Fatalf("second register status = %d, want 409", rec.Code)
	}
}

func TestLoginFailures(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/user", "", map[string]string{"email": "alice@example.com", "password": "s3cret"})

	t.Run("wrong password", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "nope", "device": "web",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("unknown device", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "s3cret", "device": "toaster",
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestRefreshFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/user", "", map[string]string{"email": "alice@example.com", "password": "s3cret"})
	tokens := f.login(t, "alice@example.com", "s3cret")

	rec := f.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": tokens.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d", rec.Code)
	}
	var refreshed tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &refreshed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if refreshed.RefreshToken != tokens.RefreshToken {
		t.Fatal("refresh token must not rotate")
	}
	if rec := f.do(t, http.MethodGet, "/auth/me", refreshed.AccessToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("me with refreshed token status = %d", rec.Code)
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/user", "", map[string]string{"email": "alice@example.com", "password": "s3cret"})
	tokens := f.login(t, "alice@example.com", "s3cret")

	if rec := f.do(t, http.MethodPost, "/auth/logout", tokens.AccessToken, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/auth/me", tokens.AccessToken, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout status = %d, want 401", rec.Code)
	}
}

func TestRoleAdministrationRequiresPermission(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/user", "", map[string]string{"email": "alice@example.com", "password": "s3cret"})
	alice := f.login(t, "alice@example.com", "s3cret")

	if rec := f.do(t, http.MethodGet, "/roles/", alice.AccessToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("list roles without permission status = %d, want 403", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/roles/", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("list roles unauthenticated status = %d, want 401", rec.Code)
	}

	f.seedAdmin(t, "root@example.com", "adminpw", "role:create", "role:get_all", "role:update", "role:assign", "permission:create", "permission:get_all")
	admin := f.login(t, "root@example.com", "adminpw")

	rec := f.do(t, http.MethodPost, "/roles/", admin.AccessToken, map[string]string{"name": "Editors"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create role status = %d, body %s", rec.Code, rec.Body.String())
	}
	var role roleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &role); err != nil {
		t.Fatalf("decode role: %v", err)
	}
	if role.Name != "editors" {
		t.Fatalf("role name not normalized: %q", role.Name)
	}

	if rec := f.do(t, http.MethodGet, "/roles/", admin.AccessToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("list roles status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/roles/", admin.AccessToken, map[string]string{"name": "editors"}); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate role status = %d, want 409", rec.Code)
	}
}

func TestInvalidNamesRejectedAsBadRequest(t *testing.T) {
	f := newAPIFixture(t)
	f.seedAdmin(t, "root@example.com", "adminpw", "role:create", "permission:create")
	admin := f.login(t, "root@example.com", "adminpw")

	rec := f.do(t, http.MethodPost, "/roles/permissions", admin.AccessToken, map[string]any{"entity": "a:b", "action": "get"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("permission with ':' in entity status = %d, want 400", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/roles/permissions", admin.AccessToken, map[string]any{"entity": "user", "action": ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("permission with empty action status = %d, want 400", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/roles/", admin.AccessToken, map[string]string{"name": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank role name status = %d, want 400", rec.Code)
	}
}

func TestUserAccessControl(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/user", "", map[string]string{"email": "alice@example.com", "password": "s3cret"})
	var alice userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &alice); err != nil {
		t.Fatalf("decode: %v", err)
	}
	f.do(t, http.MethodPost, "/user", "", map[string]string{"email": "bob@example.com", "password": "s3cret"})
	aliceTokens := f.login(t, "alice@example.com", "s3cret")
	bobTokens := f.login(t, "bob@example.com", "s3cret")

	// Self read is allowed, cross read needs user:get_all.
	if rec := f.do(t, http.MethodGet, "/user/"+alice.ID, aliceTokens.AccessToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("self read status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/user/"+alice.ID, bobTokens.AccessToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("cross read status = %d, want 403", rec.Code)
	}

	admin := f.seedAdmin(t, "root@example.com", "adminpw", "user:get_all")
	adminTokens := f.login(t, "root@example.com", "adminpw")
	if rec := f.do(t, http.MethodGet, "/user/"+alice.ID, adminTokens.AccessToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("admin read status = %d", rec.Code)
	}
	_ = admin

	// Self delete closes the session.
	if rec := f.do(t, http.MethodDelete, "/user/"+alice.ID, aliceTokens.AccessToken, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("self delete status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/auth/me", aliceTokens.AccessToken, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after delete status = %d, want 401", rec.Code)
	}
}

func TestAssignAndRemoveRoles(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/user", "", map[string]string{"email": "alice@example.com", "password": "s3cret"})
	var alice userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &alice); err != nil {
		t.Fatalf("decode: %v", err)
	}
	f.seedAdmin(t, "root@example.com", "adminpw", "role:create", "role:assign")
	admin := f.login(t, "root@example.com", "adminpw")

	rec = f.do(t, http.MethodPost, "/roles/", admin.AccessToken, map[string]string{"name": "editors"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create role status = %d", rec.Code)
	}
	var role roleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &role); err != nil {
		t.Fatalf("decode role: %v", err)
	}

	rec = f.do(t, http.MethodPost, "/user/"+alice.ID+"/roles", admin.AccessToken, map[string][]string{"role_ids": {role.ID}})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign status = %d, body %s", rec.Code, rec.Body.String())
	}
	var assigned []roleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &assigned); err != nil {
		t.Fatalf("decode assigned: %v", err)
	}
	if len(assigned) != 1 || assigned[0].ID != role.ID {
		t.Fatalf("assigned = %+v, want the editors role", assigned)
	}

	rec = f.do(t, http.MethodDelete, "/user/"+alice.ID+"/roles", admin.AccessToken, map[string][]string{"role_ids": {role.ID}})
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status = %d", rec.Code)
	}
	var remaining []roleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &remaining); err != nil {
		t.Fatalf("decode remaining: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("remaining = %+v, want none", remaining)
	}
}

func TestAuditTrailEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/user", "", map[string]string{"email": "alice@example.com", "password": "s3cret"})
	var alice userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &alice); err != nil {
		t.Fatalf("decode: %v", err)
	}
	f.do(t, http.MethodPost, "/user", "", map[string]string{"email": "bob@example.com", "password": "s3cret"})
	aliceTokens := f.login(t, "alice@example.com", "s3cret")
	bobTokens := f.login(t, "bob@example.com", "s3cret")

	rec = f.do(t, http.MethodGet, "/user/"+alice.ID+"/audit", aliceTokens.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("self audit status = %d", rec.Code)
	}
	var entries []auditEntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Action == auditlog.ActionLoginSuccess {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a login_success entry, got %+v", entries)
	}

	if rec := f.do(t, http.MethodGet, "/user/"+alice.ID+"/audit", bobTokens.AccessToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("cross audit status = %d, want 403", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/user/"+alice.ID+"/audit?limit=bad", aliceTokens.AccessToken, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	if rec := f.do(t, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}
