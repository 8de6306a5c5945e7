package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"devfolio.org/internal/audit"
	"devfolio.org/internal/auth"
	"devfolio.org/internal/project"
)

// memStore backs the full API with in-memory state. It honors the same
// contract as the real store: org-scoped lookups, conflicts on duplicate
// names, and one recorded audit entry per successful mutation.
type memStore struct {
	orgs     map[string]*auth.Organization
	users    map[string]*auth.User
	projects map[string]*project.Project
	tags     map[string]*project.Tag
	entries  []*audit.Entry
}

func newMemStore() *memStore {
	return &memStore{
		orgs:     make(map[string]*auth.Organization),
		users:    make(map[string]*auth.User),
		projects: make(map[string]*project.Project),
		tags:     make(map[string]*project.Tag),
	}
}

func (m *memStore) CreateAccount(ctx context.Context, org *auth.Organization, admin *auth.User) error {
	for _, o := range m.orgs {
		if o.Name == org.Name {
			return fmt.Errorf("%w: organization name already exists", auth.ErrConflict)
		}
	}
	for _, u := range m.users {
		if u.Email == admin.Email {
			return fmt.Errorf("%w: email already registered", auth.ErrConflict)
		}
	}
	m.orgs[org.ID] = org
	m.users[admin.ID] = admin
	return nil
}

func (m *memStore) CreateUser(ctx context.Context, u *auth.User, entry *audit.Entry) error {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return fmt.Errorf("%w: email already registered", auth.ErrConflict)
		}
	}
	m.users[u.ID] = u
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memStore) FindUser(ctx context.Context, id string) (*auth.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return u, nil
}

func (m *memStore) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memStore) ListUsers(ctx context.Context, orgID string) ([]*auth.User, error) {
	var out []*auth.User
	for _, u := range m.users {
		if u.OrgID == orgID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) FindOrganization(ctx context.Context, id string) (*auth.Organization, error) {
	org, ok := m.orgs[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return org, nil
}

func (m *memStore) CreateProject(ctx context.Context, p *project.Project, tagNames []string, entry *audit.Entry) error {
	cp := *p
	m.projects[p.ID] = &cp
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memStore) FindProject(ctx context.Context, orgID, id string) (*project.Project, error) {
	p, ok := m.projects[id]
	if !ok || p.OrgID != orgID {
		return nil, auth.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListProjects(ctx context.Context, orgID string, filter project.ListFilter) ([]*project.Project, error) {
	var out []*project.Project
	for _, p := range m.projects {
		if p.OrgID == orgID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) UpdateProject(ctx context.Context, p *project.Project, tagNames []string, entry *audit.Entry) error {
	existing, ok := m.projects[p.ID]
	if !ok || existing.OrgID != p.OrgID {
		return auth.ErrNotFound
	}
	cp := *p
	m.projects[p.ID] = &cp
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memStore) DeleteProject(ctx context.Context, orgID, id string, entry *audit.Entry) error {
	p, ok := m.projects[id]
	if !ok || p.OrgID != orgID {
		return auth.ErrNotFound
	}
	delete(m.projects, id)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memStore) CreateTag(ctx context.Context, tg *project.Tag, entry *audit.Entry) error {
	for _, existing := range m.tags {
		if existing.OrgID == tg.OrgID && existing.Name == tg.Name {
			return fmt.Errorf("%w: tag already exists", auth.ErrConflict)
		}
	}
	cp := *tg
	m.tags[tg.ID] = &cp
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memStore) ListTags(ctx context.Context, orgID string) ([]*project.Tag, error) {
	var out []*project.Tag
	for _, tg := range m.tags {
		if tg.OrgID == orgID {
			out = append(out, tg)
		}
	}
	return out, nil
}

func (m *memStore) List(ctx context.Context, orgID string, limit, offset int) ([]*audit.Entry, error) {
	var out []*audit.Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].OrgID == orgID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func newTestAPI(t *testing.T) (http.Handler, *memStore) {
	t.Helper()
	store := newMemStore()
	codec, err := auth.NewCodec("httpapi-test-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	authSvc, err := auth.NewService(store, codec)
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}
	projectSvc, err := project.NewService(store)
	if err != nil {
		t.Fatalf("project.NewService: %v", err)
	}
	api := New(authSvc, projectSvc, store, ReadyProbe{}, "test")
	return api.Handler(), store
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// register drives the real registration endpoint and returns the access
// token of the founding admin.
func register(t *testing.T, h http.Handler, org, email string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"organization_name": org,
		"email":             email,
		"password":          "longenough",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp sessionResponse
	decodeBody(t, rec, &resp)
	return resp.Tokens.AccessToken
}

func TestRegisterLoginRefreshFlow(t *testing.T) {
	h, _ := newTestAPI(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"organization_name": "Acme",
		"email":             "admin@acme.dev",
		"password":          "longenough",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}
	var created sessionResponse
	decodeBody(t, rec, &created)
	if created.User.Role != auth.RoleAdmin || created.Tokens.RefreshToken == "" {
		t.Fatalf("unexpected registration response: %+v", created)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "admin@acme.dev",
		"password": "longenough",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "admin@acme.dev",
		"password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": created.Tokens.RefreshToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: status %d body %s", rec.Code, rec.Body.String())
	}

	// an access token is not a refresh token
	rec = doJSON(t, h, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
		"refresh_token": created.Tokens.AccessToken,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh with access token: status %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h, _ := newTestAPI(t)

	for _, path := range []string{"/v1/projects", "/v1/tags", "/v1/users", "/v1/activity", "/v1/orgs/me"} {
		rec := doJSON(t, h, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: status %d", path, rec.Code)
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/v1/projects", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusUnauthorized {
		t.Fatalf("basic auth scheme: status %d", rec2.Code)
	}
}

func TestProjectLifecycleOverHTTP(t *testing.T) {
	h, store := newTestAPI(t)
	token := register(t, h, "Acme", "admin@acme.dev")

	rec := doJSON(t, h, http.MethodPost, "/v1/projects", token, map[string]any{
		"title":       "Portfolio Site",
		"description": "Personal portfolio",
		"is_public":   true,
		"tag_names":   []string{"go"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	var created project.Project
	decodeBody(t, rec, &created)
	if loc := rec.Header().Get("Location"); loc != "/v1/projects/"+created.ID {
		t.Fatalf("unexpected Location: %s", loc)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/projects/"+created.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPatch, "/v1/projects/"+created.ID, token, map[string]any{
		"title": "Renamed Portfolio",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", rec.Code, rec.Body.String())
	}
	var updated project.Project
	decodeBody(t, rec, &updated)
	if updated.Title != "Renamed Portfolio" {
		t.Fatalf("title not updated: %s", updated.Title)
	}

	rec = doJSON(t, h, http.MethodDelete, "/v1/projects/"+created.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/v1/projects/"+created.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", rec.Code)
	}

	// create, update, delete each left exactly one trail entry
	if len(store.entries) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(store.entries))
	}
}

func TestCrossTenantProjectIsNotFound(t *testing.T) {
	h, _ := newTestAPI(t)
	tokenA := register(t, h, "OrgA", "a@a.dev")
	tokenB := register(t, h, "OrgB", "b@b.dev")

	rec := doJSON(t, h, http.MethodPost, "/v1/projects", tokenA, map[string]any{
		"title":       "Secret Project",
		"description": "d",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d", rec.Code)
	}
	var created project.Project
	decodeBody(t, rec, &created)

	// the other tenant sees 404, never 403
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/projects/" + created.ID},
		{http.MethodDelete, "/v1/projects/" + created.ID},
	} {
		rec := doJSON(t, h, tc.method, tc.path, tokenB, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s %s cross-tenant: status %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestRoleEnforcementOverHTTP(t *testing.T) {
	h, _ := newTestAPI(t)
	adminToken := register(t, h, "Acme", "admin@acme.dev")

	rec := doJSON(t, h, http.MethodPost, "/v1/users", adminToken, map[string]string{
		"email":    "viewer@acme.dev",
		"password": "longenough",
		"role":     "viewer",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    "viewer@acme.dev",
		"password": "longenough",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("viewer login: status %d", rec.Code)
	}
	var viewerSession sessionResponse
	decodeBody(t, rec, &viewerSession)
	viewerToken := viewerSession.Tokens.AccessToken

	// viewer reads but cannot write or administer
	if rec := doJSON(t, h, http.MethodGet, "/v1/projects", viewerToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("viewer list: status %d", rec.Code)
	}
	denied := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/v1/projects", map[string]any{"title": "Nope", "description": "d"}},
		{http.MethodPost, "/v1/tags", map[string]string{"name": "go"}},
		{http.MethodPost, "/v1/users", map[string]string{"email": "x@acme.dev", "password": "longenough", "role": "viewer"}},
		{http.MethodGet, "/v1/users", nil},
		{http.MethodGet, "/v1/activity", nil},
	}
	for _, tc := range denied {
		rec := doJSON(t, h, tc.method, tc.path, viewerToken, tc.body)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s as viewer: status %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestActivityTrailOverHTTP(t *testing.T) {
	h, _ := newTestAPI(t)
	token := register(t, h, "Acme", "admin@acme.dev")

	rec := doJSON(t, h, http.MethodPost, "/v1/tags", token, map[string]string{"name": "go"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create tag: status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/activity", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("activity: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Activity []*audit.Entry `json:"activity"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Activity) != 1 || resp.Activity[0].Action != audit.ActionTagCreate {
		t.Fatalf("unexpected activity: %+v", resp.Activity)
	}
}

func TestErrorMapping(t *testing.T) {
	h, _ := newTestAPI(t)
	token := register(t, h, "Acme", "admin@acme.dev")

	// duplicate tag name conflicts
	if rec := doJSON(t, h, http.MethodPost, "/v1/tags", token, map[string]string{"name": "go"}); rec.Code != http.StatusCreated {
		t.Fatalf("create tag: status %d", rec.Code)
	}
	rec := doJSON(t, h, http.MethodPost, "/v1/tags", token, map[string]string{"name": "GO"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate tag: status %d", rec.Code)
	}
	var conflict errorResponse
	decodeBody(t, rec, &conflict)
	if conflict.Error != "tag already exists" {
		t.Fatalf("unexpected conflict message: %q", conflict.Error)
	}

	// unknown JSON fields are rejected
	rec = doJSON(t, h, http.MethodPost, "/v1/projects", token, map[string]any{
		"title":       "Valid Title",
		"description": "d",
		"org_id":      "org-b",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: status %d body %s", rec.Code, rec.Body.String())
	}

	// empty body is a 400, not a 500
	req := httptest.NewRequest(http.MethodPost, "/v1/tags", strings.NewReader(""))
	req.Header.Set("Authorization", "Bearer "+token)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Fatalf("empty body: status %d", rec2.Code)
	}
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	h, _ := newTestAPI(t)

	if rec := doJSON(t, h, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("readyz: status %d", rec.Code)
	}
	// unknown paths are protected like everything else
	if rec := doJSON(t, h, http.MethodGet, "/nope", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown route without token: status %d", rec.Code)
	}
	token := register(t, h, "Acme", "admin@acme.dev")
	if rec := doJSON(t, h, http.MethodGet, "/nope", token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route: status %d", rec.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	h, _ := newTestAPI(t)

	rec := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("missing generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "caller-supplied")
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	if rec2.Header().Get("X-Request-Id") != "caller-supplied" {
		t.Fatalf("caller request id not echoed")
	}
}
