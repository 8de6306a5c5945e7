package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"devfolio.org/internal/audit"
	"devfolio.org/internal/auth"
	"devfolio.org/internal/obs"
	"devfolio.org/internal/project"
)

// maxRequestBody bounds every request body read by the API.
const maxRequestBody = 1 << 20

// ReadyProbe reports whether the API's backing store is reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer. Every protected route passes through withAuth,
// which resolves the principal before any handler runs.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	projects   *project.Service
	activity   audit.Store
	readyProbe ReadyProbe
	version    string
}

func New(authSvc *auth.Service, projects *project.Service, activity audit.Store, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       authSvc,
		projects:   projects,
		activity:   activity,
		readyProbe: rp,
		version:    version,
	}

	// auth
	a.mux.HandleFunc("POST /v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("POST /v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("POST /v1/auth/refresh", a.handleRefresh)

	// projects
	a.mux.HandleFunc("POST /v1/projects", a.handleCreateProject)
	a.mux.HandleFunc("GET /v1/projects", a.handleListProjects)
	a.mux.HandleFunc("GET /v1/projects/{id}", a.handleGetProject)
	a.mux.HandleFunc("PATCH /v1/projects/{id}", a.handleUpdateProject)
	a.mux.HandleFunc("DELETE /v1/projects/{id}", a.handleDeleteProject)

	// tags
	a.mux.HandleFunc("POST /v1/tags", a.handleCreateTag)
	a.mux.HandleFunc("GET /v1/tags", a.handleListTags)

	// users and organization
	a.mux.HandleFunc("POST /v1/users", a.handleCreateUser)
	a.mux.HandleFunc("GET /v1/users", a.handleListUsers)
	a.mux.HandleFunc("GET /v1/orgs/me", a.handleOrganization)

	// activity trail
	a.mux.HandleFunc("GET /v1/activity", a.handleListActivity)

	// health/ready/metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})

	return a
}

// Handler composes the middleware chain around the mux. CORS sits
// outside withAuth so preflight requests never need a token.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, maxRequestBody)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "devfolio-api",
		"version": a.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
