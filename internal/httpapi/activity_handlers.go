package httpapi

import (
	"net/http"

	"devfolio.org/internal/auth"
)

// handleListActivity returns the organization's audit trail, newest
// first. The view-audit capability is evaluated here because the trail
// has no service of its own; the store scopes the query by tenant.
func (a *API) handleListActivity(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}
	if err := auth.Guard(principal, auth.ActionViewAudit, auth.TenantMeta(principal.OrgID)); err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	entries, err := a.activity.List(r.Context(), principal.OrgID, queryInt(q.Get("limit")), queryInt(q.Get("offset")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}
