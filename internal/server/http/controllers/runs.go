package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nordfund/jobq/internal/runtime"
)

// RunsController handles worker run triggering and run history.
type RunsController struct {
	rt   *runtime.Runtime
	auth Authorizer
}

// NewRunsController creates a new runs controller.
func NewRunsController(rt *runtime.Runtime, auth Authorizer) *RunsController {
	return &RunsController{rt: rt, auth: auth}
}

// RegisterRoutes registers run routes with the given router.
func (c *RunsController) RegisterRoutes(r chi.Router) {
	r.Post("/v1/runs/trigger", c.handleTrigger)
	r.Get("/v1/runs", c.handleList)
}

type triggerReq struct {
	Tenant string `json:"tenant"`
	Limit  int    `json:"limit"`
}

// handleTrigger executes one synchronous worker pass over due jobs and
// returns the run summary. Callers present either the run token (the portal's
// timer) or a principal whose role may trigger runs.
// POST /v1/runs/trigger
func (c *RunsController) handleTrigger(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromRequest(r, c.rt.Config().RunToken)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid credentials")
		return
	}
	if !c.auth.Allow(p, CapTriggerRuns) {
		writeError(w, http.StatusForbidden, "role may not trigger runs")
		return
	}
	var req triggerReq
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	tenant := req.Tenant
	if tenant == "" {
		tenant = c.rt.Config().DefaultTenant
	}
	limit := req.Limit
	if limit <= 0 {
		limit = c.rt.Config().Queue.RunBatchLimit
	}
	summary, err := c.rt.Queue().RunOnce(r.Context(), tenant, limit, p.Name, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Worker run failed")
		return
	}
	writeJSON(w, summary)
}

// handleList returns recent worker runs, newest first.
// GET /v1/runs?tenant=<t>&limit=<n>
func (c *RunsController) handleList(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant")
	if tenant == "" {
		tenant = c.rt.Config().DefaultTenant
	}
	runs, err := c.rt.Auditor().List(r.Context(), tenant, parseLimit(r.URL.Query().Get("limit"), 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	writeJSON(w, map[string]any{"runs": runs})
}
