package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nordfund/jobq/internal/jobstore"
	"github.com/nordfund/jobq/internal/queue"
	"github.com/nordfund/jobq/internal/runtime"
)

// JobsController handles job enqueue, inspection, and operator actions.
type JobsController struct {
	rt   *runtime.Runtime
	auth Authorizer
}

// NewJobsController creates a new jobs controller.
func NewJobsController(rt *runtime.Runtime, auth Authorizer) *JobsController {
	return &JobsController{rt: rt, auth: auth}
}

// RegisterRoutes registers job routes with the given router.
func (c *JobsController) RegisterRoutes(r chi.Router) {
	r.Post("/v1/jobs/enqueue", c.handleEnqueue)
	r.Get("/v1/jobs", c.handleList)
	r.Get("/v1/jobs/get", c.handleGet)
	r.Get("/v1/jobs/dlq", c.handleListDLQ)
	r.Post("/v1/jobs/requeue", c.handleRequeue)
}

func (c *JobsController) tenant(r *http.Request) string {
	if t := r.URL.Query().Get("tenant"); t != "" {
		return t
	}
	return c.rt.Config().DefaultTenant
}

type enqueueReq struct {
	Tenant         string          `json:"tenant"`
	Type           string          `json:"type"`
	Payload        json.RawMessage `json:"payload"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

type enqueueResp struct {
	Job     *jobstore.Job `json:"job"`
	Deduped bool          `json:"deduped"`
}

// handleEnqueue submits a job. The same (type, idempotency key) pair always
// resolves to the same job; resubmissions return the existing record with
// deduped=true.
// POST /v1/jobs/enqueue
func (c *JobsController) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}
	tenant := req.Tenant
	if tenant == "" {
		tenant = c.rt.Config().DefaultTenant
	}
	job, deduped, err := c.rt.Queue().Enqueue(r.Context(), tenant, req.Type, req.Payload, req.IdempotencyKey, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}
	if !deduped {
		w.WriteHeader(http.StatusCreated)
	}
	writeJSON(w, enqueueResp{Job: job, Deduped: deduped})
}

// handleList lists jobs, optionally narrowed by status and a CEL filter
// expression over job fields.
// GET /v1/jobs?tenant=<t>&status=<s>&filter=<cel>&limit=<n>
func (c *JobsController) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := jobstore.Status(q.Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	jobs, err := c.rt.Queue().List(r.Context(), c.tenant(r), status, q.Get("filter"), parseLimit(q.Get("limit"), 100))
	if err != nil {
		if errors.Is(err, queue.ErrBadFilter) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	writeJSON(w, map[string]any{"jobs": jobs})
}

// handleGet fetches one job by id.
// GET /v1/jobs/get?tenant=<t>&id=<id>
func (c *JobsController) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	job, err := c.rt.Queue().Get(r.Context(), c.tenant(r), id)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}
	writeJSON(w, job)
}

// handleListDLQ lists dead-lettered jobs awaiting operator review.
// GET /v1/jobs/dlq?tenant=<t>&limit=<n>
func (c *JobsController) handleListDLQ(w http.ResponseWriter, r *http.Request) {
	jobs, err := c.rt.Queue().ListDeadLetter(r.Context(), c.tenant(r), parseLimit(r.URL.Query().Get("limit"), 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list dead-letter jobs")
		return
	}
	writeJSON(w, map[string]any{"jobs": jobs})
}

type requeueReq struct {
	Tenant string `json:"tenant"`
	ID     string `json:"id"`
}

// handleRequeue puts a dead-lettered or stuck job back in the queue. Requires
// an operator role; the acting principal is recorded in the audit trail.
// POST /v1/jobs/requeue
func (c *JobsController) handleRequeue(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromRequest(r, c.rt.Config().RunToken)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid credentials")
		return
	}
	if !c.auth.Allow(p, CapRequeue) {
		writeError(w, http.StatusForbidden, "requeue requires an operator role")
		return
	}
	var req requeueReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	tenant := req.Tenant
	if tenant == "" {
		tenant = c.rt.Config().DefaultTenant
	}
	job, err := c.rt.Queue().Requeue(r.Context(), tenant, req.ID, p.Name, 0)
	if err != nil {
		switch {
		case errors.Is(err, jobstore.ErrNotFound):
			writeError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, queue.ErrNotRequeueable):
			writeError(w, http.StatusConflict, "job not requeueable")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to requeue job")
		}
		return
	}
	writeJSON(w, job)
}
