package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"suppliersync/internal/database"
	"suppliersync/internal/models"
	"suppliersync/internal/reconcile"
	"suppliersync/internal/worker"

	"github.com/rs/zerolog"
)

// JobService enqueues sync jobs.
type JobService interface {
	Enqueue(ctx context.Context, supplierCode, jobType string, params models.JobParams) (*models.SyncJob, error)
}

// JobStore reads job state for the polling endpoints.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*models.SyncJob, error)
	ListJobs(ctx context.Context, supplierCode, jobType, status string, limit int) ([]models.SyncJob, error)
}

// Reconciler runs order reconciliation and fetch-log replay.
type Reconciler interface {
	Run(ctx context.Context, supplierCode string, limit int) (*reconcile.Result, error)
	RetryFetchLogs(ctx context.Context, ids []int64, extraAttempts int, policy worker.RetryPolicy) (*reconcile.RetryResult, error)
}

// Reporter builds the xlsx failure report.
type Reporter interface {
	FailureReport(ctx context.Context, supplierCode string, since time.Time) (string, error)
}

type Handlers struct {
	jobs    JobService
	store   JobStore
	rec     Reconciler
	reports Reporter
	policy  worker.RetryPolicy
	log     zerolog.Logger
}

func NewHandlers(jobs JobService, store JobStore, rec Reconciler, reports Reporter, policy worker.RetryPolicy, logger *zerolog.Logger) *Handlers {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "api").Logger()
	}
	return &Handlers{jobs: jobs, store: store, rec: rec, reports: reports, policy: policy, log: log}
}

// syncKinds maps the URL tail to a job type.
var syncKinds = map[string]string{
	"items":      models.JobItemsRaw,
	"orders":     models.JobOrdersRaw,
	"qna":        models.JobQnARaw,
	"categories": models.JobCategoriesRaw,
}

type syncRequest struct {
	SupplierCode string           `json:"supplier_code"`
	Params       models.JobParams `json:"params"`
}

// handleSync обрабатывает POST /api/v1/sync/{items|orders|qna|categories}
func (h *Handlers) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	kind := strings.TrimPrefix(r.URL.Path, "/api/v1/sync/")
	jobType, ok := syncKinds[kind]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown sync kind: "+kind)
		return
	}

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.jobs.Enqueue(r.Context(), req.SupplierCode, jobType, req.Params)
	if err != nil {
		if errors.Is(err, database.ErrJobConflict) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

// handleJob обрабатывает GET /api/v1/jobs/{id}
func (h *Handlers) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "job id is required")
		return
	}

	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", id).Msg("get job failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// handleJobs обрабатывает GET /api/v1/jobs?supplier=&type=&status=&limit=
func (h *Handlers) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	jobs, err := h.store.ListJobs(r.Context(), q.Get("supplier"), q.Get("type"), q.Get("status"), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("list jobs failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if jobs == nil {
		jobs = []models.SyncJob{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

type reconcileRequest struct {
	SupplierCode string `json:"supplier_code"`
	Limit        int    `json:"limit"`
}

// handleReconcile обрабатывает POST /api/v1/reconcile
func (h *Handlers) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SupplierCode == "" {
		writeError(w, http.StatusBadRequest, "supplier_code is required")
		return
	}

	result, err := h.rec.Run(r.Context(), req.SupplierCode, req.Limit)
	if err != nil {
		h.log.Error().Err(err).Str("supplier", req.SupplierCode).Msg("reconcile failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type retryRequest struct {
	IDs           []int64 `json:"ids"`
	ExtraAttempts int     `json:"extra_attempts"`
}

// handleReconcileRetry обрабатывает POST /api/v1/reconcile/retry
func (h *Handlers) handleReconcileRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req retryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}

	result, err := h.rec.RetryFetchLogs(r.Context(), req.IDs, req.ExtraAttempts, h.policy)
	if err != nil {
		h.log.Error().Err(err).Msg("fetch log retry failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleFailureExport обрабатывает GET /api/v1/reconcile/failures/export
func (h *Handlers) handleFailureExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	sinceHours, _ := strconv.Atoi(q.Get("since_hours"))
	if sinceHours <= 0 {
		sinceHours = 24
	}

	path, err := h.reports.FailureReport(r.Context(), q.Get("supplier"), time.Now().Add(-time.Duration(sinceHours)*time.Hour))
	if err != nil {
		h.log.Error().Err(err).Msg("failure export failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"file_path": path})
}
