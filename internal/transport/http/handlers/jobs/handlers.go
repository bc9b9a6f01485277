package jobshandler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrsched/internal/domain/audit"
	"hrsched/internal/domain/auth"
	"hrsched/internal/platform/jobs"
	"hrsched/internal/transport/http/api"
	"hrsched/internal/transport/http/middleware"
	"hrsched/internal/transport/http/shared"
)

// Runner executes a job synchronously with run bookkeeping. *jobs.Service satisfies it.
type Runner interface {
	RunNow(ctx context.Context, jobType string, run jobs.RunFunc) (any, error)
}

// RunHistory lists job_runs rows. *jobs.Store satisfies it.
type RunHistory interface {
	ListRuns(ctx context.Context, jobType string, limit, offset int) ([]jobs.Run, error)
	CountRuns(ctx context.Context, jobType string) (int, error)
}

type Handler struct {
	Jobs  Runner
	Runs  RunHistory
	Tasks map[string]jobs.RunFunc
	Perms middleware.PermissionStore
	Audit shared.Auditor
}

func NewHandler(runner Runner, runs RunHistory, tasks map[string]jobs.RunFunc, perms middleware.PermissionStore, auditor shared.Auditor) *Handler {
	return &Handler{Jobs: runner, Runs: runs, Tasks: tasks, Perms: perms, Audit: auditor}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermJobsRun, h.Perms))
		r.Get("/runs", h.handleListRuns)
		r.Post("/{jobType}/run", h.handleRun)
	})
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	jobType := chi.URLParam(r, "jobType")
	task, ok := h.Tasks[jobType]
	if !ok {
		api.Fail(w, http.StatusNotFound, "not_found", "unknown job", middleware.GetRequestID(r.Context()))
		return
	}

	details, err := h.Jobs.RunNow(r.Context(), jobType, task)
	if err != nil {
		slog.Error("job run failed", "jobType", jobType, "err", err)
		api.Fail(w, http.StatusInternalServerError, "job_failed", "job run failed", middleware.GetRequestID(r.Context()))
		return
	}

	shared.Audit(r, h.Audit, user.UserID, audit.ActionRunJob, "job", jobType, nil, details)
	api.Success(w, map[string]any{"jobType": jobType, "details": details}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 50, 200)
	jobType := r.URL.Query().Get("type")
	total, err := h.Runs.CountRuns(r.Context(), jobType)
	if err != nil {
		slog.Warn("job run count failed", "err", err)
	}

	runs, err := h.Runs.ListRuns(r.Context(), jobType, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_runs_failed", "failed to list job runs", middleware.GetRequestID(r.Context()))
		return
	}

	shared.SetTotal(w, total)
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}
