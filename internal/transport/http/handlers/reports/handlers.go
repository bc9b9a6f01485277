package reportshandler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hrsched/internal/domain/auth"
	"hrsched/internal/domain/reports"
	"hrsched/internal/domain/requests"
	"hrsched/internal/transport/http/api"
	"hrsched/internal/transport/http/middleware"
	"hrsched/internal/transport/http/shared"
)

// Reporter aggregates the unified view. *reports.Service satisfies it.
type Reporter interface {
	Summary(ctx context.Context, filter requests.Filter) (reports.Summary, error)
	Breakdown(ctx context.Context, filter requests.Filter, dim string) ([]reports.Bucket, error)
	Export(ctx context.Context, w io.Writer, format string, filter requests.Filter) error
}

type Handler struct {
	Service Reporter
	Perms   middleware.PermissionStore
}

func NewHandler(service Reporter, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/summary", h.handleSummary)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/breakdown", h.handleBreakdown)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/export", h.handleExport)
	})
}

func (h *Handler) filter(w http.ResponseWriter, r *http.Request) (requests.Filter, bool) {
	filter, err := shared.RequestFilter(r)
	if err != nil {
		if !shared.RejectValidation(w, middleware.GetRequestID(r.Context()), err) {
			api.Fail(w, http.StatusBadRequest, "invalid_filter", err.Error(), middleware.GetRequestID(r.Context()))
		}
		return requests.Filter{}, false
	}
	return filter, true
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.filter(w, r)
	if !ok {
		return
	}
	summary, err := h.Service.Summary(r.Context(), filter)
	if err != nil {
		slog.Error("report summary failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to build report", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	dim := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("by")))
	if dim == "" {
		dim = reports.ByMonth
	}
	if !reports.ValidDimension(dim) {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "by", Reason: "must be one of " + strings.Join(reports.Dimensions, ", ")}})
		return
	}
	filter, ok := h.filter(w, r)
	if !ok {
		return
	}

	buckets, err := h.Service.Breakdown(r.Context(), filter, dim)
	if err != nil {
		slog.Error("report breakdown failed", "by", dim, "err", err)
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to build report", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"by": dim, "buckets": buckets}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = reports.FormatCSV
	}
	if !reports.ValidFormat(format) {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "format", Reason: "must be csv, xlsx or pdf"}})
		return
	}
	filter, ok := h.filter(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.Service.Export(r.Context(), &buf, format, filter); err != nil {
		slog.Error("report export failed", "format", format, "err", err)
		api.Fail(w, http.StatusInternalServerError, "report_export_failed", "failed to export report", middleware.GetRequestID(r.Context()))
		return
	}

	api.Attachment(w, reports.ContentType(format), "requests."+format)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("report export write failed", "err", err)
	}
}
