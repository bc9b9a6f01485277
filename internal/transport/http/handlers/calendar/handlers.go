package calendarhandler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hrsched/internal/domain/auth"
	"hrsched/internal/domain/calendar"
	"hrsched/internal/domain/requests"
	"hrsched/internal/transport/http/api"
	"hrsched/internal/transport/http/middleware"
	"hrsched/internal/transport/http/shared"
)

// Calendar builds month grids and export rows. *calendar.Service satisfies it.
type Calendar interface {
	Month(ctx context.Context, year, month int, factoryID string) (calendar.Month, error)
	Approved(ctx context.Context, from, to time.Time, factoryID string) ([]requests.Request, error)
}

type Handler struct {
	Service Calendar
	Perms   middleware.PermissionStore
	Now     func() time.Time
}

func NewHandler(service Calendar, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms, Now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/calendar", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermCalendarRead, h.Perms)).Get("/", h.handleMonth)
		r.With(middleware.RequirePermission(auth.PermCalendarRead, h.Perms)).Get("/export", h.handleExport)
	})
}

func (h *Handler) handleMonth(w http.ResponseWriter, r *http.Request) {
	now := h.Now().UTC()
	year, okYear := shared.QueryInt(r, "year")
	month, okMonth := shared.QueryInt(r, "month")
	var issues []shared.ValidationIssue
	if !okYear || year < 0 || year > 9999 {
		issues = append(issues, shared.ValidationIssue{Field: "year", Reason: "must be a year"})
	}
	if !okMonth || month < 0 || month > 12 {
		issues = append(issues, shared.ValidationIssue{Field: "month", Reason: "must be between 1 and 12"})
	}
	if len(issues) > 0 {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), issues)
		return
	}
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}

	view, err := h.Service.Month(r.Context(), year, month, r.URL.Query().Get("factoryId"))
	if err != nil {
		slog.Error("calendar month failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "calendar_failed", "failed to load calendar", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, view, middleware.GetRequestID(r.Context()))
}

// handleExport streams approved requests as iCalendar or CSV. The range
// defaults to the current month.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "ics"
	}
	if format != "ics" && format != "csv" {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "format", Reason: "must be ics or csv"}})
		return
	}

	from, errFrom := shared.ParseDate(r.URL.Query().Get("from"))
	to, errTo := shared.ParseDate(r.URL.Query().Get("to"))
	if errFrom != nil || errTo != nil || (!from.IsZero() && !to.IsZero() && to.Before(from)) {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "from", Reason: "from and to must be dates with from <= to"}})
		return
	}
	if from.IsZero() && to.IsZero() {
		now := h.Now().UTC()
		from, to = calendar.Bounds(now.Year(), int(now.Month()))
	}

	items, err := h.Service.Approved(r.Context(), from, to, r.URL.Query().Get("factoryId"))
	if err != nil {
		slog.Error("calendar export failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "calendar_failed", "failed to load calendar", middleware.GetRequestID(r.Context()))
		return
	}

	if format == "csv" {
		api.Attachment(w, "text/csv", "calendar.csv")
		if err := calendar.WriteCSV(w, items); err != nil {
			slog.Warn("calendar csv write failed", "err", err)
		}
		return
	}
	api.Attachment(w, "text/calendar; charset=utf-8", "calendar.ics")
	if err := calendar.WriteICS(w, items, h.Now()); err != nil {
		slog.Warn("calendar ics write failed", "err", err)
	}
}
