package orghandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hrsched/internal/domain/audit"
	"hrsched/internal/domain/auth"
	"hrsched/internal/domain/org"
	"hrsched/internal/transport/http/api"
	"hrsched/internal/transport/http/middleware"
	"hrsched/internal/transport/http/shared"
)

const maxRosterBytes = 10 * 1024 * 1024

// Directory is the org directory. *org.Service satisfies it.
type Directory interface {
	ListEmployees(ctx context.Context, filter org.EmployeeFilter) ([]org.Employee, error)
	GetEmployee(ctx context.Context, employeeID string) (org.Employee, error)
	CreateEmployee(ctx context.Context, in org.EmployeeInput) (org.Employee, error)
	UpdateEmployee(ctx context.Context, employeeID string, in org.EmployeeInput) (org.Employee, org.Employee, error)
	ImportRoster(ctx context.Context, r io.Reader, defaultFactoryID string) (org.ImportResult, error)

	ListFactories(ctx context.Context) ([]org.Factory, error)
	GetFactory(ctx context.Context, factoryID string) (org.Factory, error)
	CreateFactory(ctx context.Context, in org.FactoryInput) (org.Factory, error)
	UpdateFactory(ctx context.Context, factoryID string, in org.FactoryInput) (org.Factory, error)

	ListGroups(ctx context.Context, factoryID string) ([]org.Group, error)
	GetGroup(ctx context.Context, groupID string) (org.Group, error)
	CreateGroup(ctx context.Context, in org.GroupInput) (org.Group, error)
	UpdateGroup(ctx context.Context, groupID string, in org.GroupInput) (org.Group, error)

	ListHolidays(ctx context.Context, from, to time.Time) ([]org.Holiday, error)
	CreateHoliday(ctx context.Context, in org.HolidayInput) (org.Holiday, error)
	DeleteHoliday(ctx context.Context, holidayID string) error
}

type Handler struct {
	Service Directory
	Perms   middleware.PermissionStore
	Audit   shared.Auditor
}

func NewHandler(service Directory, perms middleware.PermissionStore, auditor shared.Auditor) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditor}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermOrgRead, h.Perms)
	write := middleware.RequirePermission(auth.PermOrgWrite, h.Perms)

	r.Route("/employees", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/", h.handleListEmployees)
		r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Post("/", h.handleCreateEmployee)
		r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Post("/import", h.handleImportRoster)
		r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/{employeeID}", h.handleGetEmployee)
		r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Put("/{employeeID}", h.handleUpdateEmployee)
	})
	r.Route("/factories", func(r chi.Router) {
		r.With(read).Get("/", h.handleListFactories)
		r.With(write).Post("/", h.handleCreateFactory)
		r.With(read).Get("/{factoryID}", h.handleGetFactory)
		r.With(write).Put("/{factoryID}", h.handleUpdateFactory)
	})
	r.Route("/groups", func(r chi.Router) {
		r.With(read).Get("/", h.handleListGroups)
		r.With(write).Post("/", h.handleCreateGroup)
		r.With(read).Get("/{groupID}", h.handleGetGroup)
		r.With(write).Put("/{groupID}", h.handleUpdateGroup)
	})
	r.Route("/holidays", func(r chi.Router) {
		r.With(read).Get("/", h.handleListHolidays)
		r.With(write).Post("/", h.handleCreateHoliday)
		r.With(write).Delete("/{holidayID}", h.handleDeleteHoliday)
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error, entity string) {
	reqID := middleware.GetRequestID(r.Context())
	if shared.RejectValidation(w, reqID, err) {
		return
	}
	switch {
	case errors.Is(err, org.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", entity+" not found", reqID)
	case errors.Is(err, org.ErrDuplicateEmail):
		api.Fail(w, http.StatusConflict, "duplicate_email", "email already in use", reqID)
	default:
		slog.Error(entity+" request failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, entity+"_failed", "failed to process "+entity, reqID)
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := shared.DecodeJSON(r, dst); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := org.EmployeeFilter{
		Query:      strings.TrimSpace(q.Get("q")),
		FactoryID:  q.Get("factoryId"),
		GroupID:    q.Get("groupId"),
		ActiveOnly: q.Get("active") == "true",
	}
	employees, err := h.Service.ListEmployees(r.Context(), filter)
	if err != nil {
		writeError(w, r, err, "employee")
		return
	}

	page := shared.ParsePagination(r, 100, 500)
	start, end := page.Bounds(len(employees))
	shared.SetTotal(w, len(employees))
	api.Success(w, employees[start:end], middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	employee, err := h.Service.GetEmployee(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		writeError(w, r, err, "employee")
		return
	}
	api.Success(w, employee, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload org.EmployeeInput
	if !decode(w, r, &payload) {
		return
	}
	employee, err := h.Service.CreateEmployee(r.Context(), payload)
	if err != nil {
		writeError(w, r, err, "employee")
		return
	}

	shared.Audit(r, h.Audit, user.UserID, audit.ActionCreate, "employee", employee.ID, nil, employee)
	api.Created(w, employee, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload org.EmployeeInput
	if !decode(w, r, &payload) {
		return
	}
	employeeID := chi.URLParam(r, "employeeID")
	before, after, err := h.Service.UpdateEmployee(r.Context(), employeeID, payload)
	if err != nil {
		writeError(w, r, err, "employee")
		return
	}

	shared.Audit(r, h.Audit, user.UserID, audit.ActionUpdate, "employee", employeeID, before, after)
	api.Success(w, after, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleImportRoster(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	if err := r.ParseMultipartForm(maxRosterBytes); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid multipart payload", middleware.GetRequestID(r.Context()))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "roster file is required", middleware.GetRequestID(r.Context()))
		return
	}
	defer file.Close()
	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "roster must be an .xlsx workbook", middleware.GetRequestID(r.Context()))
		return
	}

	result, err := h.Service.ImportRoster(r.Context(), file, r.FormValue("factoryId"))
	if errors.Is(err, org.ErrInvalidRoster) {
		api.Fail(w, http.StatusBadRequest, "invalid_roster", err.Error(), middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		writeError(w, r, err, "roster")
		return
	}

	shared.Audit(r, h.Audit, user.UserID, audit.ActionImport, "employee", "", nil, result)
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListFactories(w http.ResponseWriter, r *http.Request) {
	factories, err := h.Service.ListFactories(r.Context())
	if err != nil {
		writeError(w, r, err, "factory")
		return
	}
	api.Success(w, factories, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetFactory(w http.ResponseWriter, r *http.Request) {
	factory, err := h.Service.GetFactory(r.Context(), chi.URLParam(r, "factoryID"))
	if err != nil {
		writeError(w, r, err, "factory")
		return
	}
	api.Success(w, factory, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateFactory(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload org.FactoryInput
	if !decode(w, r, &payload) {
		return
	}
	factory, err := h.Service.CreateFactory(r.Context(), payload)
	if err != nil {
		writeError(w, r, err, "factory")
		return
	}

	shared.Audit(r, h.Audit, user.UserID, audit.ActionCreate, "factory", factory.ID, nil, factory)
	api.Created(w, factory, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateFactory(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload org.FactoryInput
	if !decode(w, r, &payload) {
		return
	}
	factoryID := chi.URLParam(r, "factoryID")
	factory, err := h.Service.UpdateFactory(r.Context(), factoryID, payload)
	if err != nil {
		writeError(w, r, err, "factory")
		return
	}

	shared.Audit(r, h.Audit, user.UserID, audit.ActionUpdate, "factory", factoryID, nil, factory)
	api.Success(w, factory, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Service.ListGroups(r.Context(), r.URL.Query().Get("factoryId"))
	if err != nil {
		writeError(w, r, err, "group")
		return
	}
	api.Success(w, groups, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.Service.GetGroup(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, r, err, "group")
		return
	}
	api.Success(w, group, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload org.GroupInput
	if !decode(w, r, &payload) {
		return
	}
	group, err := h.Service.CreateGroup(r.Context(), payload)
	if err != nil {
		writeError(w, r, err, "group")
		return
	}

	shared.Audit(r, h.Audit, user.UserID, audit.ActionCreate, "group", group.ID, nil, group)
	api.Created(w, group, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload org.GroupInput
	if !decode(w, r, &payload) {
		return
	}
	groupID := chi.URLParam(r, "groupID")
	group, err := h.Service.UpdateGroup(r.Context(), groupID, payload)
	if err != nil {
		writeError(w, r, err, "group")
		return
	}

	shared.Audit(r, h.Audit, user.UserID, audit.ActionUpdate, "group", groupID, nil, group)
	api.Success(w, group, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListHolidays(w http.ResponseWriter, r *http.Request) {
	from, err := shared.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "from", Reason: "must be a date (YYYY-MM-DD)"}})
		return
	}
	to, err := shared.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "to", Reason: "must be a date (YYYY-MM-DD)"}})
		return
	}
	holidays, err := h.Service.ListHolidays(r.Context(), from, to)
	if err != nil {
		writeError(w, r, err, "holiday")
		return
	}
	api.Success(w, holidays, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateHoliday(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload org.HolidayInput
	if !decode(w, r, &payload) {
		return
	}
	holiday, err := h.Service.CreateHoliday(r.Context(), payload)
	if err != nil {
		writeError(w, r, err, "holiday")
		return
	}

	shared.Audit(r, h.Audit, user.UserID, audit.ActionCreate, "holiday", holiday.ID, nil, holiday)
	api.Created(w, holiday, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteHoliday(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	holidayID := chi.URLParam(r, "holidayID")
	if err := h.Service.DeleteHoliday(r.Context(), holidayID); err != nil {
		writeError(w, r, err, "holiday")
		return
	}

	shared.Audit(r, h.Audit, user.UserID, audit.ActionDelete, "holiday", holidayID, nil, nil)
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}
