package requesthandler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hrsched/internal/domain/audit"
	"hrsched/internal/domain/auth"
	"hrsched/internal/domain/notifications"
	"hrsched/internal/domain/requests"
	"hrsched/internal/platform/jobs"
	"hrsched/internal/transport/http/api"
	"hrsched/internal/transport/http/middleware"
	"hrsched/internal/transport/http/shared"
)

const (
	entityRequest   = "request"
	announceTimeout = 15 * time.Second
)

// RequestService is the request workflow. *requests.Service satisfies it.
type RequestService interface {
	List(ctx context.Context, actor auth.UserContext, filter requests.Filter, limit, offset int) (requests.ListResult, error)
	Get(ctx context.Context, id string) (requests.Request, error)
	CanView(ctx context.Context, actor auth.UserContext, req requests.Request) (bool, error)
	Create(ctx context.Context, actor auth.UserContext, in requests.Input) (requests.CreateResult, error)
	Update(ctx context.Context, actor auth.UserContext, id string, patch []byte) (requests.Request, requests.Request, error)
	Approve(ctx context.Context, actor auth.UserContext, id, note string) (requests.DecisionResult, error)
	Reject(ctx context.Context, actor auth.UserContext, id, note string) (requests.DecisionResult, error)
	Delete(ctx context.Context, actor auth.UserContext, id string) (requests.Request, error)
}

// Notifier fans request events out to users. *notifications.Service satisfies it.
type Notifier interface {
	Create(ctx context.Context, userID, ntype, title, body string) error
	Notify(ctx context.Context, userIDs []string, ntype, title, body string) error
	Announce(ctx context.Context, text string)
}

// Enqueuer runs work off the request path. *jobs.Service satisfies it.
type Enqueuer interface {
	Enqueue(jobType string, run jobs.RunFunc) bool
}

type Handler struct {
	Service     RequestService
	Perms       middleware.PermissionStore
	Notify      Notifier
	Audit       shared.Auditor
	Idempotency middleware.IdempotencyKeys
	// Jobs receives chat announcements. When nil they run on a detached goroutine.
	Jobs Enqueuer
}

func NewHandler(service RequestService, perms middleware.PermissionStore, notify Notifier, auditor shared.Auditor, keys middleware.IdempotencyKeys) *Handler {
	return &Handler{Service: service, Perms: perms, Notify: notify, Audit: auditor, Idempotency: keys}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/requests", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermRequestsRead, h.Perms)).Get("/", h.handleList)
		create := r.With(middleware.RequirePermission(auth.PermRequestsWrite, h.Perms))
		if h.Idempotency != nil {
			create = create.With(middleware.Idempotency(h.Idempotency))
		}
		create.Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermRequestsRead, h.Perms)).Get("/{requestID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermRequestsWrite, h.Perms)).Patch("/{requestID}", h.handleUpdate)
		r.With(middleware.RequirePermission(auth.PermRequestsWrite, h.Perms)).Delete("/{requestID}", h.handleDelete)
		r.With(middleware.RequirePermission(auth.PermRequestsDecide, h.Perms)).Post("/{requestID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermRequestsDecide, h.Perms)).Post("/{requestID}/reject", h.handleReject)
	})
}

// writeError maps workflow errors onto the response envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallbackCode, fallbackMessage string) {
	reqID := middleware.GetRequestID(r.Context())
	if shared.RejectValidation(w, reqID, err) {
		return
	}
	var perr *requests.PolicyError
	switch {
	case errors.As(err, &perr):
		api.Fail(w, http.StatusUnprocessableEntity, perr.Code, perr.Message, reqID)
	case errors.Is(err, requests.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "request not found", reqID)
	case errors.Is(err, requests.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", reqID)
	case errors.Is(err, requests.ErrInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", "request is no longer pending", reqID)
	case errors.Is(err, requests.ErrInvalidPatch):
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid merge patch", reqID)
	default:
		slog.Error(fallbackMessage, "err", err)
		api.Fail(w, http.StatusInternalServerError, fallbackCode, fallbackMessage, reqID)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	filter, err := shared.RequestFilter(r)
	if err != nil {
		writeError(w, r, err, "request_list_failed", "failed to list requests")
		return
	}
	page := shared.ParsePagination(r, 100, 500)
	result, err := h.Service.List(r.Context(), user, filter, page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err, "request_list_failed", "failed to list requests")
		return
	}

	shared.SetTotal(w, result.Total)
	api.Success(w, result.Requests, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	req, err := h.Service.Get(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, r, err, "request_get_failed", "failed to load request")
		return
	}
	allowed, err := h.Service.CanView(r.Context(), user, req)
	if err != nil {
		writeError(w, r, err, "request_get_failed", "failed to load request")
		return
	}
	if !allowed {
		// Hidden requests look missing rather than forbidden.
		api.Fail(w, http.StatusNotFound, "not_found", "request not found", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload requests.Input
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	result, err := h.Service.Create(r.Context(), user, payload)
	if err != nil {
		writeError(w, r, err, "request_create_failed", "failed to create request")
		return
	}
	created := result.Request

	shared.Audit(r, h.Audit, user.UserID, audit.ActionCreate, entityRequest, created.ID, nil, created)
	if h.Notify != nil {
		title := "New " + typeLabel(created.Type) + " request"
		body := fmt.Sprintf("%s requested %s for %s.", displayName(created), typeLabel(created.Type), dateRange(created))
		if err := h.Notify.Notify(r.Context(), result.LeaderUserIDs, notifications.TypeRequestSubmitted, title, body); err != nil {
			slog.Warn("request submitted notification failed", "requestId", created.ID, "err", err)
		}
		h.announce(r.Context(), created.ID, body)
	}

	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

// announce posts to the team chat without holding up the response.
func (h *Handler) announce(ctx context.Context, requestID, text string) {
	run := func(ctx context.Context) (any, error) {
		h.Notify.Announce(ctx, text)
		return map[string]any{"requestId": requestID}, nil
	}
	if h.Jobs != nil {
		if !h.Jobs.Enqueue(jobs.JobRequestAnnounce, run) {
			slog.Warn("request announcement dropped", "requestId", requestID)
		}
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), announceTimeout)
		defer cancel()
		_, _ = run(ctx)
	}()
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	patch, err := io.ReadAll(r.Body)
	if err != nil || len(strings.TrimSpace(string(patch))) == 0 {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	requestID := chi.URLParam(r, "requestID")
	before, after, err := h.Service.Update(r.Context(), user, requestID, patch)
	if err != nil {
		writeError(w, r, err, "request_update_failed", "failed to update request")
		return
	}

	shared.Audit(r, h.Audit, user.UserID, audit.ActionUpdate, entityRequest, requestID, before, after)
	api.Success(w, after, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	requestID := chi.URLParam(r, "requestID")
	deleted, err := h.Service.Delete(r.Context(), user, requestID)
	if err != nil {
		writeError(w, r, err, "request_delete_failed", "failed to delete request")
		return
	}

	shared.Audit(r, h.Audit, user.UserID, audit.ActionDelete, entityRequest, requestID, deleted, nil)
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

type decisionRequest struct {
	Note string `json:"note"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleDecision(w, r, requests.StatusApproved)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.handleDecision(w, r, requests.StatusRejected)
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request, status string) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload decisionRequest
	if err := shared.DecodeJSON(r, &payload); err != nil && !errors.Is(err, shared.ErrEmptyBody) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	note := strings.TrimSpace(payload.Note)
	if len(note) > 500 {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "note", Reason: "must be at most 500 characters"}})
		return
	}

	requestID := chi.URLParam(r, "requestID")
	decide, action, ntype, verb := h.Service.Approve, audit.ActionApprove, notifications.TypeRequestApproved, "approved"
	if status == requests.StatusRejected {
		decide, action, ntype, verb = h.Service.Reject, audit.ActionReject, notifications.TypeRequestRejected, "rejected"
	}
	result, err := decide(r.Context(), user, requestID, note)
	if err != nil {
		writeError(w, r, err, "request_decision_failed", "failed to decide request")
		return
	}

	shared.Audit(r, h.Audit, user.UserID, action, entityRequest, requestID, result.Before, result.Request)
	if h.Notify != nil && result.RequesterUserID != "" {
		title := "Request " + verb
		body := fmt.Sprintf("Your %s request for %s was %s.", typeLabel(result.Request.Type), dateRange(result.Request), verb)
		if note != "" {
			body += " Note: " + note
		}
		if err := h.Notify.Create(r.Context(), result.RequesterUserID, ntype, title, body); err != nil {
			slog.Warn("request decision notification failed", "requestId", requestID, "err", err)
		}
	}

	api.Success(w, result.Request, middleware.GetRequestID(r.Context()))
}

func typeLabel(t string) string {
	return strings.ReplaceAll(t, "_", " ")
}

func displayName(req requests.Request) string {
	if req.EmployeeName != "" {
		return req.EmployeeName
	}
	return "An employee"
}

func dateRange(req requests.Request) string {
	start := req.StartDate.Format("2006-01-02")
	out := start
	if end := req.EndDate.Format("2006-01-02"); end != start {
		out += " to " + end
	}
	if req.Time != "" {
		out += " at " + req.Time
	}
	return out
}
