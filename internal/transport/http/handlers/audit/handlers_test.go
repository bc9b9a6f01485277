package audithandler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrsched/internal/domain/audit"
	"hrsched/internal/domain/auth"
	"hrsched/internal/transport/http/handlers/handlertest"
)

type fakeTrail struct {
	filter  audit.Filter
	details bool
	limit   int
}

func (f *fakeTrail) Count(context.Context, audit.Filter) (int, error) { return 7, nil }

func (f *fakeTrail) List(_ context.Context, filter audit.Filter, includeDetails bool, limit, _ int) ([]audit.Event, error) {
	f.filter, f.details, f.limit = filter, includeDetails, limit
	return []audit.Event{{
		ID: "ev1", ActorID: "u-admin", Action: audit.ActionApprove, EntityType: "request", EntityID: "r1",
		RequestID: "req-1", IP: "203.0.113.7", CreatedAt: time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC),
	}}, nil
}

var admin = auth.UserContext{UserID: "u-admin", RoleName: auth.RoleAdmin}

func TestListEvents(t *testing.T) {
	trail := &fakeTrail{}
	router := handlertest.Router(NewHandler(trail, auth.RolePermissionStore{}), &admin)

	rec := handlertest.Do(t, router, http.MethodGet, "/audit/events?action=approve&entityType=request&from=2024-06-01&to=2024-06-10&includeDetails=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", rec.Header().Get("X-Total-Count"))
	assert.True(t, trail.details)
	assert.Equal(t, audit.Filter{
		Action:     "approve",
		EntityType: "request",
		From:       time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC),
	}, trail.filter)

	rec = handlertest.Do(t, router, http.MethodGet, "/audit/events?from=june", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportEvents(t *testing.T) {
	trail := &fakeTrail{}
	router := handlertest.Router(NewHandler(trail, auth.RolePermissionStore{}), &admin)

	rec := handlertest.Do(t, router, http.MethodGet, "/audit/events/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxExportEvents, trail.limit)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ev1,u-admin,approve,request,r1,req-1,203.0.113.7,2024-06-10T09:30:00Z", lines[1])
}

func TestAuditIsAdminOnly(t *testing.T) {
	leader := auth.UserContext{UserID: "u-lead", RoleName: auth.RoleLeader}
	router := handlertest.Router(NewHandler(&fakeTrail{}, auth.RolePermissionStore{}), &leader)
	assert.Equal(t, http.StatusForbidden, handlertest.Do(t, router, http.MethodGet, "/audit/events", nil).Code)
}
