package calendarhandler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrsched/internal/domain/auth"
	"hrsched/internal/domain/calendar"
	"hrsched/internal/domain/requests"
	"hrsched/internal/transport/http/handlers/handlertest"
)

type fakeCalendar struct {
	year, month int
	factoryID   string
	from, to    time.Time
}

func (f *fakeCalendar) Month(_ context.Context, year, month int, factoryID string) (calendar.Month, error) {
	f.year, f.month, f.factoryID = year, month, factoryID
	return calendar.Build(year, month, nil, nil, factoryID), nil
}

func (f *fakeCalendar) Approved(_ context.Context, from, to time.Time, factoryID string) ([]requests.Request, error) {
	f.from, f.to, f.factoryID = from, to, factoryID
	day := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	return []requests.Request{{
		ID: "r1", Type: requests.TypeTimeOff, Status: requests.StatusApproved, EmployeeID: "e1",
		EmployeeName: "Ana", StartDate: day, EndDate: day.AddDate(0, 0, 2), Reason: "Vacation",
	}}, nil
}

var employee = auth.UserContext{UserID: "u1", RoleName: auth.RoleEmployee, EmployeeID: "e1"}

func newRouter(svc Calendar) http.Handler {
	h := NewHandler(svc, auth.RolePermissionStore{})
	h.Now = func() time.Time { return time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC) }
	return handlertest.Router(h, &employee)
}

func TestMonthDefaultsToCurrentMonth(t *testing.T) {
	svc := &fakeCalendar{}
	router := newRouter(svc)

	rec := handlertest.Do(t, router, http.MethodGet, "/calendar?factoryId=f1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2024, svc.year)
	assert.Equal(t, 6, svc.month)
	assert.Equal(t, "f1", svc.factoryID)

	var view struct {
		Days []struct {
			Date string `json:"date"`
		} `json:"days"`
	}
	handlertest.Decode(t, rec, &view)
	require.Len(t, view.Days, 30)
	assert.Equal(t, "2024-06-01", view.Days[0].Date)

	rec = handlertest.Do(t, router, http.MethodGet, "/calendar?year=2024&month=2", nil)
	handlertest.Decode(t, rec, &view)
	assert.Len(t, view.Days, 29)

	rec = handlertest.Do(t, router, http.MethodGet, "/calendar?month=13", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExport(t *testing.T) {
	svc := &fakeCalendar{}
	router := newRouter(svc)

	rec := handlertest.Do(t, router, http.MethodGet, "/calendar/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), svc.from)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), svc.to)
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "BEGIN:VCALENDAR"))
	assert.Contains(t, body, "DTEND;VALUE=DATE:20240615")

	rec = handlertest.Do(t, router, http.MethodGet, "/calendar/export?format=csv&from=2024-06-01&to=2024-07-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC), svc.to)
	assert.Contains(t, rec.Body.String(), "r1,e1,Ana,time_off,2024-06-12,2024-06-14,,Vacation")

	rec = handlertest.Do(t, router, http.MethodGet, "/calendar/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = handlertest.Do(t, router, http.MethodGet, "/calendar/export?from=2024-07-01&to=2024-06-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
