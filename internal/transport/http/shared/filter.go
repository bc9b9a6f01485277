package shared

import (
	"net/http"
	"strings"

	"hrsched/internal/domain/requests"
	"hrsched/internal/platform/validation"
)

// RequestFilter reads the unified-view filter from the query string:
// year, month, employeeId, factoryId, groupId, reason, substituteId, type,
// status, from and to.
func RequestFilter(r *http.Request) (requests.Filter, error) {
	q := r.URL.Query()
	verr := &validation.Error{}

	year, ok := QueryInt(r, "year")
	if !ok || year < 0 {
		verr.Add("year", "must be a year")
	}
	month, ok := QueryInt(r, "month")
	if !ok || month < 0 || month > 12 {
		verr.Add("month", "must be between 1 and 12")
	}
	from, err := ParseDate(q.Get("from"))
	if err != nil {
		verr.Add("from", "must be a date (YYYY-MM-DD)")
	}
	to, err := ParseDate(q.Get("to"))
	if err != nil {
		verr.Add("to", "must be a date (YYYY-MM-DD)")
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		verr.Add("to", "must not be before from")
	}

	reqType := strings.TrimSpace(q.Get("type"))
	switch reqType {
	case "", requests.TypeTimeOff, requests.TypeEarlyDeparture, requests.TypeLateness, requests.TypeAbsence:
	default:
		verr.Add("type", "is not a request type")
	}
	status := strings.TrimSpace(q.Get("status"))
	switch status {
	case "", requests.StatusPending, requests.StatusApproved, requests.StatusRejected:
	default:
		verr.Add("status", "is not a request status")
	}

	if err := verr.OrNil(); err != nil {
		return requests.Filter{}, err
	}
	return requests.Filter{
		Year:         year,
		Month:        month,
		EmployeeID:   strings.TrimSpace(q.Get("employeeId")),
		FactoryID:    strings.TrimSpace(q.Get("factoryId")),
		GroupID:      strings.TrimSpace(q.Get("groupId")),
		Reason:       q.Get("reason"),
		SubstituteID: strings.TrimSpace(q.Get("substituteId")),
		Type:         reqType,
		Status:       status,
		From:         from,
		To:           to,
	}, nil
}
