package requests

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	TypeTimeOff        = "time_off"
	TypeEarlyDeparture = "early_departure"
	TypeLateness       = "lateness"
	TypeAbsence        = "absence"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Source names the table a unified request was read from.
const (
	SourceRequests        = "requests"
	SourceTimeOff         = "time_off"
	SourceEarlyDepartures = "early_departures"
	SourceLateness        = "lateness"
)

var (
	ErrNotFound     = errors.New("request not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid request state")
	ErrInvalidPatch = errors.New("invalid merge patch")
)

// Request is the normalized shape every source table is merged into.
type Request struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	EmployeeID   string     `json:"employeeId"`
	EmployeeName string     `json:"employeeName,omitempty"`
	FactoryID    string     `json:"factoryId,omitempty"`
	GroupID      string     `json:"groupId,omitempty"`
	StartDate    time.Time  `json:"startDate"`
	EndDate      time.Time  `json:"endDate"`
	Time         string     `json:"time,omitempty"`
	Reason       string     `json:"reason"`
	SubstituteID string     `json:"substituteId,omitempty"`
	DecidedBy    string     `json:"decidedBy,omitempty"`
	DecidedAt    *time.Time `json:"decidedAt,omitempty"`
	DecisionNote string     `json:"decisionNote,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	Source       string     `json:"source"`
}

// MarshalJSON renders the date range as YYYY-MM-DD.
func (r Request) MarshalJSON() ([]byte, error) {
	type alias Request
	return json.Marshal(struct {
		alias
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	}{
		alias:     alias(r),
		StartDate: r.StartDate.Format(time.DateOnly),
		EndDate:   r.EndDate.Format(time.DateOnly),
	})
}

// Days is the inclusive number of calendar days the request spans.
func (r Request) Days() int {
	if r.EndDate.Before(r.StartDate) {
		return 1
	}
	return int(r.EndDate.Sub(r.StartDate).Hours()/24) + 1
}

// Covers reports whether day falls inside the request's date range.
func (r Request) Covers(day time.Time) bool {
	day = DateOf(day)
	return !day.Before(r.StartDate) && !day.After(r.EndDate)
}

// CountsTowardDailyLimit is true for requests that take the employee off the floor for whole days.
func (r Request) CountsTowardDailyLimit() bool {
	return r.Type == TypeTimeOff || r.Type == TypeAbsence
}

func (r Request) Pending() bool {
	return r.Status == StatusPending
}

type RequestRow struct {
	ID           string
	Type         string
	Status       string
	EmployeeID   string
	StartDate    time.Time
	EndDate      time.Time
	Reason       string
	SubstituteID string
	DecidedBy    string
	DecidedAt    *time.Time
	DecisionNote string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type TimeOffRow struct {
	ID         string
	EmployeeID string
	StartDate  time.Time
	EndDate    time.Time
	Reason     string
	Status     string
	CreatedAt  time.Time
}

type EarlyDepartureRow struct {
	ID            string
	EmployeeID    string
	Date          time.Time
	DepartureTime string
	Reason        string
	Status        string
	CreatedAt     time.Time
}

type LatenessRow struct {
	ID          string
	EmployeeID  string
	Date        time.Time
	ArrivalTime string
	Reason      string
	Status      string
	CreatedAt   time.Time
}

// EmployeeRef is the slice of the directory the request workflow needs.
type EmployeeRef struct {
	ID        string
	UserID    string
	Name      string
	Email     string
	FactoryID string
	GroupID   string
	Shift     string
	Active    bool
}

type GroupLeaders struct {
	PrimaryID       string
	SecondaryID     string
	PrimaryUserID   string
	SecondaryUserID string
}

func (g GroupLeaders) Includes(employeeID string) bool {
	return employeeID != "" && (g.PrimaryID == employeeID || g.SecondaryID == employeeID)
}

// UserIDs returns the leaders' login ids, skipping leaders without a login.
func (g GroupLeaders) UserIDs() []string {
	var out []string
	for _, id := range []string{g.PrimaryUserID, g.SecondaryUserID} {
		if id != "" && (len(out) == 0 || out[0] != id) {
			out = append(out, id)
		}
	}
	return out
}

// Snapshot holds the raw rows of the four request tables plus the directory.
type Snapshot struct {
	Requests        []RequestRow
	TimeOff         []TimeOffRow
	EarlyDepartures []EarlyDepartureRow
	Lateness        []LatenessRow
	Employees       []EmployeeRef
}

type CreateResult struct {
	Request       Request
	LeaderUserIDs []string
}

type DecisionResult struct {
	Request         Request
	Before          Request
	RequesterUserID string
}

type ListResult struct {
	Requests []Request
	Total    int
}

// LeaderDigest lists the pending requests awaiting one leader.
type LeaderDigest struct {
	UserID  string
	Pending []Request
}

// DateOf truncates t to its calendar date at UTC midnight, the form DATE columns scan into.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
