package requests

import (
	"fmt"
	"time"
)

const (
	CodeMorningShiftRestriction = "morning_shift_restriction"
	CodeInsufficientNotice      = "insufficient_notice"
	CodeDailyApprovalLimit      = "daily_approval_limit"
	CodeInvalidSubstitute       = "invalid_substitute"
	CodeInvalidDates            = "invalid_dates"
)

// PolicyError is a business rule violation surfaced to the user by code.
type PolicyError struct {
	Code    string
	Message string
}

func (e *PolicyError) Error() string {
	return e.Code + ": " + e.Message
}

func policyErr(code, format string, args ...any) error {
	return &PolicyError{Code: code, Message: fmt.Sprintf(format, args...)}
}

type Policy struct {
	MinNoticeDays            int
	DailyApprovalLimit       int
	MorningShiftMinDeparture string
}

// Draft is a validated request body before it is persisted.
type Draft struct {
	Type         string
	EmployeeID   string
	StartDate    time.Time
	EndDate      time.Time
	Time         string
	Reason       string
	SubstituteID string
}

func CheckDates(d Draft) error {
	if d.EndDate.Before(d.StartDate) {
		return policyErr(CodeInvalidDates, "end date is before start date")
	}
	if (d.Type == TypeEarlyDeparture || d.Type == TypeLateness) && !d.EndDate.Equal(d.StartDate) {
		return policyErr(CodeInvalidDates, "%s must cover a single day", d.Type)
	}
	return nil
}

// CheckNotice enforces advance notice. Absence and lateness are reported
// after the fact and are exempt; early departures may be filed the same day.
func (p Policy) CheckNotice(d Draft, today time.Time) error {
	today = DateOf(today)
	switch d.Type {
	case TypeTimeOff:
		earliest := today.AddDate(0, 0, p.MinNoticeDays)
		if d.StartDate.Before(earliest) {
			return policyErr(CodeInsufficientNotice, "time off must be requested at least %d days in advance", p.MinNoticeDays)
		}
	case TypeEarlyDeparture:
		if d.StartDate.Before(today) {
			return policyErr(CodeInsufficientNotice, "early departure cannot be requested for a past day")
		}
	}
	return nil
}

func (p Policy) CheckMorningShift(d Draft, shift string) error {
	if d.Type != TypeEarlyDeparture || shift != "morning" || p.MorningShiftMinDeparture == "" {
		return nil
	}
	limit, ok := ClockMinutes(p.MorningShiftMinDeparture)
	if !ok {
		return nil
	}
	departure, ok := ClockMinutes(d.Time)
	if !ok || departure < limit {
		return policyErr(CodeMorningShiftRestriction, "morning shift employees may not leave before %s", NormalizeClock(p.MorningShiftMinDeparture))
	}
	return nil
}

func CheckSubstitute(requester EmployeeRef, substitute EmployeeRef) error {
	switch {
	case substitute.ID == requester.ID:
		return policyErr(CodeInvalidSubstitute, "an employee cannot substitute for themselves")
	case !substitute.Active:
		return policyErr(CodeInvalidSubstitute, "substitute is not an active employee")
	case substitute.FactoryID != requester.FactoryID:
		return policyErr(CodeInvalidSubstitute, "substitute must work in the same factory")
	}
	return nil
}

// CheckDailyLimit fails when approving candidate would put more than limit
// approved full-day requests of its factory on any day it covers. A limit of
// zero disables the check.
func CheckDailyLimit(candidate Request, approved []Request, limit int) error {
	if limit <= 0 || !candidate.CountsTowardDailyLimit() {
		return nil
	}
	for day := candidate.StartDate; !day.After(candidate.EndDate); day = day.AddDate(0, 0, 1) {
		count := 1
		for _, other := range approved {
			if other.ID == candidate.ID || other.Status != StatusApproved || !other.CountsTowardDailyLimit() {
				continue
			}
			if other.FactoryID != candidate.FactoryID || !other.Covers(day) {
				continue
			}
			count++
		}
		if count > limit {
			return policyErr(CodeDailyApprovalLimit, "daily approval limit of %d reached on %s", limit, day.Format(time.DateOnly))
		}
	}
	return nil
}
