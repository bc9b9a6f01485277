package requests

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"hrsched/internal/platform/validation"
)

// Input is the request body accepted on create and the document merge
// patches are applied to on update.
type Input struct {
	Type         string `json:"type" validate:"required,oneof=time_off early_departure lateness absence"`
	EmployeeID   string `json:"employeeId,omitempty" validate:"omitempty,uuid"`
	StartDate    string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Time         string `json:"time,omitempty" validate:"omitempty,datetime=15:04"`
	Reason       string `json:"reason" validate:"required,max=500"`
	SubstituteID string `json:"substituteId,omitempty" validate:"omitempty,uuid"`
}

// Draft validates the input and converts it. The end date defaults to the
// start date; early departures and lateness require a time.
func (in Input) Draft() (Draft, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	in.Time = strings.TrimSpace(in.Time)
	verr := validation.Struct(in)
	if (in.Type == TypeEarlyDeparture || in.Type == TypeLateness) && in.Time == "" {
		verr.Add("time", "is required")
	}
	if err := verr.OrNil(); err != nil {
		return Draft{}, err
	}

	start, _ := time.Parse(time.DateOnly, in.StartDate)
	end := start
	if in.EndDate != "" {
		end, _ = time.Parse(time.DateOnly, in.EndDate)
	}
	d := Draft{
		Type:         in.Type,
		EmployeeID:   in.EmployeeID,
		StartDate:    start,
		EndDate:      end,
		Reason:       in.Reason,
		SubstituteID: in.SubstituteID,
	}
	if in.Type == TypeEarlyDeparture || in.Type == TypeLateness {
		d.Time = NormalizeClock(in.Time)
	}
	return d, nil
}

// InputOf renders a stored request back into its editable input form.
func InputOf(r Request) Input {
	in := Input{
		Type:         r.Type,
		EmployeeID:   r.EmployeeID,
		StartDate:    r.StartDate.Format(time.DateOnly),
		Time:         r.Time,
		Reason:       r.Reason,
		SubstituteID: r.SubstituteID,
	}
	if !r.EndDate.Equal(r.StartDate) {
		in.EndDate = r.EndDate.Format(time.DateOnly)
	}
	return in
}

// ApplyPatch applies an RFC 7386 merge patch to the input of current.
// Type and employee cannot be changed.
func ApplyPatch(current Request, patch []byte) (Input, error) {
	original, err := json.Marshal(InputOf(current))
	if err != nil {
		return Input{}, err
	}
	merged, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	var out Input
	if err := json.Unmarshal(merged, &out); err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	verr := &validation.Error{}
	if out.Type != current.Type {
		verr.Add("type", "cannot be changed")
	}
	if out.EmployeeID != current.EmployeeID {
		verr.Add("employeeId", "cannot be changed")
	}
	if err := verr.OrNil(); err != nil {
		return Input{}, err
	}
	return out, nil
}

// NormalizeClock zero-pads an H:MM or HH:MM value to HH:MM. Values that do
// not parse are returned unchanged.
func NormalizeClock(value string) string {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return value
	}
	return t.Format("15:04")
}

// ClockMinutes converts an H:MM or HH:MM value to minutes after midnight.
func ClockMinutes(value string) (int, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
