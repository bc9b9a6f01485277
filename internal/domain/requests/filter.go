package requests

import (
	"slices"
	"sort"
	"strings"
	"time"
)

// Filter narrows the unified view. Zero fields match everything.
// Year and Month select requests whose date range overlaps the period;
// a Month without a Year matches that month in any year.
type Filter struct {
	ID           string
	Year         int
	Month        int
	EmployeeID   string
	FactoryID    string
	GroupID      string
	Reason       string
	SubstituteID string
	Type         string
	Status       string
	From         time.Time
	To           time.Time
}

func (f Filter) Match(r Request) bool {
	if f.ID != "" && r.ID != f.ID {
		return false
	}
	if (f.Year != 0 || f.Month != 0) && !matchesPeriod(r, f.Year, f.Month) {
		return false
	}
	if !f.From.IsZero() && r.EndDate.Before(DateOf(f.From)) {
		return false
	}
	if !f.To.IsZero() && r.StartDate.After(DateOf(f.To)) {
		return false
	}
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if f.FactoryID != "" && r.FactoryID != f.FactoryID {
		return false
	}
	if f.GroupID != "" && r.GroupID != f.GroupID {
		return false
	}
	if reason := strings.TrimSpace(f.Reason); reason != "" && !strings.EqualFold(strings.TrimSpace(r.Reason), reason) {
		return false
	}
	if f.SubstituteID != "" && r.SubstituteID != f.SubstituteID {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// Apply returns the items matching f, preserving order.
func (f Filter) Apply(items []Request) []Request {
	out := make([]Request, 0, len(items))
	for _, item := range items {
		if f.Match(item) {
			out = append(out, item)
		}
	}
	return out
}

func matchesPeriod(r Request, year, month int) bool {
	switch {
	case year != 0 && month != 0:
		start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		return Overlaps(r.StartDate, r.EndDate, start, start.AddDate(0, 1, -1))
	case year != 0:
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return Overlaps(r.StartDate, r.EndDate, start, start.AddDate(1, 0, -1))
	default:
		first := time.Date(r.StartDate.Year(), r.StartDate.Month(), 1, 0, 0, 0, 0, time.UTC)
		for d := first; !d.After(r.EndDate); d = d.AddDate(0, 1, 0) {
			if int(d.Month()) == month {
				return true
			}
		}
		return false
	}
}

// Overlaps reports whether the inclusive ranges [aStart, aEnd] and [bStart, bEnd] share a day.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

// SortNewestFirst orders by start date descending, then id.
func SortNewestFirst(items []Request) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].StartDate.Equal(items[j].StartDate) {
			return items[i].StartDate.After(items[j].StartDate)
		}
		return items[i].ID < items[j].ID
	})
}

// Scope limits which requests an actor may see.
type Scope struct {
	All        bool
	EmployeeID string
	GroupIDs   []string
}

func (s Scope) Allows(r Request) bool {
	if s.All {
		return true
	}
	if s.EmployeeID != "" && r.EmployeeID == s.EmployeeID {
		return true
	}
	return r.GroupID != "" && slices.Contains(s.GroupIDs, r.GroupID)
}

func (s Scope) Apply(items []Request) []Request {
	if s.All {
		return items
	}
	out := make([]Request, 0, len(items))
	for _, item := range items {
		if s.Allows(item) {
			out = append(out, item)
		}
	}
	return out
}
