package reports

import (
	"fmt"
	"sort"
	"strings"

	"hrsched/internal/domain/requests"
)

const (
	ByMonth    = "month"
	ByFactory  = "factory"
	ByEmployee = "employee"
	ByReason   = "reason"
	ByType     = "type"
	ByStatus   = "status"
)

var Dimensions = []string{ByMonth, ByFactory, ByEmployee, ByReason, ByType, ByStatus}

func ValidDimension(dim string) bool {
	for _, d := range Dimensions {
		if d == dim {
			return true
		}
	}
	return false
}

// Bucket is one group of a breakdown: how many requests and how many
// calendar days they cover.
type Bucket struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
	Days  int    `json:"days"`
}

func keyOf(req requests.Request, dim string) (string, string) {
	switch dim {
	case ByMonth:
		key := req.StartDate.Format("2006-01")
		return key, key
	case ByFactory:
		return req.FactoryID, req.FactoryID
	case ByEmployee:
		label := req.EmployeeName
		if label == "" {
			label = req.EmployeeID
		}
		return req.EmployeeID, label
	case ByReason:
		reason := strings.TrimSpace(req.Reason)
		return strings.ToLower(reason), reason
	case ByType:
		return req.Type, req.Type
	case ByStatus:
		return req.Status, req.Status
	}
	return "", ""
}

// GroupBy counts items per dimension value. Months sort chronologically;
// every other dimension sorts by count descending, then key.
func GroupBy(items []requests.Request, dim string) ([]Bucket, error) {
	if !ValidDimension(dim) {
		return nil, fmt.Errorf("unknown dimension %q", dim)
	}
	index := map[string]int{}
	out := []Bucket{}
	for _, req := range items {
		key, label := keyOf(req, dim)
		pos, ok := index[key]
		if !ok {
			pos = len(out)
			index[key] = pos
			out = append(out, Bucket{Key: key, Label: label})
		}
		out[pos].Count++
		out[pos].Days += req.Days()
	}
	sort.SliceStable(out, func(i, j int) bool {
		if dim == ByMonth {
			return out[i].Key < out[j].Key
		}
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

type Summary struct {
	Total        int            `json:"total"`
	Pending      int            `json:"pending"`
	Approved     int            `json:"approved"`
	Rejected     int            `json:"rejected"`
	ApprovalRate float64        `json:"approvalRate"`
	Days         int            `json:"days"`
	ByType       map[string]int `json:"byType"`
}

// Summarize computes dashboard totals. The approval rate is taken over
// decided requests only and is zero when none are decided.
func Summarize(items []requests.Request) Summary {
	s := Summary{ByType: map[string]int{}}
	for _, req := range items {
		s.Total++
		s.Days += req.Days()
		s.ByType[req.Type]++
		switch req.Status {
		case requests.StatusPending:
			s.Pending++
		case requests.StatusApproved:
			s.Approved++
		case requests.StatusRejected:
			s.Rejected++
		}
	}
	if decided := s.Approved + s.Rejected; decided > 0 {
		s.ApprovalRate = float64(s.Approved) / float64(decided)
	}
	return s
}
