package org

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Search ranks employees whose name or email fuzzily contains query,
// closest match first. An empty query returns employees unchanged.
func Search(employees []Employee, query string) []Employee {
	query = strings.TrimSpace(query)
	if query == "" {
		return employees
	}
	targets := make([]string, len(employees))
	for i, emp := range employees {
		targets[i] = emp.Name + " " + emp.Email
	}
	ranks := fuzzy.RankFindNormalizedFold(query, targets)
	sort.Stable(ranks)

	out := make([]Employee, 0, len(ranks))
	for _, rank := range ranks {
		out = append(out, employees[rank.OriginalIndex])
	}
	return out
}
