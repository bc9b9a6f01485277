package org

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RosterRow is one employee line of an uploaded roster workbook.
type RosterRow struct {
	Line    int
	Name    string
	Email   string
	Phone   string
	Role    string
	Factory string
	Group   string
}

// ErrInvalidRoster marks workbooks that cannot be read as a roster.
var ErrInvalidRoster = errors.New("invalid roster")

var rosterColumns = map[string]string{
	"name":      "name",
	"full name": "name",
	"email":     "email",
	"phone":     "phone",
	"role":      "role",
	"factory":   "factory",
	"group":     "group",
}

// ParseRoster reads the first sheet of an XLSX workbook. The first row is a
// header naming the columns; name and email are mandatory.
func ParseRoster(r io.Reader) ([]RosterRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open roster: %v", ErrInvalidRoster, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheets", ErrInvalidRoster)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read rows: %v", ErrInvalidRoster, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty sheet", ErrInvalidRoster)
	}

	index := map[string]int{}
	for i, cell := range rows[0] {
		if key, ok := rosterColumns[strings.ToLower(strings.TrimSpace(cell))]; ok {
			index[key] = i
		}
	}
	if _, ok := index["name"]; !ok {
		return nil, fmt.Errorf("%w: header missing name column", ErrInvalidRoster)
	}
	if _, ok := index["email"]; !ok {
		return nil, fmt.Errorf("%w: header missing email column", ErrInvalidRoster)
	}

	cell := func(row []string, key string) string {
		i, ok := index[key]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]RosterRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		entry := RosterRow{
			Line:    i + 2,
			Name:    cell(row, "name"),
			Email:   strings.ToLower(cell(row, "email")),
			Phone:   cell(row, "phone"),
			Role:    strings.ToLower(cell(row, "role")),
			Factory: cell(row, "factory"),
			Group:   cell(row, "group"),
		}
		if entry.Name == "" && entry.Email == "" {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
