package calendar

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"hrsched/internal/domain/requests"
)

var typeLabels = map[string]string{
	requests.TypeTimeOff:        "Time off",
	requests.TypeEarlyDeparture: "Early departure",
	requests.TypeLateness:       "Lateness",
	requests.TypeAbsence:        "Absence",
}

func summary(req requests.Request) string {
	label := typeLabels[req.Type]
	if label == "" {
		label = req.Type
	}
	name := req.EmployeeName
	if name == "" {
		name = req.EmployeeID
	}
	if req.Time != "" {
		return fmt.Sprintf("%s: %s %s", name, label, req.Time)
	}
	return fmt.Sprintf("%s: %s", name, label)
}

const icsLineOctets = 75

var textEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`, "\r", `\n`)

func escapeText(value string) string {
	return textEscaper.Replace(value)
}

// writeLine emits one content line, folding it at 75 octets without
// splitting a UTF-8 sequence. Continuation lines start with a space.
func writeLine(builder *strings.Builder, line string) {
	limit := icsLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		builder.WriteString(line[:cut])
		builder.WriteString("\r\n ")
		line = line[cut:]
		limit = icsLineOctets - 1
	}
	builder.WriteString(line)
	builder.WriteString("\r\n")
}

// WriteICS renders all-day VEVENTs; DTEND is exclusive per RFC 5545.
func WriteICS(w io.Writer, items []requests.Request, stamp time.Time) error {
	var builder strings.Builder
	for _, line := range []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//hrsched//Request Calendar//EN", "CALSCALE:GREGORIAN"} {
		writeLine(&builder, line)
	}
	dtstamp := stamp.UTC().Format("20060102T150405Z")
	for _, req := range items {
		writeLine(&builder, "BEGIN:VEVENT")
		writeLine(&builder, "UID:"+req.ID+"@hrsched")
		writeLine(&builder, "DTSTAMP:"+dtstamp)
		writeLine(&builder, "DTSTART;VALUE=DATE:"+req.StartDate.Format("20060102"))
		writeLine(&builder, "DTEND;VALUE=DATE:"+req.EndDate.AddDate(0, 0, 1).Format("20060102"))
		writeLine(&builder, "SUMMARY:"+escapeText(summary(req)))
		if req.Reason != "" {
			writeLine(&builder, "DESCRIPTION:"+escapeText(req.Reason))
		}
		writeLine(&builder, "END:VEVENT")
	}
	writeLine(&builder, "END:VCALENDAR")
	_, err := io.WriteString(w, builder.String())
	return err
}

func WriteCSV(w io.Writer, items []requests.Request) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "employee_id", "employee_name", "type", "start_date", "end_date", "time", "reason"}); err != nil {
		return err
	}
	for _, req := range items {
		if err := writer.Write([]string{
			req.ID, req.EmployeeID, req.EmployeeName, req.Type,
			req.StartDate.Format(time.DateOnly), req.EndDate.Format(time.DateOnly), req.Time, req.Reason,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
