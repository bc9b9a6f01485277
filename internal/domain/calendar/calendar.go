package calendar

import (
	"encoding/json"
	"time"

	"hrsched/internal/domain/org"
	"hrsched/internal/domain/requests"
)

type Day struct {
	Date     time.Time          `json:"date"`
	Requests []requests.Request `json:"requests"`
	Holidays []org.Holiday      `json:"holidays"`
}

func (d Day) MarshalJSON() ([]byte, error) {
	type alias Day
	return json.Marshal(struct {
		alias
		Date string `json:"date"`
	}{alias: alias(d), Date: d.Date.Format(time.DateOnly)})
}

type Month struct {
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	FactoryID string `json:"factoryId,omitempty"`
	Days      []Day  `json:"days"`
}

// Bounds returns the first and last day of the month.
func Bounds(year, month int) (time.Time, time.Time) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

// Build lays approved requests and holidays out over every day of the month.
// A non-empty factoryID keeps that factory's requests plus its own and
// company-wide holidays.
func Build(year, month int, items []requests.Request, holidays []org.Holiday, factoryID string) Month {
	first, last := Bounds(year, month)
	out := Month{Year: year, Month: month, FactoryID: factoryID}
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		entry := Day{Date: day, Requests: []requests.Request{}, Holidays: []org.Holiday{}}
		for _, req := range items {
			if req.Status != requests.StatusApproved || !req.Covers(day) {
				continue
			}
			if factoryID != "" && req.FactoryID != factoryID {
				continue
			}
			entry.Requests = append(entry.Requests, req)
		}
		for _, h := range holidays {
			if requests.DateOf(h.Date).Equal(day) && h.AppliesTo(factoryID) {
				entry.Holidays = append(entry.Holidays, h)
			}
		}
		out.Days = append(out.Days, entry)
	}
	return out
}
