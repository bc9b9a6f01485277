package requests

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(value string) time.Time {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestMergeEnrichesAndDeduplicates(t *testing.T) {
	snap := Snapshot{
		Requests: []RequestRow{
			{ID: "r1", Type: TypeTimeOff, Status: StatusApproved, EmployeeID: "e1", StartDate: day("2024-03-01"), EndDate: day("2024-03-01"), Reason: "Family"},
			{ID: "r2", Type: TypeEarlyDeparture, Status: StatusPending, EmployeeID: "e2", StartDate: day("2024-03-02"), EndDate: day("2024-03-02"), Reason: "Doctor"},
			{ID: "r1", Type: TypeTimeOff, Status: StatusRejected, EmployeeID: "e1"},
		},
		TimeOff: []TimeOffRow{
			{ID: "r1", EmployeeID: "e1", StartDate: day("2024-03-04"), EndDate: day("2024-03-06"), Status: StatusApproved},
			{ID: "t1", EmployeeID: "e1", StartDate: day("2024-04-01"), EndDate: day("2024-04-03"), Reason: "Vacation", Status: StatusPending},
			{ID: "t2", EmployeeID: "e2", StartDate: day("2024-04-10"), EndDate: day("2024-04-10"), Reason: "Sick", Status: StatusApproved},
		},
		EarlyDepartures: []EarlyDepartureRow{
			{ID: "r2", EmployeeID: "e2", Date: day("2024-03-05"), DepartureTime: "14:30", Status: StatusPending},
			{ID: "d1", EmployeeID: "e2", Date: day("2024-05-01"), DepartureTime: "15:00", Reason: "Bank", Status: StatusPending},
		},
		Lateness: []LatenessRow{
			{ID: "l1", EmployeeID: "e3", Date: day("2024-05-02"), ArrivalTime: "08:20", Reason: "Traffic", Status: StatusApproved},
			{ID: "t1", EmployeeID: "e3", Date: day("2024-05-03"), ArrivalTime: "08:10"},
		},
		Employees: []EmployeeRef{
			{ID: "e1", Name: "Ana", FactoryID: "f1", GroupID: "g1"},
			{ID: "e2", Name: "Boris", FactoryID: "f2", GroupID: "g2"},
		},
	}

	out := Merge(snap)
	byID := map[string]Request{}
	for _, r := range out {
		_, dup := byID[r.ID]
		require.False(t, dup, "duplicate id %s", r.ID)
		byID[r.ID] = r
	}
	require.Len(t, out, 6)

	r1 := byID["r1"]
	assert.Equal(t, SourceRequests, r1.Source)
	assert.Equal(t, StatusApproved, r1.Status)
	assert.Equal(t, day("2024-03-04"), r1.StartDate, "detail row dates win")
	assert.Equal(t, day("2024-03-06"), r1.EndDate)
	assert.Equal(t, "Ana", r1.EmployeeName)
	assert.Equal(t, "f1", r1.FactoryID)

	r2 := byID["r2"]
	assert.Equal(t, "14:30", r2.Time)
	assert.Equal(t, day("2024-03-05"), r2.StartDate)

	assert.Equal(t, TypeTimeOff, byID["t1"].Type)
	assert.Equal(t, SourceTimeOff, byID["t1"].Source)
	assert.Equal(t, TypeAbsence, byID["t2"].Type, "single-day time_off row is an absence")
	assert.Equal(t, TypeEarlyDeparture, byID["d1"].Type)
	assert.Equal(t, "15:00", byID["d1"].Time)
	assert.Equal(t, TypeLateness, byID["l1"].Type)
	assert.Equal(t, "08:20", byID["l1"].Time)
	assert.Empty(t, byID["l1"].EmployeeName, "unknown employee stays unjoined")
}

func TestMergeEmpty(t *testing.T) {
	assert.Empty(t, Merge(Snapshot{}))
}

func TestRequestJSONUsesDates(t *testing.T) {
	raw, err := json.Marshal(Request{ID: "r1", StartDate: day("2024-03-01"), EndDate: day("2024-03-02")})
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "2024-03-01", decoded["startDate"])
	assert.Equal(t, "2024-03-02", decoded["endDate"])
	assert.Equal(t, "r1", decoded["id"])
}

func TestRequestDaysAndCovers(t *testing.T) {
	r := Request{StartDate: day("2024-02-28"), EndDate: day("2024-03-01")}
	assert.Equal(t, 3, r.Days())
	assert.True(t, r.Covers(day("2024-02-29")))
	assert.True(t, r.Covers(time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC)))
	assert.False(t, r.Covers(day("2024-03-02")))
}
