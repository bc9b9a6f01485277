package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrsched/internal/domain/requests"
)

type fakeDigestSource struct {
	digests []requests.LeaderDigest
	err     error
}

func (f fakeDigestSource) PendingDigest(context.Context) ([]requests.LeaderDigest, error) {
	return f.digests, f.err
}

type fakeDigestSender struct {
	sent    map[string][]string
	failFor string
}

func (f *fakeDigestSender) Digest(_ context.Context, userID string, lines []string) error {
	if userID == f.failFor {
		return errors.New("insert failed")
	}
	if f.sent == nil {
		f.sent = map[string][]string{}
	}
	f.sent[userID] = lines
	return nil
}

func date(value string) time.Time {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPendingDigestJob(t *testing.T) {
	source := fakeDigestSource{digests: []requests.LeaderDigest{
		{UserID: "lead-1", Pending: []requests.Request{
			{EmployeeName: "Ana Diaz", Type: requests.TypeTimeOff, StartDate: date("2024-06-20"), EndDate: date("2024-06-21")},
			{EmployeeID: "emp-2", Type: requests.TypeLateness, StartDate: date("2024-06-11"), EndDate: date("2024-06-11"), Time: "08:40"},
		}},
		{UserID: "lead-2", Pending: []requests.Request{
			{EmployeeName: "Boris Petrov", Type: requests.TypeAbsence, StartDate: date("2024-06-12"), EndDate: date("2024-06-12")},
		}},
	}}
	sender := &fakeDigestSender{}

	details, err := pendingDigestJob(source, sender)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"leaders": 2, "pending": 3}, details)
	assert.Equal(t, []string{
		"Ana Diaz time_off 2024-06-20 to 2024-06-21",
		"emp-2 lateness 2024-06-11 at 08:40",
	}, sender.sent["lead-1"])
	assert.Equal(t, []string{"Boris Petrov absence 2024-06-12"}, sender.sent["lead-2"])
}

func TestPendingDigestJobErrors(t *testing.T) {
	_, err := pendingDigestJob(fakeDigestSource{err: errors.New("db down")}, &fakeDigestSender{})(context.Background())
	assert.ErrorContains(t, err, "load pending requests")

	source := fakeDigestSource{digests: []requests.LeaderDigest{
		{UserID: "lead-1", Pending: []requests.Request{{EmployeeName: "Ana", Type: requests.TypeAbsence, StartDate: date("2024-06-12")}}},
		{UserID: "lead-2", Pending: []requests.Request{{EmployeeName: "Boris", Type: requests.TypeAbsence, StartDate: date("2024-06-12")}}},
	}}
	details, err := pendingDigestJob(source, &fakeDigestSender{failFor: "lead-2"})(context.Background())
	assert.ErrorContains(t, err, "lead-2")
	assert.Equal(t, map[string]any{"leaders": 1, "pending": 1}, details)
}
