package jobshandler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrsched/internal/domain/auth"
	"hrsched/internal/platform/jobs"
	"hrsched/internal/transport/http/handlers/handlertest"
)

type fakeRuns struct {
	jobType string
	limit   int
}

func (f *fakeRuns) ListRuns(_ context.Context, jobType string, limit, _ int) ([]jobs.Run, error) {
	f.jobType, f.limit = jobType, limit
	return []jobs.Run{{ID: "run1", JobType: jobs.JobPendingDigest, Status: "completed", StartedAt: time.Date(2024, 6, 10, 7, 0, 0, 0, time.UTC)}}, nil
}

func (f *fakeRuns) CountRuns(context.Context, string) (int, error) { return 1, nil }

var admin = auth.UserContext{UserID: "u-admin", RoleName: auth.RoleAdmin}

func TestRunJob(t *testing.T) {
	calls := 0
	tasks := map[string]jobs.RunFunc{
		jobs.JobPendingDigest: func(context.Context) (any, error) {
			calls++
			return map[string]int{"leaders": 2}, nil
		},
		"broken": func(context.Context) (any, error) { return nil, errors.New("boom") },
	}
	auditor := &handlertest.Recorder{}
	runner := jobs.New(nil, nil)
	router := handlertest.Router(NewHandler(runner, &fakeRuns{}, tasks, auth.RolePermissionStore{}, auditor), &admin)

	rec := handlertest.Do(t, router, http.MethodPost, "/jobs/pending_digest/run", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, calls)
	var body struct {
		JobType string         `json:"jobType"`
		Details map[string]int `json:"details"`
	}
	handlertest.Decode(t, rec, &body)
	assert.Equal(t, 2, body.Details["leaders"])
	assert.Equal(t, []string{"job.run_job"}, auditor.Actions())

	rec = handlertest.Do(t, router, http.MethodPost, "/jobs/unknown/run", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = handlertest.Do(t, router, http.MethodPost, "/jobs/broken/run", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, auditor.Events, 1)
}

func TestListRuns(t *testing.T) {
	runs := &fakeRuns{}
	router := handlertest.Router(NewHandler(jobs.New(nil, nil), runs, nil, auth.RolePermissionStore{}, nil), &admin)

	rec := handlertest.Do(t, router, http.MethodGet, "/jobs/runs?type=pending_digest&limit=1000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	assert.Equal(t, jobs.JobPendingDigest, runs.jobType)
	assert.Equal(t, 200, runs.limit)
}

func TestJobsAreAdminOnly(t *testing.T) {
	leader := auth.UserContext{UserID: "u-lead", RoleName: auth.RoleLeader}
	router := handlertest.Router(NewHandler(jobs.New(nil, nil), &fakeRuns{}, nil, auth.RolePermissionStore{}, nil), &leader)
	assert.Equal(t, http.StatusForbidden, handlertest.Do(t, router, http.MethodPost, "/jobs/pending_digest/run", nil).Code)
}
