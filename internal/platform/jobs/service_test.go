package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeRuns struct {
	mu       sync.Mutex
	started  []string
	finished map[string]string
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{finished: map[string]string{}}
}

func (f *fakeRuns) StartRun(_ context.Context, jobType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, jobType)
	return jobType + "-run", nil
}

func (f *fakeRuns) FinishRun(_ context.Context, runID, status string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished[runID] = status
	return nil
}

func (f *fakeRuns) status(runID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished[runID]
}

type fakeRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (f *fakeRecorder) RecordJob(jobType, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.counts[jobType+":"+status]++
}

func TestRunNowRecordsOutcome(t *testing.T) {
	runs := newFakeRuns()
	recorder := &fakeRecorder{}
	svc := New(runs, recorder)

	details, err := svc.RunNow(context.Background(), JobPendingDigest, func(context.Context) (any, error) {
		return map[string]int{"sent": 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"sent": 2}, details)
	assert.Equal(t, statusCompleted, runs.status(JobPendingDigest+"-run"))

	_, err = svc.RunNow(context.Background(), "broken", func(context.Context) (any, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, statusFailed, runs.status("broken-run"))
	assert.Equal(t, 1, recorder.counts[JobPendingDigest+":"+statusCompleted])
	assert.Equal(t, 1, recorder.counts["broken:"+statusFailed])
}

func TestWorkerProcessesQueueAndStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	svc := New(nil, nil)
	svc.Start(ctx)

	done := make(chan struct{})
	require.True(t, svc.Enqueue(JobPendingDigest, func(context.Context) (any, error) {
		close(done)
		return nil, nil
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queued job did not run")
	}

	cancel()
	svc.Wait()
}

func TestScheduleEnqueuesOnTick(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{}, 4)
	svc := New(nil, nil, Schedule{
		Type:     JobPendingDigest,
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) (any, error) {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil, nil
		},
	}, Schedule{Type: "disabled", Interval: 0})
	svc.Start(ctx)

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled job did not run")
	}

	cancel()
	svc.Wait()
}
