package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

const (
	JobPendingDigest   = "pending_digest"
	JobRequestAnnounce = "request_announce"

	statusRunning   = "running"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

type RunFunc func(context.Context) (any, error)

// RunStore persists job_runs rows. A nil store skips bookkeeping.
type RunStore interface {
	StartRun(ctx context.Context, jobType string) (string, error)
	FinishRun(ctx context.Context, runID, status string, details []byte) error
}

type Recorder interface {
	RecordJob(jobType, status string)
}

type Schedule struct {
	Type     string
	Interval time.Duration
	Run      RunFunc
}

type Service struct {
	Runs      RunStore
	Metrics   Recorder
	schedules []Schedule
	queue     chan job
	wg        sync.WaitGroup
}

type job struct {
	Type string
	Run  RunFunc
}

func New(runs RunStore, metrics Recorder, schedules ...Schedule) *Service {
	return &Service{
		Runs:      runs,
		Metrics:   metrics,
		schedules: schedules,
		queue:     make(chan job, 128),
	}
}

// Start launches the worker and every schedule with a positive interval.
// All goroutines exit once ctx is cancelled; Wait blocks until they have.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker(ctx)
	}()
	for _, sched := range s.schedules {
		if sched.Interval <= 0 || sched.Run == nil {
			continue
		}
		sched := sched
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.schedule(ctx, sched)
		}()
	}
}

func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) Enqueue(jobType string, run RunFunc) bool {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType)
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run RunFunc) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) schedule(ctx context.Context, sched Schedule) {
	ticker := time.NewTicker(sched.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(sched.Type, sched.Run)
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if s.Runs != nil {
		id, err := s.Runs.StartRun(ctx, j.Type)
		if err != nil {
			slog.Warn("job run insert failed", "jobType", j.Type, "err", err)
		}
		runID = id
	}

	details, err := j.Run(ctx)
	status := statusCompleted
	if err != nil {
		status = statusFailed
	}
	if s.Metrics != nil {
		s.Metrics.RecordJob(j.Type, status)
	}

	if runID != "" {
		detailsJSON, marshalErr := json.Marshal(details)
		if marshalErr != nil {
			slog.Warn("job details marshal failed", "err", marshalErr)
			detailsJSON = []byte("{}")
		}
		if updErr := s.Runs.FinishRun(ctx, runID, status, detailsJSON); updErr != nil {
			slog.Warn("job run update failed", "jobType", j.Type, "err", updErr)
		}
	}
	return details, err
}
