// Package jobs runs payroll background work on a single worker and records
// every run in job_runs. Schedules use cron expressions in the payroll
// timezone.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/robfig/cron/v3"
)

const (
	JobDeputyResync  = "deputy_resync"
	JobVendRetry     = "vend_retry_failed"
	JobVendAllocate  = "vend_allocate_pending"
	JobPayslipBatch  = "payslip_batch"
	JobTimesheetSync = "timesheet_mirror"
	statusRunning    = "running"
	statusCompleted  = "completed"
	statusFailed     = "failed"
	defaultQueueSize = 128
)

var (
	ErrQueueFull  = errors.New("job queue full")
	ErrUnknownJob = errors.New("unknown job type")
)

// RunFunc does the work and returns details worth keeping in job_runs.
type RunFunc func(ctx context.Context) (any, error)

type RunStore interface {
	Start(ctx context.Context, jobType string) (string, error)
	Finish(ctx context.Context, id, status string, details []byte) error
}

type Service struct {
	runs    RunStore
	queue   chan job
	cron    *cron.Cron
	timeout time.Duration

	mu         sync.RWMutex
	registered map[string]RunFunc
}

type job struct {
	Type string
	Run  RunFunc
}

func New(runs RunStore, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		runs:    runs,
		queue:   make(chan job, defaultQueueSize),
		cron:    cron.New(cron.WithLocation(loc)),
		timeout: 30 * time.Minute,

		registered: make(map[string]RunFunc),
	}
}

// Schedule enqueues run on every tick of spec. An empty spec disables the
// schedule; the job can still be started with Trigger.
func (s *Service) Schedule(spec, jobType string, run RunFunc) error {
	if spec == "" {
		s.register(jobType, run)
		slog.Info("job schedule disabled", "jobType", jobType)
		return nil
	}
	if _, err := s.cron.AddFunc(spec, func() {
		if err := s.Enqueue(jobType, run); err != nil {
			slog.Warn("scheduled job dropped", "jobType", jobType, "err", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule %s %q: %w", jobType, spec, err)
	}
	s.register(jobType, run)
	slog.Info("job scheduled", "jobType", jobType, "spec", spec)
	return nil
}

func (s *Service) register(jobType string, run RunFunc) {
	s.mu.Lock()
	s.registered[jobType] = run
	s.mu.Unlock()
}

// Start runs the worker and the scheduler until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	s.cron.Start()
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
}

func (s *Service) Enqueue(jobType string, run RunFunc) error {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Trigger queues a registered job outside its schedule.
func (s *Service) Trigger(jobType string) error {
	s.mu.RLock()
	run, ok := s.registered[jobType]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, jobType)
	}
	return s.Enqueue(jobType, run)
}

// Types lists the registered job types.
func (s *Service) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.registered))
	for t := range s.registered {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// RunNow runs the job on the caller's goroutine, still recording it.
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

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID, err := s.runs.Start(ctx, j.Type)
	if err != nil {
		slog.Warn("job run insert failed", "jobType", j.Type, "err", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	started := time.Now()
	details, err := s.safeRun(runCtx, j)
	cancel()

	status := statusCompleted
	if err != nil {
		status = statusFailed
		details = map[string]any{"error": err.Error(), "result": details}
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if updErr := s.runs.Finish(context.WithoutCancel(ctx), runID, status, detailsJSON); updErr != nil {
			slog.Warn("job run update failed", "jobType", j.Type, "runId", runID, "err", updErr)
		}
	}
	slog.Info("job finished", "jobType", j.Type, "runId", runID, "status", status, "elapsed", time.Since(started).String())
	return details, err
}

func (s *Service) safeRun(ctx context.Context, j job) (details any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.Type, r)
		}
	}()
	return j.Run(ctx)
}
