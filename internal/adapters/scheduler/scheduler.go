// Package scheduler runs named jobs on cron expressions and on demand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/okian/runclub/pkg/logger"
	"github.com/okian/runclub/pkg/metrics"
)

// Run statuses reported in metrics and Status.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Job is a named unit of work.
type Job struct {
	Name string
	// Spec is a cron expression with a leading seconds field.
	Spec string
	// Enabled jobs run on Spec; every registered job can be triggered.
	Enabled bool
	Run     func(ctx context.Context) error
}

// Status is a snapshot of one job.
type Status struct {
	Name       string    `json:"name"`
	Spec       string    `json:"spec"`
	Enabled    bool      `json:"enabled"`
	Running    bool      `json:"running"`
	Next       time.Time `json:"next,omitempty"`
	LastRun    time.Time `json:"last_run,omitempty"`
	LastStatus string    `json:"last_status,omitempty"`
	Runs       int64     `json:"runs"`
}

type entry struct {
	job     Job
	id      cron.EntryID
	running atomic.Bool
	runs    atomic.Int64

	mu         sync.Mutex
	lastRun    time.Time
	lastStatus string
}

// Scheduler owns a cron runner and the registered jobs.
type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	loc    *time.Location
	quiet  []error
	logger logger.Logger

	mu      sync.RWMutex
	jobs    map[string]*entry
	baseCtx context.Context
	cancel  context.CancelFunc
	manual  sync.WaitGroup
	stopped atomic.Bool
}

// New creates a scheduler. Jobs never overlap themselves.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		parser: cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		loc:    time.Local,
		jobs:   make(map[string]*entry),
		logger: logger.Get().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	cl := cronLogger{l: s.logger}
	s.cron = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Register adds a job. Disabled jobs are kept for manual triggers only.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("%w: name and run are required", ErrInvalidSpec)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
	}
	e := &entry{job: job}
	if job.Enabled {
		sched, err := s.parser.Parse(job.Spec)
		if err != nil {
			return fmt.Errorf("%w: %s %q: %v", ErrInvalidSpec, job.Name, job.Spec, err)
		}
		e.id = s.cron.Schedule(sched, cron.FuncJob(func() { s.execute(s.baseCtx, e, "cron") }))
	}
	s.jobs[job.Name] = e
	return nil
}

// Start begins firing enabled jobs. ctx cancellation stops the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop(context.Background())
		case <-s.baseCtx.Done():
		}
	}()
	s.logger.Info(ctx, "scheduler started", logger.Int("jobs", len(s.Statuses())))
}

// Stop halts scheduling and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	// Taken exclusively so no Trigger sits between its stopped check and manual.Add.
	s.mu.Lock()
	first := s.stopped.CompareAndSwap(false, true)
	s.mu.Unlock()
	if !first {
		return nil
	}
	cronDone := s.cron.Stop()
	s.cancel()

	manualDone := make(chan struct{})
	go func() {
		s.manual.Wait()
		close(manualDone)
	}()

	for _, done := range []<-chan struct{}{cronDone.Done(), manualDone} {
		select {
		case <-done:
		case <-ctx.Done():
			s.logger.Warn(ctx, "scheduler stop timed out")
			return fmt.Errorf("scheduler stop: %w", ctx.Err())
		}
	}
	return nil
}

// Trigger starts job name in the background and returns its run id.
func (s *Scheduler) Trigger(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped.Load() {
		return "", ErrStopped
	}
	e, ok := s.jobs[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !e.running.CompareAndSwap(false, true) {
		return "", fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	runID := uuid.NewString()
	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		s.run(s.baseCtx, e, "manual", runID)
	}()
	return runID, nil
}

// Statuses lists the registered jobs ordered by name.
func (s *Scheduler) Statuses() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Status, 0, len(s.jobs))
	for _, e := range s.jobs {
		st := Status{
			Name:    e.job.Name,
			Spec:    e.job.Spec,
			Enabled: e.job.Enabled,
			Running: e.running.Load(),
			Runs:    e.runs.Load(),
		}
		if e.job.Enabled {
			st.Next = s.cron.Entry(e.id).Next
		}
		e.mu.Lock()
		st.LastRun, st.LastStatus = e.lastRun, e.lastStatus
		e.mu.Unlock()
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// execute is the cron entry point.
func (s *Scheduler) execute(ctx context.Context, e *entry, source string) {
	if !e.running.CompareAndSwap(false, true) {
		metrics.RecordJobRun(e.job.Name, StatusSkipped, 0)
		s.logger.Debug(ctx, "job still running, skipping tick", logger.String("job", e.job.Name))
		return
	}
	s.run(ctx, e, source, uuid.NewString())
}

// run executes the job. The caller must have set e.running.
func (s *Scheduler) run(ctx context.Context, e *entry, source, runID string) {
	defer e.running.Store(false)

	log := s.logger.With(
		logger.String("job", e.job.Name),
		logger.String("run_id", runID),
		logger.String("source", source))

	start := time.Now()
	err := e.job.Run(ctx)
	elapsed := time.Since(start)

	status := StatusOK
	switch {
	case err == nil:
		log.Info(ctx, "job finished", logger.Duration("elapsed", elapsed))
	case s.isQuiet(err):
		status = StatusSkipped
		log.Debug(ctx, "job skipped", logger.Error(err))
	default:
		status = StatusError
		metrics.RecordErrorByComponent("scheduler", e.job.Name)
		log.Error(ctx, "job failed", logger.Duration("elapsed", elapsed), logger.Error(err))
	}

	e.runs.Add(1)
	e.mu.Lock()
	e.lastRun, e.lastStatus = start, status
	e.mu.Unlock()
	metrics.RecordJobRun(e.job.Name, status, elapsed)
}

func (s *Scheduler) isQuiet(err error) bool {
	for _, q := range s.quiet {
		if errors.Is(err, q) {
			return true
		}
	}
	return false
}
