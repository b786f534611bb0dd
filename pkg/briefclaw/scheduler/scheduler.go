// Package scheduler fires jobs on cron schedules in a fixed timezone.
// Uses robfig/cron for expression parsing and execution. Jobs live in
// memory only; a missed or failed run waits for its next slot.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("scheduler: job not found")

// JobFunc is the work a job performs. ctx is cancelled on timeout or Stop.
type JobFunc func(ctx context.Context) error

// Job is a scheduled unit of work and its run history.
type Job struct {
	ID       string
	Schedule string

	LastRunAt       time.Time
	LastRunDuration time.Duration
	LastError       string
	RunCount        int

	fn JobFunc
}

// Scheduler runs jobs on cron schedules.
type Scheduler struct {
	jobs    map[string]*Job
	cronIDs map[string]cron.EntryID

	// running tracks jobs currently executing so a fire that overlaps the
	// previous run is skipped.
	running map[string]bool

	cron       *cron.Cron
	location   *time.Location
	jobTimeout time.Duration

	logger *slog.Logger
	mu     sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler evaluating schedules in loc. A zero jobTimeout
// defaults to five minutes.
func New(loc *time.Location, jobTimeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	if jobTimeout <= 0 {
		jobTimeout = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:     make(map[string]*Job),
		cronIDs:  make(map[string]cron.EntryID),
		running:  make(map[string]bool),
		location: loc,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(cron.NewParser(
				cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor,
			)),
		),
		jobTimeout: jobTimeout,
		logger:     logger.With("component", "scheduler"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// DailySpec converts a local "HH:MM" into a cron expression.
func DailySpec(hhmm string) (string, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", hhmm)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// AddDaily registers fn to run every day at the local "HH:MM".
func (s *Scheduler) AddDaily(id, hhmm string, fn JobFunc) error {
	spec, err := DailySpec(hhmm)
	if err != nil {
		return err
	}
	return s.Add(id, spec, fn)
}

// Add registers fn under a cron expression.
func (s *Scheduler) Add(id, schedule string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		return fmt.Errorf("job ID is required")
	}
	if _, exists := s.jobs[id]; exists {
		return fmt.Errorf("job %q already exists", id)
	}
	if fn == nil {
		return fmt.Errorf("job %q has no function", id)
	}

	job := &Job{ID: id, Schedule: schedule, fn: fn}
	entryID, err := s.cron.AddFunc(schedule, func() { s.executeJob(job) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	s.jobs[id] = job
	s.cronIDs[id] = entryID

	s.logger.Info("job added", "id", id, "schedule", schedule, "timezone", s.location.String())
	return nil
}

// Get returns a copy of a job's state.
func (s *Scheduler) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// NextRun returns when the job fires next. It is only known once the
// scheduler has started.
func (s *Scheduler) NextRun(id string) (time.Time, bool) {
	s.mu.RLock()
	entryID, ok := s.cronIDs[id]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	next := s.cron.Entry(entryID).Next
	if next.IsZero() {
		return time.Time{}, false
	}
	return next.In(s.location), true
}

// Trigger runs a job now, outside its schedule, in the background. The
// same overlap guard, timeout and panic recovery apply.
func (s *Scheduler) Trigger(id string) error {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrJobNotFound, id)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeJob(job)
	}()
	return nil
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.mu.RLock()
	count := len(s.jobs)
	s.mu.RUnlock()
	s.logger.Info("scheduler started", "jobs", count, "timezone", s.location.String())
}

// Stop halts the scheduler and waits up to ten seconds for running jobs.
func (s *Scheduler) Stop() {
	stopped := s.cron.Stop()
	triggered := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(triggered)
	}()

	timeout := time.After(10 * time.Second)
	for _, done := range []<-chan struct{}{stopped.Done(), triggered} {
		select {
		case <-done:
		case <-timeout:
			s.logger.Warn("scheduler stop timed out")
			s.cancel()
			return
		}
	}
	s.cancel()
	s.logger.Info("scheduler stopped")
}

// minJobInterval is the minimum time between consecutive executions of the
// same job, guarding against a cron entry firing twice in one second.
const minJobInterval = 2 * time.Second

// executeJob runs a job with an overlap guard, a timeout and panic recovery.
func (s *Scheduler) executeJob(job *Job) {
	s.mu.Lock()
	if s.running[job.ID] {
		s.mu.Unlock()
		s.logger.Warn("skipping job (already running)", "id", job.ID)
		return
	}
	if !job.LastRunAt.IsZero() && time.Since(job.LastRunAt) < minJobInterval {
		s.mu.Unlock()
		s.logger.Debug("skipping job (ran too recently)", "id", job.ID, "last_run_at", job.LastRunAt.Format(time.RFC3339))
		return
	}
	s.running[job.ID] = true
	job.LastRunAt = time.Now()
	job.RunCount++
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	err := s.call(ctx, job)
	duration := time.Since(start)

	s.mu.Lock()
	delete(s.running, job.ID)
	job.LastRunDuration = duration
	job.LastError = ""
	if err != nil {
		job.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled job failed", "id", job.ID, "error", err, "duration", duration)
		return
	}
	s.logger.Info("scheduled job completed", "id", job.ID, "duration", duration)
}

// call invokes the job function, converting a panic into an error.
func (s *Scheduler) call(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.fn(ctx)
}
