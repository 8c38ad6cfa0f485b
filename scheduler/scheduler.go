package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/matsuo0603/ShareFileBC/config"
	"github.com/matsuo0603/ShareFileBC/logger"
)

// NetworkProbe reports whether the remote storage is reachable right now.
// A nil probe means jobs always fire.
type NetworkProbe func(ctx context.Context) bool

// Scheduler runs named jobs on the configured sweep interval. Scheduling the
// same name twice is resolved by the configured conflict policy: keep the
// existing entry, replace it (which resets the phase), or update it while
// preserving the already-planned next firing.
type Scheduler struct {
	cron     *cron.Cron
	interval time.Duration
	policy   config.SchedulePolicy
	probe    NetworkProbe
	logger   logger.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	baseCtx context.Context
	running bool
}

// NewScheduler creates a scheduler with the retention settings and an
// optional connectivity probe that gates each firing.
func NewScheduler(cfg *config.RetentionConfig, probe NetworkProbe, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Scheduler{
		cron:     cron.New(),
		interval: cfg.SweepInterval,
		policy:   cfg.Policy,
		probe:    probe,
		logger:   log,
		entries:  make(map[string]cron.EntryID),
		baseCtx:  context.Background(),
	}
}

// Start begins firing scheduled jobs and stops them when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.running = true
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("Scheduler started, interval %s, policy %s", s.interval, s.policy)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Schedule registers job under a unique logical name. What happens when the
// name is already scheduled depends on the conflict policy.
func (s *Scheduler) Schedule(name string, job func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, scheduled := s.entries[name]
	if scheduled {
		switch s.policy {
		case config.SchedulePolicyKeep:
			s.logger.Debug("Job %s already scheduled, keeping existing entry", name)
			return
		case config.SchedulePolicyUpdate:
			// Carry the pending firing over so updating does not push the
			// next run further out
			next := s.cron.Entry(existing).Next
			s.cron.Remove(existing)
			s.entries[name] = s.cron.Schedule(
				&carryOverSchedule{first: next, period: s.interval},
				cron.FuncJob(s.gated(name, job)),
			)
			s.logger.Debug("Job %s rescheduled, next run kept at %s", name, next)
			return
		case config.SchedulePolicyReplace:
			s.cron.Remove(existing)
			s.logger.Debug("Job %s replaced, phase reset", name)
		}
	}

	s.entries[name] = s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(s.gated(name, job)))
	s.logger.Info("Scheduled job %s every %s", name, s.interval)
}

// gated wraps a job with the connectivity precondition.
func (s *Scheduler) gated(name string, job func(ctx context.Context)) func() {
	return func() {
		s.mu.Lock()
		ctx := s.baseCtx
		s.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return
		}
		if s.probe != nil && !s.probe(ctx) {
			s.logger.Info("Skipping job %s, remote storage unreachable", name)
			return
		}
		job(ctx)
	}
}

// IsScheduled reports whether a job is registered under the name.
func (s *Scheduler) IsScheduled(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[name]
	return ok
}

// NextRun returns the planned next firing of the named job, or nil if the
// job is not scheduled or the scheduler has not started.
func (s *Scheduler) NextRun(name string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[name]
	if !ok {
		return nil
	}
	next := s.cron.Entry(id).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// Stop stops the scheduler and waits for any running jobs to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		ctx := s.cron.Stop()
		<-ctx.Done() // Wait for running jobs to finish
		s.running = false
		s.logger.Info("Scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// carryOverSchedule fires once at a fixed instant, then settles into the
// regular period.
type carryOverSchedule struct {
	first  time.Time
	period time.Duration
}

func (c *carryOverSchedule) Next(t time.Time) time.Time {
	if t.Before(c.first) {
		return c.first
	}
	return t.Add(c.period)
}
