// Package scheduler submits configured goals as jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/opsgate/internal/config"
	opsErrors "github.com/harunnryd/opsgate/internal/errors"
	"github.com/harunnryd/opsgate/internal/orchestrator"
	"github.com/harunnryd/opsgate/internal/store"
)

const StateFile = "schedules.json"

// JobSubmitter creates jobs. The orchestrator satisfies it.
type JobSubmitter interface {
	CreateJob(ctx context.Context, req orchestrator.JobRequest) (store.Job, error)
}

type Scheduler struct {
	schedules []Schedule
	store     *Store
	submitter JobSubmitter

	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	running  bool
	inFlight map[string]bool
	wg       sync.WaitGroup

	tickInterval    time.Duration
	shutdownTimeout time.Duration
	now             func() time.Time
}

func NewScheduler(schedules []Schedule, st *Store, submitter JobSubmitter, cfg config.SchedulerConfig) (*Scheduler, error) {
	if st == nil || submitter == nil {
		return nil, opsErrors.Configuration("scheduler requires a store and a job submitter")
	}

	tickInterval, err := config.DurationOrDefault(cfg.TickInterval, config.DefaultSchedulerTickInterval)
	if err != nil {
		return nil, fmt.Errorf("parse scheduler tick interval: %w", err)
	}
	shutdownTimeout, err := config.DurationOrDefault(cfg.ShutdownTimeout, config.DefaultSchedulerShutdownTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse scheduler shutdown timeout: %w", err)
	}

	return &Scheduler{
		schedules:       schedules,
		store:           st,
		submitter:       submitter,
		inFlight:        make(map[string]bool),
		tickInterval:    tickInterval,
		shutdownTimeout: shutdownTimeout,
		now:             time.Now,
	}, nil
}

// Init seeds run state. A schedule whose stored next run is already past
// fires once on the first tick; missed runs are not replayed individually.
func (s *Scheduler) Init(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	now := s.now()
	missed := 0
	for _, sched := range s.schedules {
		state, ok := s.store.Get(sched.Name)
		if ok && !state.NextRun.IsZero() {
			if state.NextRun.Before(now) {
				missed++
			}
			continue
		}
		state.Name = sched.Name
		state.NextRun = sched.cron.Next(now)
		if err := s.store.Put(state); err != nil {
			return fmt.Errorf("init schedule %q: %w", sched.Name, err)
		}
	}

	if missed > 0 {
		slog.Warn("Schedules missed runs while stopped", "count", missed)
	}
	slog.Info("Scheduler initialized", "schedules", len(s.schedules))
	return nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	if s.ctx == nil {
		s.mu.Unlock()
		return opsErrors.Internal("scheduler not initialized")
	}
	s.running = true
	s.mu.Unlock()

	go s.run()

	slog.Info("Scheduler started", "tick_interval", s.tickInterval)
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Scheduler stopped gracefully")
		return nil
	case <-time.After(s.shutdownTimeout):
		slog.Warn("Scheduler shutdown timeout, in-flight jobs continue detached")
		return opsErrors.Internal("shutdown timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Health(ctx context.Context) error {
	if s.ctx == nil {
		return opsErrors.Internal("scheduler not initialized")
	}
	if !s.IsRunning() {
		return opsErrors.Internal("scheduler not running")
	}
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	s.tick(s.ctx)
	for {
		select {
		case <-ticker.C:
			s.tick(s.ctx)
		case <-s.ctx.Done():
			slog.Info("Scheduler run loop stopped")
			return
		}
	}
}

// tick fires every due schedule that is not already running.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	for _, sched := range s.schedules {
		state, ok := s.store.Get(sched.Name)
		if !ok {
			state = RunState{Name: sched.Name, NextRun: sched.cron.Next(now)}
		}
		if state.NextRun.After(now) {
			continue
		}
		if !s.claim(sched.Name) {
			slog.Debug("Schedule still running, skipping", "schedule", sched.Name)
			continue
		}

		state.LastRun = now
		state.NextRun = sched.cron.Next(now)
		if err := s.store.Put(state); err != nil {
			slog.Error("Failed to persist schedule state", "schedule", sched.Name, "error", err)
		}

		s.wg.Add(1)
		go s.fire(ctx, sched)
	}
}

func (s *Scheduler) claim(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[name] {
		return false
	}
	s.inFlight[name] = true
	return true
}

func (s *Scheduler) release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, name)
}

func (s *Scheduler) fire(ctx context.Context, sched Schedule) {
	defer s.wg.Done()
	defer s.release(sched.Name)

	slog.Info("Schedule fired", "schedule", sched.Name, "goal", sched.Request.Goal)
	job, err := s.submitter.CreateJob(ctx, sched.Request)

	state, _ := s.store.Get(sched.Name)
	state.Name = sched.Name
	if err != nil {
		state.LastError = err.Error()
		state.LastStatus = ""
		slog.Error("Scheduled job submission failed", "schedule", sched.Name, "error", err)
	} else {
		state.LastError = ""
		state.LastJobID = job.ID
		state.LastStatus = string(job.Status)
		slog.Info("Scheduled job submitted", "schedule", sched.Name, "job_id", job.ID, "status", job.Status)
	}
	if err := s.store.Put(state); err != nil {
		slog.Error("Failed to persist schedule state", "schedule", sched.Name, "error", err)
	}
}
