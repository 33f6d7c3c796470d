package components

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/harunnryd/opsgate/internal/config"
	"github.com/harunnryd/opsgate/internal/daemon"
	"github.com/harunnryd/opsgate/internal/scheduler"
)

type SchedulerComponent struct {
	sched    *scheduler.Scheduler
	cfg      *config.Config
	stateDir string
	orchComp *OrchestratorComponent
}

func NewSchedulerComponent(cfg *config.Config, stateDir string, orchComp *OrchestratorComponent) *SchedulerComponent {
	return &SchedulerComponent{
		cfg:      cfg,
		stateDir: stateDir,
		orchComp: orchComp,
	}
}

func (s *SchedulerComponent) Name() string {
	return "Scheduler"
}

func (s *SchedulerComponent) Dependencies() []string {
	return []string{"Orchestrator"}
}

func (s *SchedulerComponent) Init(ctx context.Context) error {
	if s.orchComp == nil || s.orchComp.Orchestrator() == nil {
		return fmt.Errorf("orchestrator not initialized")
	}

	schedules, err := scheduler.ParseSchedules(s.cfg.Schedules)
	if err != nil {
		return err
	}

	st, err := scheduler.NewStore(filepath.Join(s.stateDir, scheduler.StateFile))
	if err != nil {
		return fmt.Errorf("failed to create scheduler store: %w", err)
	}
	sched, err := scheduler.NewScheduler(schedules, st, s.orchComp.Orchestrator(), s.cfg.Scheduler)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := sched.Init(ctx); err != nil {
		return fmt.Errorf("failed to init scheduler: %w", err)
	}

	s.sched = sched
	slog.Info("Scheduler component initialized", "component", s.Name(), "schedules", len(schedules))
	return nil
}

func (s *SchedulerComponent) Start(ctx context.Context) error {
	if s.sched == nil {
		return fmt.Errorf("scheduler not initialized")
	}
	return s.sched.Start(ctx)
}

func (s *SchedulerComponent) Stop(ctx context.Context) error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Stop(ctx)
}

func (s *SchedulerComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if s.sched == nil {
		return &daemon.ComponentHealth{Name: s.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	if err := s.sched.Health(ctx); err != nil {
		return &daemon.ComponentHealth{Name: s.Name(), Healthy: false, Error: err}, nil
	}
	return &daemon.ComponentHealth{Name: s.Name(), Healthy: true}, nil
}
