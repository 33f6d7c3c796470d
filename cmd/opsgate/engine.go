package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harunnryd/opsgate/internal/config"
	"github.com/harunnryd/opsgate/internal/daemon"
	"github.com/harunnryd/opsgate/internal/daemon/components"
	"github.com/harunnryd/opsgate/internal/orchestrator"
	"github.com/harunnryd/opsgate/internal/store"
)

// engine is the in-process component set behind one-shot commands: the
// daemon stack without the scheduler and HTTP server.
type engine struct {
	parts []daemon.Component
	orch  *components.OrchestratorComponent
}

func newEngine(cfg *config.Config) (*engine, error) {
	stateDir, err := store.ResolveStateDir(cfg.Daemon.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state dir: %w", err)
	}

	policyComp := components.NewPolicyComponent(&cfg.Policy)
	storeComp := components.NewStoreComponent(stateDir, &cfg.Daemon)
	modelComp := components.NewModelComponent(&cfg.Models)
	diagComp := components.NewDiagnosticsComponent(&cfg.Diagnostics, policyComp)
	notifierComp := components.NewNotifierComponent(&cfg.Notify, &cfg.Reports)
	orchComp := components.NewOrchestratorComponent(cfg, policyComp, storeComp, modelComp, diagComp, notifierComp)

	return &engine{
		parts: []daemon.Component{policyComp, storeComp, modelComp, diagComp, notifierComp, orchComp},
		orch:  orchComp,
	}, nil
}

func (e *engine) start(ctx context.Context) error {
	for i, part := range e.parts {
		if err := part.Init(ctx); err != nil {
			e.stopFirst(ctx, i)
			return fmt.Errorf("failed to initialize %s: %w", part.Name(), err)
		}
	}
	for _, part := range e.parts {
		if err := part.Start(ctx); err != nil {
			e.stop(ctx)
			return fmt.Errorf("failed to start %s: %w", part.Name(), err)
		}
	}
	return nil
}

func (e *engine) stop(ctx context.Context) error {
	return e.stopFirst(ctx, len(e.parts))
}

// stopFirst stops the first n parts in reverse order.
func (e *engine) stopFirst(ctx context.Context, n int) error {
	var errs []error
	for i := n - 1; i >= 0; i-- {
		if err := e.parts[i].Stop(ctx); err != nil {
			slog.Warn("Component stop failed", "component", e.parts[i].Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *engine) orchestrator() *orchestrator.Orchestrator {
	return e.orch.Orchestrator()
}

// withEngine runs fn against a started engine and always tears it down.
func withEngine(ctx context.Context, cfg *config.Config, fn func(*orchestrator.Orchestrator) error) (err error) {
	if cfg == nil {
		return fmt.Errorf("config not loaded")
	}

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	if err := eng.start(ctx); err != nil {
		return err
	}
	defer func() {
		if stopErr := eng.stop(context.WithoutCancel(ctx)); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	return fn(eng.orchestrator())
}
