package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/opsgate/internal/config"
	"github.com/harunnryd/opsgate/internal/daemon"
	"github.com/harunnryd/opsgate/internal/diagnostics"
)

type DiagnosticsComponent struct {
	lifecycle
	cfg        *config.DiagnosticsConfig
	policyComp *PolicyComponent
	runner     *diagnostics.Runner
}

func NewDiagnosticsComponent(cfg *config.DiagnosticsConfig, policyComp *PolicyComponent) *DiagnosticsComponent {
	return &DiagnosticsComponent{cfg: cfg, policyComp: policyComp}
}

func (d *DiagnosticsComponent) Name() string {
	return "Diagnostics"
}

func (d *DiagnosticsComponent) Dependencies() []string {
	return []string{"Policy"}
}

func (d *DiagnosticsComponent) Init(ctx context.Context) error {
	if d.policyComp == nil || d.policyComp.Engine() == nil {
		return fmt.Errorf("policy not initialized")
	}

	timeout, err := config.DurationOrDefault(d.cfg.CommandTimeout, config.DefaultDiagnosticsCommandTimeout)
	if err != nil {
		return fmt.Errorf("parse diagnostics command timeout: %w", err)
	}

	runner := diagnostics.NewRunner(diagnostics.Config{
		Workdir: d.cfg.Workdir,
		Timeout: timeout,
		Filter:  d.policyComp.Engine(),
	})

	names := make([]string, 0, len(runner.Checks()))
	for _, check := range runner.Checks() {
		names = append(names, check.Name)
	}

	d.mu.Lock()
	d.runner = runner
	d.mu.Unlock()
	d.markInitialized()
	slog.Info("Diagnostics battery planned", "component", d.Name(), "checks", names, "workdir", d.cfg.Workdir, "timeout", timeout)
	return nil
}

func (d *DiagnosticsComponent) Start(ctx context.Context) error {
	return d.markStarted(d.Name())
}

func (d *DiagnosticsComponent) Stop(ctx context.Context) error {
	d.markStopped()
	return nil
}

func (d *DiagnosticsComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	return d.health(d.Name()), nil
}

func (d *DiagnosticsComponent) Runner() *diagnostics.Runner {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.runner
}
