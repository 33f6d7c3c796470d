package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/opsgate/internal/config"
	"github.com/harunnryd/opsgate/internal/daemon"
	"github.com/harunnryd/opsgate/internal/orchestrator"
)

type OrchestratorComponent struct {
	lifecycle
	cfg          *config.Config
	policyComp   *PolicyComponent
	storeComp    *StoreComponent
	modelComp    *ModelComponent
	diagComp     *DiagnosticsComponent
	notifierComp *NotifierComponent
	orch         *orchestrator.Orchestrator
}

func NewOrchestratorComponent(
	cfg *config.Config,
	policyComp *PolicyComponent,
	storeComp *StoreComponent,
	modelComp *ModelComponent,
	diagComp *DiagnosticsComponent,
	notifierComp *NotifierComponent,
) *OrchestratorComponent {
	return &OrchestratorComponent{
		cfg:          cfg,
		policyComp:   policyComp,
		storeComp:    storeComp,
		modelComp:    modelComp,
		diagComp:     diagComp,
		notifierComp: notifierComp,
	}
}

func (o *OrchestratorComponent) Name() string {
	return "Orchestrator"
}

func (o *OrchestratorComponent) Dependencies() []string {
	return []string{"Policy", "Store", "Model", "Diagnostics", "Notifier"}
}

func (o *OrchestratorComponent) Init(ctx context.Context) error {
	if o.policyComp == nil || o.storeComp == nil || o.modelComp == nil || o.diagComp == nil || o.notifierComp == nil {
		return fmt.Errorf("required component dependencies not provided")
	}

	opts := orchestrator.Options{
		Policy:      o.policyComp.Engine(),
		Store:       o.storeComp.Store(),
		Generator:   o.modelComp.Generator(),
		Diagnostics: o.diagComp.Runner(),
		Prompts: orchestrator.Prompts{
			Assistant: o.cfg.Prompts.Assistant,
			Summary:   o.cfg.Prompts.Summary,
		},
		Notifier: o.notifierComp.Notifier(),
	}
	if sink := o.notifierComp.Sink(); sink != nil {
		opts.Reports = sink
	}

	orch, err := orchestrator.New(opts)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	o.mu.Lock()
	o.orch = orch
	o.mu.Unlock()
	o.markInitialized()
	slog.Info("Orchestrator initialized", "component", o.Name())
	return nil
}

func (o *OrchestratorComponent) Start(ctx context.Context) error {
	return o.markStarted(o.Name())
}

// Stop waits for pending notifications and report exports.
func (o *OrchestratorComponent) Stop(ctx context.Context) error {
	if !o.markStopped() {
		return nil
	}
	if err := o.Orchestrator().Wait(ctx); err != nil {
		return fmt.Errorf("wait for background deliveries: %w", err)
	}
	slog.Info("Orchestrator stopped", "component", o.Name())
	return nil
}

func (o *OrchestratorComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	return o.health(o.Name()), nil
}

func (o *OrchestratorComponent) Orchestrator() *orchestrator.Orchestrator {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.orch
}
