package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/opsgate/internal/config"
	"github.com/harunnryd/opsgate/internal/daemon"
	"github.com/harunnryd/opsgate/internal/policy"
)

type PolicyComponent struct {
	lifecycle
	cfg    *config.PolicyConfig
	engine *policy.Engine
}

func NewPolicyComponent(cfg *config.PolicyConfig) *PolicyComponent {
	return &PolicyComponent{cfg: cfg}
}

func (p *PolicyComponent) Name() string {
	return "Policy"
}

func (p *PolicyComponent) Dependencies() []string {
	return nil
}

func (p *PolicyComponent) Init(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("Policy init cancelled: %w", ctx.Err())
	default:
	}

	engine, err := policy.Load(p.cfg.Path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.engine = engine
	p.mu.Unlock()
	p.markInitialized()
	slog.Info("Policy loaded", "component", p.Name(), "path", p.cfg.Path, "rules", len(engine.Rules()))
	return nil
}

func (p *PolicyComponent) Start(ctx context.Context) error {
	return p.markStarted(p.Name())
}

func (p *PolicyComponent) Stop(ctx context.Context) error {
	p.markStopped()
	return nil
}

func (p *PolicyComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	return p.health(p.Name()), nil
}

func (p *PolicyComponent) Engine() *policy.Engine {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.engine
}
