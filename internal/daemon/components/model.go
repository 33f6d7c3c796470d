package components

import (
	"context"
	"log/slog"

	"github.com/harunnryd/opsgate/internal/config"
	"github.com/harunnryd/opsgate/internal/daemon"
	"github.com/harunnryd/opsgate/internal/model"
)

// ModelComponent builds the provider router and the text generator on top
// of it. Provider reachability is not part of its health: the generator
// degrades to fallback text instead.
type ModelComponent struct {
	lifecycle
	cfg       *config.ModelsConfig
	router    *model.DefaultModelRouter
	generator *model.Generator
}

func NewModelComponent(cfg *config.ModelsConfig) *ModelComponent {
	return &ModelComponent{cfg: cfg}
}

func (m *ModelComponent) Name() string {
	return "Model"
}

func (m *ModelComponent) Dependencies() []string {
	return nil
}

func (m *ModelComponent) Init(ctx context.Context) error {
	router, err := model.NewModelRouter(*m.cfg)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.router = router
	m.generator = model.NewGenerator(router, m.cfg.Default)
	m.mu.Unlock()
	m.markInitialized()
	slog.Info("Model router initialized", "component", m.Name(), "default", m.cfg.Default, "models", router.ListModels())
	return nil
}

func (m *ModelComponent) Start(ctx context.Context) error {
	return m.markStarted(m.Name())
}

func (m *ModelComponent) Stop(ctx context.Context) error {
	m.markStopped()
	return nil
}

func (m *ModelComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	return m.health(m.Name()), nil
}

func (m *ModelComponent) Generator() *model.Generator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generator
}
