package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/opsgate/internal/config"
	"github.com/harunnryd/opsgate/internal/daemon"
	"github.com/harunnryd/opsgate/internal/store"
)

// StoreComponent owns the in-memory store and the instance lock on the
// state directory.
type StoreComponent struct {
	lifecycle
	stateDir string
	cfg      *config.DaemonConfig
	lock     *store.FileLock
	store    *store.Store
}

func NewStoreComponent(stateDir string, cfg *config.DaemonConfig) *StoreComponent {
	return &StoreComponent{stateDir: stateDir, cfg: cfg}
}

func (s *StoreComponent) Name() string {
	return "Store"
}

func (s *StoreComponent) Dependencies() []string {
	return nil
}

func (s *StoreComponent) Init(ctx context.Context) error {
	lockTimeout, err := config.DurationOrDefault(s.cfg.LockTimeout, config.DefaultDaemonLockTimeout)
	if err != nil {
		return fmt.Errorf("parse daemon lock timeout: %w", err)
	}
	lockRetry, err := config.DurationOrDefault(s.cfg.LockRetry, config.DefaultDaemonLockRetry)
	if err != nil {
		return fmt.Errorf("parse daemon lock retry: %w", err)
	}

	lock, err := store.NewFileLock(ctx, s.stateDir, &store.FileLockConfig{
		LockTimeout: lockTimeout,
		LockRetry:   lockRetry,
	})
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}

	s.mu.Lock()
	s.lock = lock
	s.store = store.New()
	s.mu.Unlock()
	s.markInitialized()
	slog.Info("Store initialized", "component", s.Name(), "state_dir", s.stateDir)
	return nil
}

func (s *StoreComponent) Start(ctx context.Context) error {
	return s.markStarted(s.Name())
}

// Stop releases the instance lock. It also runs during rollback, when Start
// never happened.
func (s *StoreComponent) Stop(ctx context.Context) error {
	s.markStopped()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lock != nil {
		s.lock.Unlock()
		s.lock = nil
	}
	return nil
}

func (s *StoreComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	health := s.health(s.Name())
	if !health.Healthy {
		return health, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lock == nil || !s.lock.IsLocked() {
		return &daemon.ComponentHealth{Name: s.Name(), Healthy: false, Error: fmt.Errorf("lock not held")}, nil
	}
	return health, nil
}

func (s *StoreComponent) Store() *store.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}
