package components

import (
	"fmt"
	"sync"

	"github.com/harunnryd/opsgate/internal/daemon"
)

// lifecycle tracks the init/start flags every component reports on.
type lifecycle struct {
	mu          sync.RWMutex
	initialized bool
	started     bool
}

func (l *lifecycle) markInitialized() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.initialized = true
}

// markStarted fails when Init has not completed.
func (l *lifecycle) markStarted(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return fmt.Errorf("%s not initialized", name)
	}
	l.started = true
	return nil
}

// markStopped reports whether the component was running.
func (l *lifecycle) markStopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	wasStarted := l.started
	l.started = false
	return wasStarted
}

func (l *lifecycle) health(name string) *daemon.ComponentHealth {
	l.mu.RLock()
	defer l.mu.RUnlock()

	switch {
	case !l.initialized:
		return &daemon.ComponentHealth{Name: name, Healthy: false, Error: fmt.Errorf("not initialized")}
	case !l.started:
		return &daemon.ComponentHealth{Name: name, Healthy: false, Error: fmt.Errorf("not started")}
	default:
		return &daemon.ComponentHealth{Name: name, Healthy: true}
	}
}
