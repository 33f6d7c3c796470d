package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/harunnryd/opsgate/internal/api"
	"github.com/harunnryd/opsgate/internal/concurrency"
	"github.com/harunnryd/opsgate/internal/config"
	"github.com/harunnryd/opsgate/internal/daemon"
)

type HTTPServerComponent struct {
	lifecycle
	cfg         *config.ServerConfig
	healthFn    api.HealthFunc
	orchComp    *OrchestratorComponent
	server      *http.Server
	shutdownTTL time.Duration
}

// NewHTTPServerComponent serves the API. health may be nil.
func NewHTTPServerComponent(cfg *config.ServerConfig, orchComp *OrchestratorComponent, health api.HealthFunc) *HTTPServerComponent {
	return &HTTPServerComponent{
		cfg:      cfg,
		orchComp: orchComp,
		healthFn: health,
	}
}

func (h *HTTPServerComponent) Name() string {
	return "HTTPServer"
}

func (h *HTTPServerComponent) Dependencies() []string {
	return []string{"Orchestrator", "Scheduler"}
}

func (h *HTTPServerComponent) Init(ctx context.Context) error {
	if h.orchComp == nil || h.orchComp.Orchestrator() == nil {
		return fmt.Errorf("orchestrator not initialized")
	}

	readTimeout, err := config.DurationOrDefault(h.cfg.ReadTimeout, config.DefaultServerReadTimeout)
	if err != nil {
		return fmt.Errorf("parse server read timeout: %w", err)
	}
	writeTimeout, err := config.DurationOrDefault(h.cfg.WriteTimeout, config.DefaultServerWriteTimeout)
	if err != nil {
		return fmt.Errorf("parse server write timeout: %w", err)
	}
	idleTimeout, err := config.DurationOrDefault(h.cfg.IdleTimeout, config.DefaultServerIdleTimeout)
	if err != nil {
		return fmt.Errorf("parse server idle timeout: %w", err)
	}
	shutdownTimeout, err := config.DurationOrDefault(h.cfg.ShutdownTimeout, config.DefaultServerShutdownTimeout)
	if err != nil {
		return fmt.Errorf("parse server shutdown timeout: %w", err)
	}

	h.mu.Lock()
	h.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", h.cfg.Port),
		Handler:      api.NewRouter(h.orchComp.Orchestrator(), h.healthFn),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	h.shutdownTTL = shutdownTimeout
	h.mu.Unlock()

	h.markInitialized()
	slog.Info("HTTPServer initialized", "component", h.Name(), "port", h.cfg.Port)
	return nil
}

// Start binds the listener synchronously so a busy port fails startup.
func (h *HTTPServerComponent) Start(ctx context.Context) error {
	if err := h.markStarted(h.Name()); err != nil {
		return err
	}

	h.mu.RLock()
	server := h.server
	h.mu.RUnlock()

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		h.markStopped()
		return fmt.Errorf("listen on %s: %w", server.Addr, err)
	}

	concurrency.SafeGo(func() {
		slog.Info("HTTP server listening", "component", h.Name(), "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "component", h.Name(), "error", err)
		}
	}, nil)
	return nil
}

func (h *HTTPServerComponent) Stop(ctx context.Context) error {
	if !h.markStopped() {
		slog.Info("HTTPServer not started, skipping stop", "component", h.Name())
		return nil
	}

	slog.Info("Stopping HTTPServer...", "component", h.Name())
	h.mu.RLock()
	server, ttl := h.server, h.shutdownTTL
	h.mu.RUnlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTPServer shutdown error", "component", h.Name(), "error", err)
		return err
	}

	slog.Info("HTTPServer stopped", "component", h.Name())
	return nil
}

func (h *HTTPServerComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	return h.health(h.Name()), nil
}
