// Package api exposes the orchestrator over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/harunnryd/opsgate/internal/logger"
	"github.com/harunnryd/opsgate/internal/orchestrator"
	"github.com/harunnryd/opsgate/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

// Service is the orchestrator surface the handlers need.
type Service interface {
	CreateSession(userID string, metadata map[string]any) store.Session
	HandleMessage(ctx context.Context, sessionID string, req orchestrator.MessageRequest) (orchestrator.MessageResponse, error)
	CreateJob(ctx context.Context, req orchestrator.JobRequest) (store.Job, error)
	ApproveJob(ctx context.Context, jobID, approver, comment string) (store.Job, error)
	GetJob(jobID string) (store.Job, error)
	ListJobs(filter store.JobFilter) []store.Job
	GetJobEvents(jobID string) ([]store.JobEvent, error)
	GetJobReport(jobID string) (store.Report, error)
}

// HealthFunc reports per-component health. A nil error means healthy.
type HealthFunc func(ctx context.Context) map[string]error

type Handler struct {
	svc    Service
	health HealthFunc
}

func NewHandler(svc Service, health HealthFunc) *Handler {
	return &Handler{svc: svc, health: health}
}

// NewRouter builds the full route tree with the standard middleware stack.
func NewRouter(svc Service, health HealthFunc) http.Handler {
	h := NewHandler(svc, health)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(traceRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	r.Get("/health", h.Health)
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/agent", func(r chi.Router) {
		r.Post("/sessions", h.CreateSession)
		r.Post("/sessions/{sessionID}/messages", h.SendMessage)

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", h.CreateJob)
			r.Get("/", h.ListJobs)
			r.Get("/{jobID}", h.GetJob)
			r.Post("/{jobID}/approve", h.ApproveJob)
			r.Get("/{jobID}/events", h.GetJobEvents)
			r.Get("/{jobID}/report", h.GetJobReport)
		})
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok"}
	code := http.StatusOK

	if h.health != nil {
		components := make(map[string]any)
		for name, err := range h.health(r.Context()) {
			entry := map[string]any{"healthy": err == nil}
			if err != nil {
				entry["error"] = err.Error()
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
			components[name] = entry
		}
		status["components"] = components
	}

	JSON(w, code, status)
}

// traceRequests attaches the request id as trace id and logs each request.
func traceRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ctx := r.Context()
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			ctx = logger.WithTraceID(ctx, reqID)
		}
		ctx = logger.EnsureTraceID(ctx)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(started).Milliseconds(),
			"trace_id", logger.GetTraceID(ctx),
		)
	})
}
