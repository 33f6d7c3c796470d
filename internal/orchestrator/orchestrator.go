// Package orchestrator drives jobs from request through approval to a final report.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/opsgate/internal/concurrency"
	"github.com/harunnryd/opsgate/internal/config"
	opsErrors "github.com/harunnryd/opsgate/internal/errors"
	"github.com/harunnryd/opsgate/internal/logger"
	"github.com/harunnryd/opsgate/internal/policy"
	"github.com/harunnryd/opsgate/internal/risk"
	"github.com/harunnryd/opsgate/internal/store"
)

const placeholderSummary = "Job report is not available yet."

type Options struct {
	Policy      ApprovalPolicy
	Store       *store.Store
	Generator   Generator
	Diagnostics DiagnosticsRunner
	Prompts     Prompts
	// Notifier and Reports are optional.
	Notifier Notifier
	Reports  ReportSink
}

type Orchestrator struct {
	policy      ApprovalPolicy
	store       *store.Store
	generator   Generator
	diagnostics DiagnosticsRunner
	prompts     Prompts
	notifier    Notifier
	reports     ReportSink
	background  concurrency.Tracker
}

func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Policy == nil:
		return nil, opsErrors.Configuration("orchestrator requires a policy")
	case opts.Store == nil:
		return nil, opsErrors.Configuration("orchestrator requires a store")
	case opts.Generator == nil:
		return nil, opsErrors.Configuration("orchestrator requires a generator")
	case opts.Diagnostics == nil:
		return nil, opsErrors.Configuration("orchestrator requires a diagnostics runner")
	}

	prompts := opts.Prompts
	if strings.TrimSpace(prompts.Assistant) == "" {
		prompts.Assistant = config.DefaultAssistantSystemPrompt
	}
	if strings.TrimSpace(prompts.Summary) == "" {
		prompts.Summary = config.DefaultSummarySystemPrompt
	}

	return &Orchestrator{
		policy:      opts.Policy,
		store:       opts.Store,
		generator:   opts.Generator,
		diagnostics: opts.Diagnostics,
		prompts:     prompts,
		notifier:    opts.Notifier,
		reports:     opts.Reports,
	}, nil
}

// Wait blocks until background notifications and exports finish or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	return o.background.Wait(ctx)
}

func (o *Orchestrator) CreateSession(userID string, metadata map[string]any) store.Session {
	session := o.store.CreateSession(userID, metadata)
	slog.Info("Session created", "session_id", session.ID)
	return session
}

func (o *Orchestrator) GetSession(sessionID string) (store.Session, error) {
	return o.store.GetSession(sessionID)
}

// HandleMessage answers a chat turn. Requests that would need approval get a
// fixed instructional reply and never reach the generator.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID string, req MessageRequest) (MessageResponse, error) {
	if _, err := o.store.GetSession(sessionID); err != nil {
		return MessageResponse{}, err
	}
	if strings.TrimSpace(req.Message) == "" {
		return MessageResponse{}, opsErrors.InvalidInput("message is required")
	}
	env, err := resolveEnvironment(req.Environment)
	if err != nil {
		return MessageResponse{}, err
	}
	if err := validateRisk(req.Risk); err != nil {
		return MessageResponse{}, err
	}

	level := risk.Classify(req.Message, req.Risk)
	required := o.policy.RequiredApprovals(level, env)

	if err := o.store.AppendSessionMessage(sessionID, store.RoleUser, req.Message); err != nil {
		return MessageResponse{}, err
	}

	var reply string
	if required > 0 {
		reply = fmt.Sprintf(
			"Request classified as %s in %s. This requires %d approval(s). Create a job to continue.",
			level, env, required,
		)
	} else {
		reply = o.generator.Generate(ctx, o.prompts.Assistant, req.Message)
	}

	if err := o.store.AppendSessionMessage(sessionID, store.RoleAssistant, reply); err != nil {
		return MessageResponse{}, err
	}

	slog.Info("Message handled",
		"session_id", sessionID,
		"risk", level,
		"environment", env,
		"required_approvals", required,
		"trace_id", logger.GetTraceID(ctx),
	)

	return MessageResponse{
		SessionID:         sessionID,
		Response:          reply,
		Risk:              level,
		Environment:       env,
		RequiresApproval:  required > 0,
		RequiredApprovals: required,
		Timestamp:         time.Now().UTC(),
	}, nil
}

// CreateJob registers a job. A job that needs no approval runs to completion
// before CreateJob returns.
func (o *Orchestrator) CreateJob(ctx context.Context, req JobRequest) (store.Job, error) {
	if strings.TrimSpace(req.Goal) == "" {
		return store.Job{}, opsErrors.InvalidInput("goal is required")
	}
	env, err := resolveEnvironment(req.Environment)
	if err != nil {
		return store.Job{}, err
	}
	if err := validateRisk(req.Risk); err != nil {
		return store.Job{}, err
	}

	level := risk.Classify(req.Goal, req.Risk)
	required := o.policy.RequiredApprovals(level, env)

	status := store.StatusQueued
	if required > 0 {
		status = store.StatusAwaitingApproval
	}

	job, err := o.store.CreateJob(store.NewJob{
		Status:            status,
		Risk:              level,
		Environment:       env,
		Goal:              req.Goal,
		SessionID:         req.SessionID,
		RequiredApprovals: required,
		RunDiagnostics:    req.RunDiagnostics,
	})
	if err != nil {
		return store.Job{}, err
	}

	o.emit(ctx, job.ID, store.EventJobCreated, "Job created", map[string]any{
		"risk_level":         level.String(),
		"required_approvals": required,
		"environment":        env.String(),
	})
	slog.Info("Job created",
		"job_id", job.ID,
		"risk", level,
		"environment", env,
		"required_approvals", required,
		"trace_id", logger.GetTraceID(ctx),
	)

	if status == store.StatusAwaitingApproval {
		o.publish(ctx, job, nil)
		return job, nil
	}

	claimed, ok, err := o.store.ClaimJob(job.ID)
	if err != nil {
		return store.Job{}, err
	}
	if ok {
		o.execute(ctx, claimed)
	}

	return o.store.GetJob(job.ID)
}

// ApproveJob records an approval. The caller whose approval reaches the
// threshold runs the pipeline; every other caller returns immediately.
func (o *Orchestrator) ApproveJob(ctx context.Context, jobID, approver, comment string) (store.Job, error) {
	if _, err := o.store.GetJob(jobID); err != nil {
		return store.Job{}, err
	}
	if strings.TrimSpace(approver) == "" {
		return store.Job{}, opsErrors.InvalidInput("approver is required")
	}

	job, triggered, err := o.store.ApproveJob(jobID, approver, comment)
	if err != nil {
		return store.Job{}, err
	}

	o.emit(ctx, jobID, store.EventJobApproved, "Approval registered", map[string]any{
		"approver": approver,
		"comment":  comment,
	})
	slog.Info("Job approved",
		"job_id", jobID,
		"approver", approver,
		"approvals", len(job.Approvals),
		"required_approvals", job.RequiredApprovals,
		"triggered", triggered,
	)

	if triggered {
		o.execute(ctx, job)
	}

	return o.store.GetJob(jobID)
}

func (o *Orchestrator) GetJob(jobID string) (store.Job, error) {
	return o.store.GetJob(jobID)
}

func (o *Orchestrator) ListJobs(filter store.JobFilter) []store.Job {
	return o.store.ListJobs(filter)
}

func (o *Orchestrator) GetJobEvents(jobID string) ([]store.JobEvent, error) {
	return o.store.GetJobEvents(jobID)
}

// GetJobReport returns the final report, or a placeholder reflecting the
// job's current state while no report exists.
func (o *Orchestrator) GetJobReport(jobID string) (store.Report, error) {
	job, err := o.store.GetJob(jobID)
	if err != nil {
		return store.Report{}, err
	}
	if job.Report != nil {
		return *job.Report, nil
	}
	return store.Report{
		JobID:       job.ID,
		Status:      job.Status,
		Risk:        job.Risk,
		Summary:     placeholderSummary,
		Diagnostics: []store.ToolResult{},
		Approvals:   job.Approvals,
		UpdatedAt:   job.UpdatedAt,
	}, nil
}

func (o *Orchestrator) Stats() store.Stats {
	return o.store.Stats()
}

func validateRisk(explicit *policy.Risk) error {
	if explicit != nil && !explicit.Valid() {
		return opsErrors.InvalidInput(fmt.Sprintf("invalid risk level: %d", int(*explicit)))
	}
	return nil
}

func resolveEnvironment(env policy.Environment) (policy.Environment, error) {
	if env == "" {
		return policy.Dev, nil
	}
	if !env.Valid() {
		return "", opsErrors.InvalidInput(fmt.Sprintf("invalid environment: %q", env))
	}
	return env, nil
}

// emit records a job event. The job exists whenever emit is called, so a
// failure here is logged rather than returned.
func (o *Orchestrator) emit(ctx context.Context, jobID, eventType, message string, details map[string]any) {
	if err := o.store.AddJobEvent(jobID, eventType, message, details); err != nil {
		slog.Error("Failed to record job event",
			"job_id", jobID,
			"event", eventType,
			"error", err,
			"trace_id", logger.GetTraceID(ctx),
		)
	}
}
