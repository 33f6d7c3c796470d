package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/harunnryd/opsgate/internal/logger"
	"github.com/harunnryd/opsgate/internal/store"
)

// pipelineResult is the outcome of one pipeline run. diagnostics holds what
// was collected even when err is set.
type pipelineResult struct {
	summary     string
	diagnostics []store.ToolResult
	err         error
}

// execute runs the pipeline for a job already claimed as running and records
// the terminal report. Callers reach it at most once per job through
// store.ClaimJob or store.ApproveJob.
func (o *Orchestrator) execute(ctx context.Context, job store.Job) {
	// The job outlives the request that triggered it.
	ctx = logger.WithJobID(context.WithoutCancel(ctx), job.ID)
	started := time.Now()

	result := o.runPipeline(ctx, job)
	if result.err == nil {
		result.err = o.complete(ctx, job, result)
		if result.err == nil {
			slog.Info("Job done", "job_id", job.ID, "duration_ms", time.Since(started).Milliseconds())
			return
		}
	}

	o.fail(ctx, job, result)
	slog.Warn("Job failed", "job_id", job.ID, "error", result.err, "duration_ms", time.Since(started).Milliseconds())
}

func (o *Orchestrator) runPipeline(ctx context.Context, job store.Job) (result pipelineResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Pipeline panic recovered", "job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
			result.err = fmt.Errorf("panic: %v", r)
		}
	}()

	o.emit(ctx, job.ID, store.EventJobStarted, "Job execution started", nil)

	if job.RunDiagnostics {
		result.diagnostics = o.diagnostics.Run(ctx)
		o.emit(ctx, job.ID, store.EventDiagnosticsCompleted, "Read-only diagnostics completed", map[string]any{
			"checks": len(result.diagnostics),
		})
	}

	prompt := buildSummaryPrompt(job.Goal, result.diagnostics)
	result.summary = o.generator.Generate(ctx, o.prompts.Summary, prompt)
	return result
}

func (o *Orchestrator) complete(ctx context.Context, job store.Job, result pipelineResult) error {
	report := o.buildReport(job, store.StatusDone, result.summary, result.diagnostics)
	finished, err := o.store.FinishJob(job.ID, report)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	o.emit(ctx, job.ID, store.EventJobDone, "Job completed successfully", nil)
	o.publish(ctx, finished, finished.Report)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, job store.Job, result pipelineResult) {
	summary := fmt.Sprintf("Execution failed: %v", result.err)
	report := o.buildReport(job, store.StatusFailed, summary, result.diagnostics)

	finished, err := o.store.FinishJob(job.ID, report)
	if err != nil {
		slog.Error("Failed to mark job failed", "job_id", job.ID, "error", err)
		return
	}
	o.emit(ctx, job.ID, store.EventJobFailed, "Job failed", map[string]any{
		"error": result.err.Error(),
	})
	o.publish(ctx, finished, finished.Report)
}

// buildReport leaves approvals to FinishJob, which snapshots them.
func (o *Orchestrator) buildReport(job store.Job, status store.JobStatus, summary string, diagnostics []store.ToolResult) store.Report {
	if diagnostics == nil {
		diagnostics = []store.ToolResult{}
	}
	return store.Report{
		JobID:       job.ID,
		Status:      status,
		Risk:        job.Risk,
		Summary:     summary,
		Diagnostics: diagnostics,
		UpdatedAt:   time.Now().UTC(),
	}
}

// publish hands the job to the notifier and, for terminal jobs, the report
// sink. Both run in the background and their errors are only logged.
func (o *Orchestrator) publish(ctx context.Context, job store.Job, report *store.Report) {
	ctx = context.WithoutCancel(ctx)

	if o.notifier != nil {
		o.background.Go("notify", func() {
			if err := o.notifier.NotifyJob(ctx, job); err != nil {
				slog.Warn("Job notification failed", "job_id", job.ID, "status", job.Status, "error", err)
			}
		})
	}

	if o.reports != nil && report != nil {
		exported := *report
		o.background.Go("export-report", func() {
			if err := o.reports.Export(ctx, exported); err != nil {
				slog.Warn("Report export failed", "job_id", job.ID, "error", err)
			}
		})
	}
}
