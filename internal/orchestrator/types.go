package orchestrator

import (
	"context"
	"time"

	"github.com/harunnryd/opsgate/internal/policy"
	"github.com/harunnryd/opsgate/internal/store"
)

// Generator produces text for a system role and a user prompt. It never fails.
type Generator interface {
	Generate(ctx context.Context, system, user string) string
}

// DiagnosticsRunner runs the read-only battery, one result per planned check.
type DiagnosticsRunner interface {
	Run(ctx context.Context) []store.ToolResult
}

// ApprovalPolicy computes how many approvals a request needs.
type ApprovalPolicy interface {
	RequiredApprovals(risk policy.Risk, env policy.Environment) int
}

// Notifier is told when a job starts waiting for approval or finishes.
type Notifier interface {
	NotifyJob(ctx context.Context, job store.Job) error
}

// ReportSink receives every terminal report.
type ReportSink interface {
	Export(ctx context.Context, report store.Report) error
}

type Prompts struct {
	Assistant string
	Summary   string
}

type MessageRequest struct {
	Message     string
	Environment policy.Environment
	Risk        *policy.Risk
}

type MessageResponse struct {
	SessionID         string             `json:"session_id"`
	Response          string             `json:"response"`
	Risk              policy.Risk        `json:"risk_level"`
	Environment       policy.Environment `json:"environment"`
	RequiresApproval  bool               `json:"requires_approval"`
	RequiredApprovals int                `json:"required_approvals"`
	Timestamp         time.Time          `json:"timestamp_utc"`
}

type JobRequest struct {
	Goal           string
	Environment    policy.Environment
	Risk           *policy.Risk
	SessionID      string
	RunDiagnostics bool
}
