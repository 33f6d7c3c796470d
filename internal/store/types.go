package store

import (
	"time"

	"github.com/harunnryd/opsgate/internal/policy"
)

// --- Sessions ---

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Session struct {
	ID        string         `json:"session_id"`
	CreatedAt time.Time      `json:"created_at"`
	UserID    string         `json:"user_id,omitempty"`
	Metadata  map[string]any `json:"metadata"`
	Messages  []Message      `json:"messages"`
}

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp_utc"`
}

// --- Jobs ---

type JobStatus string

const (
	StatusQueued           JobStatus = "queued"
	StatusAwaitingApproval JobStatus = "awaiting_approval"
	StatusRunning          JobStatus = "running"
	StatusDone             JobStatus = "done"
	StatusFailed           JobStatus = "failed"
)

// JobStatuses lists every status in lifecycle order.
var JobStatuses = []JobStatus{StatusQueued, StatusAwaitingApproval, StatusRunning, StatusDone, StatusFailed}

// stage orders statuses for the monotonic transition check.
func (s JobStatus) stage() int {
	switch s {
	case StatusQueued, StatusAwaitingApproval:
		return 0
	case StatusRunning:
		return 1
	case StatusDone, StatusFailed:
		return 2
	}
	return -1
}

func (s JobStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

func (s JobStatus) Valid() bool {
	return s.stage() >= 0
}

type Job struct {
	ID                string             `json:"job_id"`
	Status            JobStatus          `json:"status"`
	Risk              policy.Risk        `json:"risk_level"`
	Environment       policy.Environment `json:"environment"`
	Goal              string             `json:"goal"`
	SessionID         string             `json:"session_id,omitempty"`
	RequiredApprovals int                `json:"required_approvals"`
	RunDiagnostics    bool               `json:"run_diagnostics"`
	Approvals         []Approval         `json:"approvals"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	Report            *Report            `json:"report,omitempty"`
}

type Approval struct {
	Approver  string    `json:"approver"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp_utc"`
}

// NewJob carries the caller-supplied fields of a job. The store fills in
// the id, timestamps and approvals.
type NewJob struct {
	Status            JobStatus
	Risk              policy.Risk
	Environment       policy.Environment
	Goal              string
	SessionID         string
	RequiredApprovals int
	RunDiagnostics    bool
}

// JobFilter narrows ListJobs. Zero values match everything.
type JobFilter struct {
	Status      JobStatus
	Environment policy.Environment
	Limit       int
}

// --- Events ---

const (
	EventJobCreated           = "job_created"
	EventJobApproved          = "job_approved"
	EventJobStarted           = "job_started"
	EventDiagnosticsCompleted = "diagnostics_completed"
	EventJobDone              = "job_done"
	EventJobFailed            = "job_failed"
)

type JobEvent struct {
	Timestamp time.Time      `json:"timestamp_utc"`
	Type      string         `json:"event_type"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details"`
}

// --- Reports ---

// ToolResult is the outcome of one diagnostic command.
type ToolResult struct {
	ToolName   string    `json:"tool_name"`
	Command    string    `json:"command"`
	ExitCode   int       `json:"exit_code"`
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr"`
	StartedAt  time.Time `json:"started_at_utc"`
	FinishedAt time.Time `json:"finished_at_utc"`
}

type Report struct {
	JobID       string       `json:"job_id"`
	Status      JobStatus    `json:"status"`
	Risk        policy.Risk  `json:"risk_level"`
	Summary     string       `json:"summary"`
	Diagnostics []ToolResult `json:"diagnostics"`
	Approvals   []Approval   `json:"approvals"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Stats counts jobs per status.
type Stats struct {
	Sessions int               `json:"sessions"`
	Jobs     map[JobStatus]int `json:"jobs"`
}
