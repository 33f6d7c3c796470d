package orchestrator

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	opsErrors "github.com/harunnryd/opsgate/internal/errors"
	"github.com/harunnryd/opsgate/internal/policy"
	"github.com/harunnryd/opsgate/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPolicy = `
environment_controls:
  dev:
    max_auto_risk: R1
  prod:
    max_auto_risk: R0
approval_rules:
  - when:
      environment: prod
      min_risk: R2
    required_approvals: 2
`

type fakeGenerator struct {
	reply string
	panic bool

	mu    sync.Mutex
	calls []string
}

func (g *fakeGenerator) Generate(ctx context.Context, system, user string) string {
	g.mu.Lock()
	g.calls = append(g.calls, system+"\n"+user)
	g.mu.Unlock()
	if g.panic {
		panic("generator exploded")
	}
	return g.reply
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeDiagnostics struct {
	delay time.Duration
	runs  atomic.Int32
}

func (d *fakeDiagnostics) Run(ctx context.Context) []store.ToolResult {
	d.runs.Add(1)
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	return []store.ToolResult{
		{ToolName: "git_status", Command: "git status --short", ExitCode: 0, Stdout: "M main.go\n"},
		{ToolName: "kubectl_context", Command: "kubectl config current-context", ExitCode: 127, Stderr: "command not found: kubectl"},
	}
}

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []store.Job
}

func (n *recordingNotifier) NotifyJob(ctx context.Context, job store.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
	return nil
}

type recordingSink struct {
	mu      sync.Mutex
	reports []store.Report
}

func (s *recordingSink) Export(ctx context.Context, report store.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}

type fixture struct {
	orch      *Orchestrator
	store     *store.Store
	generator *fakeGenerator
	diag      *fakeDiagnostics
	notifier  *recordingNotifier
	sink      *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine, err := policy.Parse([]byte(testPolicy))
	require.NoError(t, err)

	f := &fixture{
		store:     store.New(),
		generator: &fakeGenerator{reply: "summary text"},
		diag:      &fakeDiagnostics{},
		notifier:  &recordingNotifier{},
		sink:      &recordingSink{},
	}
	f.orch, err = New(Options{
		Policy:      engine,
		Store:       f.store,
		Generator:   f.generator,
		Diagnostics: f.diag,
		Prompts:     Prompts{Assistant: "assistant-role", Summary: "summary-role"},
		Notifier:    f.notifier,
		Reports:     f.sink,
	})
	require.NoError(t, err)
	return f
}

func eventTypes(t *testing.T, o *Orchestrator, jobID string) []string {
	t.Helper()
	events, err := o.GetJobEvents(jobID)
	require.NoError(t, err)
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, opsErrors.ErrConfiguration)
}

func TestCreateJobRunsImmediatelyWhenNoApprovalNeeded(t *testing.T) {
	f := newFixture(t)

	job, err := f.orch.CreateJob(context.Background(), JobRequest{
		Goal:           "restart service",
		Environment:    policy.Dev,
		RunDiagnostics: true,
	})
	require.NoError(t, err)

	assert.Equal(t, policy.R1, job.Risk)
	assert.Equal(t, 0, job.RequiredApprovals)
	assert.Equal(t, store.StatusDone, job.Status)
	require.NotNil(t, job.Report)
	assert.Equal(t, "summary text", job.Report.Summary)
	assert.Len(t, job.Report.Diagnostics, 2)

	assert.Equal(t, []string{
		store.EventJobCreated,
		store.EventJobStarted,
		store.EventDiagnosticsCompleted,
		store.EventJobDone,
	}, eventTypes(t, f.orch, job.ID))

	events, err := f.orch.GetJobEvents(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "R1", events[0].Details["risk_level"])
	assert.Equal(t, 0, events[0].Details["required_approvals"])
	assert.Equal(t, "dev", events[0].Details["environment"])
	assert.Equal(t, 2, events[2].Details["checks"])

	require.Equal(t, 1, f.generator.callCount())
	call := f.generator.calls[0]
	assert.True(t, strings.HasPrefix(call, "summary-role\nGoal: restart service"))
	assert.Contains(t, call, "- kubectl_context | exit=127")
}

func TestCreateJobWithoutDiagnostics(t *testing.T) {
	f := newFixture(t)

	job, err := f.orch.CreateJob(context.Background(), JobRequest{Goal: "show status"})
	require.NoError(t, err)

	assert.Equal(t, store.StatusDone, job.Status)
	assert.Equal(t, policy.Dev, job.Environment)
	assert.Empty(t, job.Report.Diagnostics)
	assert.Equal(t, int32(0), f.diag.runs.Load())
	assert.Equal(t, []string{store.EventJobCreated, store.EventJobStarted, store.EventJobDone}, eventTypes(t, f.orch, job.ID))
}

func TestGatedJobRunsAfterThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.orch.CreateJob(ctx, JobRequest{
		Goal:           "drop database",
		Environment:    policy.Prod,
		RunDiagnostics: true,
	})
	require.NoError(t, err)
	assert.Equal(t, policy.R3, job.Risk)
	assert.Equal(t, 2, job.RequiredApprovals)
	assert.Equal(t, store.StatusAwaitingApproval, job.Status)
	assert.Nil(t, job.Report)

	report, err := f.orch.GetJobReport(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Job report is not available yet.", report.Summary)
	assert.Equal(t, store.StatusAwaitingApproval, report.Status)
	assert.Empty(t, report.Diagnostics)

	job, err = f.orch.ApproveJob(ctx, job.ID, "alice", "ok")
	require.NoError(t, err)
	assert.Equal(t, store.StatusAwaitingApproval, job.Status)
	assert.Equal(t, int32(0), f.diag.runs.Load())

	job, err = f.orch.ApproveJob(ctx, job.ID, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, job.Status)
	assert.Equal(t, int32(1), f.diag.runs.Load())

	report, err = f.orch.GetJobReport(job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, report.Status)
	assert.Equal(t, policy.R3, report.Risk)
	require.Len(t, report.Approvals, 2)
	assert.Equal(t, "alice", report.Approvals[0].Approver)

	job, err = f.orch.ApproveJob(ctx, job.ID, "carol", "late")
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, job.Status)
	assert.Len(t, job.Approvals, 3)
	assert.Equal(t, int32(1), f.diag.runs.Load())

	assert.Equal(t, []string{
		store.EventJobCreated,
		store.EventJobApproved,
		store.EventJobApproved,
		store.EventJobStarted,
		store.EventDiagnosticsCompleted,
		store.EventJobDone,
		store.EventJobApproved,
	}, eventTypes(t, f.orch, job.ID))

	require.NoError(t, f.orch.Wait(ctx))
	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	statuses := make([]store.JobStatus, 0, len(f.notifier.jobs))
	for _, notified := range f.notifier.jobs {
		statuses = append(statuses, notified.Status)
	}
	assert.ElementsMatch(t, []store.JobStatus{store.StatusAwaitingApproval, store.StatusDone}, statuses)
}

func TestConcurrentApprovalsRunPipelineOnce(t *testing.T) {
	f := newFixture(t)
	f.diag.delay = 20 * time.Millisecond
	ctx := context.Background()

	job, err := f.orch.CreateJob(ctx, JobRequest{
		Goal:           "production deploy",
		Environment:    policy.Prod,
		RunDiagnostics: true,
	})
	require.NoError(t, err)
	require.Equal(t, 2, job.RequiredApprovals)

	const approvers = 32
	var wg sync.WaitGroup
	wg.Add(approvers)
	for i := 0; i < approvers; i++ {
		go func() {
			defer wg.Done()
			_, err := f.orch.ApproveJob(ctx, job.ID, "approver", "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := f.orch.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, final.Status)
	assert.Len(t, final.Approvals, approvers)
	assert.Equal(t, int32(1), f.diag.runs.Load())
	assert.Equal(t, 1, f.generator.callCount())

	started := 0
	for _, eventType := range eventTypes(t, f.orch, job.ID) {
		if eventType == store.EventJobStarted {
			started++
		}
	}
	assert.Equal(t, 1, started)
}

func TestPipelinePanicFailsJobAndKeepsDiagnostics(t *testing.T) {
	f := newFixture(t)
	f.generator.panic = true

	job, err := f.orch.CreateJob(context.Background(), JobRequest{
		Goal:           "inspect cluster",
		RunDiagnostics: true,
	})
	require.NoError(t, err)

	assert.Equal(t, store.StatusFailed, job.Status)
	require.NotNil(t, job.Report)
	assert.Equal(t, store.StatusFailed, job.Report.Status)
	assert.Equal(t, "Execution failed: panic: generator exploded", job.Report.Summary)
	assert.Len(t, job.Report.Diagnostics, 2)

	events, err := f.orch.GetJobEvents(job.ID)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, store.EventJobFailed, last.Type)
	assert.Equal(t, "panic: generator exploded", last.Details["error"])

	require.NoError(t, f.orch.Wait(context.Background()))
	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	require.Len(t, f.sink.reports, 1)
	assert.Equal(t, store.StatusFailed, f.sink.reports[0].Status)
}

func TestCreateJobExplicitRiskWins(t *testing.T) {
	f := newFixture(t)
	low := policy.R0

	job, err := f.orch.CreateJob(context.Background(), JobRequest{
		Goal:        "wipe the cache",
		Environment: policy.Prod,
		Risk:        &low,
	})
	require.NoError(t, err)
	assert.Equal(t, policy.R0, job.Risk)
	assert.Equal(t, store.StatusDone, job.Status)
}

func TestCreateJobValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.CreateJob(ctx, JobRequest{Goal: "  "})
	assert.ErrorIs(t, err, opsErrors.ErrInvalidInput)

	_, err = f.orch.CreateJob(ctx, JobRequest{Goal: "x", Environment: "qa"})
	assert.ErrorIs(t, err, opsErrors.ErrInvalidInput)

	bad := policy.Risk(9)
	_, err = f.orch.CreateJob(ctx, JobRequest{Goal: "x", Risk: &bad})
	assert.ErrorIs(t, err, opsErrors.ErrInvalidInput)

	assert.Empty(t, f.orch.ListJobs(store.JobFilter{}))
}

func TestNotFoundLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	before := f.orch.Stats()

	_, err := f.orch.HandleMessage(ctx, "missing", MessageRequest{Message: "hi"})
	assert.ErrorIs(t, err, opsErrors.ErrNotFound)

	_, err = f.orch.ApproveJob(ctx, "missing", "alice", "")
	assert.ErrorIs(t, err, opsErrors.ErrNotFound)

	_, err = f.orch.GetJobReport("missing")
	assert.ErrorIs(t, err, opsErrors.ErrNotFound)

	_, err = f.orch.GetJobEvents("missing")
	assert.ErrorIs(t, err, opsErrors.ErrNotFound)

	_, err = f.orch.GetJob("missing")
	assert.ErrorIs(t, err, opsErrors.ErrNotFound)

	assert.Equal(t, before, f.orch.Stats())
	assert.Equal(t, 0, f.generator.callCount())
}

func TestHandleMessageGatedReplySkipsGenerator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.orch.CreateSession("u-1", nil)

	resp, err := f.orch.HandleMessage(ctx, session.ID, MessageRequest{
		Message:     "please drop database users",
		Environment: policy.Prod,
	})
	require.NoError(t, err)

	assert.True(t, resp.RequiresApproval)
	assert.Equal(t, 2, resp.RequiredApprovals)
	assert.Equal(t, policy.R3, resp.Risk)
	assert.Equal(t, "Request classified as R3 in prod. This requires 2 approval(s). Create a job to continue.", resp.Response)
	assert.Equal(t, 0, f.generator.callCount())

	got, err := f.orch.GetSession(session.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, store.RoleUser, got.Messages[0].Role)
	assert.Equal(t, store.RoleAssistant, got.Messages[1].Role)
	assert.Equal(t, resp.Response, got.Messages[1].Content)
}

func TestHandleMessageCallsGenerator(t *testing.T) {
	f := newFixture(t)
	f.generator.reply = "check the logs"
	session := f.orch.CreateSession("", nil)

	resp, err := f.orch.HandleMessage(context.Background(), session.ID, MessageRequest{Message: "why is the pod pending?"})
	require.NoError(t, err)

	assert.False(t, resp.RequiresApproval)
	assert.Equal(t, "check the logs", resp.Response)
	assert.Equal(t, policy.Dev, resp.Environment)
	require.Equal(t, 1, f.generator.callCount())
	assert.Equal(t, "assistant-role\nwhy is the pod pending?", f.generator.calls[0])

	_, err = f.orch.HandleMessage(context.Background(), session.ID, MessageRequest{Message: ""})
	assert.ErrorIs(t, err, opsErrors.ErrInvalidInput)
}

func TestHandleMessageRejectsInvalidRisk(t *testing.T) {
	f := newFixture(t)
	session := f.orch.CreateSession("u-1", nil)
	bogus := policy.Risk(7)

	_, err := f.orch.HandleMessage(context.Background(), session.ID, MessageRequest{
		Message: "restart the api",
		Risk:    &bogus,
	})
	assert.ErrorIs(t, err, opsErrors.ErrInvalidInput)
	assert.Equal(t, 0, f.generator.callCount())

	got, err := f.orch.GetSession(session.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Messages)
}

func TestReportNeverAheadOfJobStatus(t *testing.T) {
	f := newFixture(t)
	f.diag.delay = 30 * time.Millisecond
	ctx := context.Background()

	job, err := f.orch.CreateJob(ctx, JobRequest{
		Goal:           "production deploy of api",
		Environment:    policy.Prod,
		RunDiagnostics: true,
	})
	require.NoError(t, err)
	require.Equal(t, store.StatusAwaitingApproval, job.Status)

	_, err = f.orch.ApproveJob(ctx, job.ID, "alice", "")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.orch.ApproveJob(ctx, job.ID, "bob", "")
	}()

	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		default:
		}
		report, err := f.orch.GetJobReport(job.ID)
		require.NoError(t, err)
		current, err := f.orch.GetJob(job.ID)
		require.NoError(t, err)
		if report.Status.Terminal() {
			assert.Equal(t, report.Status, current.Status)
		}
	}

	report, err := f.orch.GetJobReport(job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, report.Status)
	assert.Len(t, report.Approvals, 2)
}
