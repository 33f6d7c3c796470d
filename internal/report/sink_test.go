package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harunnryd/opsgate/internal/errors"
	"github.com/harunnryd/opsgate/internal/policy"
	"github.com/harunnryd/opsgate/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(id string) store.Report {
	return store.Report{
		JobID:   id,
		Status:  store.StatusDone,
		Risk:    policy.R2,
		Summary: "Rolled back cleanly.",
		Diagnostics: []store.ToolResult{
			{ToolName: "git_status", Command: "git status --short", ExitCode: 0, Stdout: "M a.go\n"},
		},
		Approvals: []store.Approval{{Approver: "alice", Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}},
		UpdatedAt: time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC),
	}
}

func readReport(t *testing.T, sink *FileSink, jobID string) store.Report {
	t.Helper()
	raw, err := os.ReadFile(sink.Path(jobID))
	require.NoError(t, err)
	var r store.Report
	require.NoError(t, json.Unmarshal(raw, &r))
	return r
}

func TestFileSinkExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	want := sampleReport("01HZXJOB")
	require.NoError(t, sink.Export(context.Background(), want))

	raw, err := os.ReadFile(filepath.Join(dir, "01HZXJOB.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"risk_level": "R2"`)
	assert.Contains(t, string(raw), `"status": "done"`)

	got := readReport(t, sink, "01HZXJOB")
	assert.Equal(t, want.Summary, got.Summary)
	assert.Equal(t, want.Risk, got.Risk)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, "git_status", got.Diagnostics[0].ToolName)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))
}

func TestFileSinkOverwrites(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	first := sampleReport("JOB")
	require.NoError(t, sink.Export(context.Background(), first))
	second := first
	second.Status = store.StatusFailed
	second.Summary = "Execution failed: boom"
	require.NoError(t, sink.Export(context.Background(), second))

	got := readReport(t, sink, "JOB")
	assert.Equal(t, store.StatusFailed, got.Status)
	assert.Equal(t, "Execution failed: boom", got.Summary)
}

func TestFileSinkRejectsUnsafeIDs(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	err = sink.Export(context.Background(), sampleReport("../escape"))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	err = sink.Export(context.Background(), sampleReport("a/b"))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestNewFileSinkRequiresDir(t *testing.T) {
	_, err := NewFileSink("")
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestFileSinkHonorsCancelledContext(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sink.Export(ctx, sampleReport("JOB")), context.Canceled)
}
