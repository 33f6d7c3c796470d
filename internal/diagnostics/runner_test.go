package diagnostics

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func mustCheck(t *testing.T, name, command string) Check {
	t.Helper()
	check, err := NewCheck(name, command)
	require.NoError(t, err)
	return check
}

type denyList map[string]bool

func (d denyList) ToolAllowed(name string) bool {
	return !d[name]
}

func TestDefaultBattery(t *testing.T) {
	battery := DefaultBattery()
	names := make([]string, 0, len(battery))
	for _, check := range battery {
		names = append(names, check.Name)
	}

	assert.Equal(t, []string{
		"git_status", "git_branch", "git_last_commit",
		"kubectl_context", "kubectl_pods_all", "helm_list_all",
	}, names)
	assert.Equal(t, []string{"kubectl", "get", "pods", "-A"}, battery[4].Argv)
	assert.Equal(t, "git log -1 --oneline", battery[2].Command)
}

func TestNewCheckRejectsEmptyCommand(t *testing.T) {
	_, err := NewCheck("empty", "   ")
	assert.Error(t, err)
}

func TestPlanHonoursFilter(t *testing.T) {
	plan := Plan(DefaultBattery(), denyList{"helm_list_all": true, "git_branch": true})
	require.Len(t, plan, 4)
	assert.Equal(t, "git_status", plan[0].Name)
	assert.Equal(t, "git_last_commit", plan[1].Name)

	runner := NewRunner(Config{Filter: denyList{"kubectl_pods_all": true}})
	assert.Len(t, runner.Checks(), 5)
}

func TestRunReportsOneResultPerCheckInOrder(t *testing.T) {
	requireShell(t)

	runner := NewRunner(Config{
		Workdir: t.TempDir(),
		Timeout: 5 * time.Second,
		Checks: []Check{
			mustCheck(t, "echo", `sh -c "echo hello; echo oops >&2"`),
			mustCheck(t, "missing", "definitely-not-a-real-binary-xyz --flag"),
			mustCheck(t, "exit_three", `sh -c "exit 3"`),
		},
	})

	results := runner.Run(context.Background())
	require.Len(t, results, 3)

	assert.Equal(t, "echo", results[0].ToolName)
	assert.Equal(t, 0, results[0].ExitCode)
	assert.Equal(t, "hello\n", results[0].Stdout)
	assert.Equal(t, "oops\n", results[0].Stderr)
	assert.False(t, results[0].FinishedAt.Before(results[0].StartedAt))

	assert.Equal(t, "missing", results[1].ToolName)
	assert.Equal(t, ExitCommandNotFound, results[1].ExitCode)
	assert.Empty(t, results[1].Stdout)
	assert.Equal(t, "command not found: definitely-not-a-real-binary-xyz", results[1].Stderr)

	assert.Equal(t, 3, results[2].ExitCode)
}

func TestRunTimesOutAndKillsProcessGroup(t *testing.T) {
	requireShell(t)
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	runner := NewRunner(Config{
		Workdir: t.TempDir(),
		Timeout: 200 * time.Millisecond,
		Checks:  []Check{mustCheck(t, "slow", `sh -c "sleep 30 & sleep 30"`)},
	})

	start := time.Now()
	results := runner.Run(context.Background())
	elapsed := time.Since(start)

	require.Len(t, results, 1)
	assert.Equal(t, ExitTimedOut, results[0].ExitCode)
	assert.Equal(t, "command timed out after 200ms", results[0].Stderr)
	assert.Less(t, elapsed, 5*time.Second)
}

func TestRunDecodesInvalidUTF8(t *testing.T) {
	requireShell(t)
	if _, err := exec.LookPath("printf"); err != nil {
		t.Skip("printf not available")
	}

	runner := NewRunner(Config{
		Workdir: t.TempDir(),
		Timeout: 5 * time.Second,
		Checks:  []Check{mustCheck(t, "bytes", `sh -c 'printf "ok\377"'`)},
	})

	results := runner.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].ExitCode)
	assert.True(t, strings.HasPrefix(results[0].Stdout, "ok"))
	assert.Contains(t, results[0].Stdout, "�")
}

func TestRunMissingWorkdirIsExecutionFailure(t *testing.T) {
	requireShell(t)

	runner := NewRunner(Config{
		Workdir: "/nonexistent/opsgate/workdir",
		Timeout: time.Second,
		Checks:  []Check{mustCheck(t, "echo", "sh -c true")},
	})

	results := runner.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, ExitFailed, results[0].ExitCode)
	assert.True(t, strings.HasPrefix(results[0].Stderr, "execution failed: "))
	assert.Contains(t, results[0].Stderr, "chdir /nonexistent/opsgate/workdir")
	assert.NotContains(t, results[0].Stderr, "command not found")
}

func TestRunWorkdirIsFile(t *testing.T) {
	requireShell(t)

	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	runner := NewRunner(Config{
		Workdir: file,
		Timeout: time.Second,
		Checks:  []Check{mustCheck(t, "echo", "sh -c true"), mustCheck(t, "missing", "opsgate-no-such-binary")},
	})

	results := runner.Run(context.Background())
	require.Len(t, results, 2)
	for _, result := range results {
		assert.Equal(t, ExitFailed, result.ExitCode)
		assert.Contains(t, result.Stderr, "not a directory")
	}
}
