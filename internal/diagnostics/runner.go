// Package diagnostics runs a bounded battery of read-only commands.
package diagnostics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/harunnryd/opsgate/internal/store"
)

const (
	ExitCommandNotFound = 127
	ExitTimedOut        = 124
	ExitFailed          = 1

	// waitDelay bounds how long Wait blocks on output pipes after the process group is killed.
	waitDelay = 2 * time.Second
)

// ToolFilter decides whether a named check may run.
type ToolFilter interface {
	ToolAllowed(name string) bool
}

type Config struct {
	Workdir string
	Timeout time.Duration
	// Checks defaults to DefaultBattery.
	Checks []Check
	Filter ToolFilter
}

type Runner struct {
	workdir string
	timeout time.Duration
	plan    []Check
}

func NewRunner(cfg Config) *Runner {
	checks := cfg.Checks
	if checks == nil {
		checks = DefaultBattery()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Runner{
		workdir: cfg.Workdir,
		timeout: cfg.Timeout,
		plan:    Plan(checks, cfg.Filter),
	}
}

// Plan drops checks the filter forbids, keeping order.
func Plan(checks []Check, filter ToolFilter) []Check {
	planned := make([]Check, 0, len(checks))
	for _, check := range checks {
		if filter != nil && !filter.ToolAllowed(check.Name) {
			slog.Debug("Diagnostic check disabled by policy", "check", check.Name)
			continue
		}
		planned = append(planned, check)
	}
	return planned
}

// Checks returns the planned checks.
func (r *Runner) Checks() []Check {
	return append([]Check(nil), r.plan...)
}

// Run executes every planned check in order and returns exactly one result
// per check. Failures are reported through exit codes, never as errors.
func (r *Runner) Run(ctx context.Context) []store.ToolResult {
	results := make([]store.ToolResult, 0, len(r.plan))
	for _, check := range r.plan {
		results = append(results, r.runCheck(ctx, check))
	}
	return results
}

func (r *Runner) runCheck(ctx context.Context, check Check) store.ToolResult {
	result := store.ToolResult{
		ToolName:  check.Name,
		Command:   check.Command,
		StartedAt: time.Now().UTC(),
	}

	// A process group start skips the chdir pre-check, so a missing workdir
	// would otherwise surface as a missing executable.
	if err := r.checkWorkdir(); err != nil {
		result.FinishedAt = time.Now().UTC()
		result.ExitCode = ExitFailed
		result.Stderr = fmt.Sprintf("execution failed: %v", err)
		return result
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, check.Argv[0], check.Argv[1:]...)
	cmd.Dir = r.workdir
	configureProcessGroup(cmd)
	cmd.Cancel = func() error {
		killProcessGroup(cmd)
		return nil
	}
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result.FinishedAt = time.Now().UTC()

	switch {
	case err == nil:
		result.ExitCode = 0
		result.Stdout = decode(stdout.Bytes())
		result.Stderr = decode(stderr.Bytes())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result.ExitCode = ExitTimedOut
		result.Stderr = fmt.Sprintf("command timed out after %s", r.timeout)
	case isNotFound(err):
		result.ExitCode = ExitCommandNotFound
		result.Stderr = fmt.Sprintf("command not found: %s", check.Argv[0])
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			result.ExitCode = exitErr.ExitCode()
			result.Stdout = decode(stdout.Bytes())
			result.Stderr = decode(stderr.Bytes())
			break
		}
		result.ExitCode = ExitFailed
		result.Stderr = fmt.Sprintf("execution failed: %v", err)
	}

	slog.Debug("Diagnostic check finished",
		"check", check.Name,
		"exit_code", result.ExitCode,
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	)
	return result
}

func (r *Runner) checkWorkdir() error {
	if r.workdir == "" {
		return nil
	}
	info, err := os.Stat(r.workdir)
	if err != nil {
		return fmt.Errorf("chdir %s: %w", r.workdir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("chdir %s: not a directory", r.workdir)
	}
	return nil
}

func isNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var pathErr *fs.PathError
	return errors.As(err, &pathErr) && pathErr.Op != "chdir" && errors.Is(pathErr.Err, fs.ErrNotExist)
}

// decode replaces invalid UTF-8 sequences instead of failing.
func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
