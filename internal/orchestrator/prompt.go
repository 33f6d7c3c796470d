package orchestrator

import (
	"fmt"
	"strings"

	"github.com/harunnryd/opsgate/internal/store"
)

const excerptLines = 6

// buildSummaryPrompt embeds the goal and the first lines of every
// diagnostic's output.
func buildSummaryPrompt(goal string, diagnostics []store.ToolResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\nDiagnostics:\n", goal)

	for _, item := range diagnostics {
		fmt.Fprintf(&b, "- %s | exit=%d\n", item.ToolName, item.ExitCode)
		writeExcerpt(&b, "stdout", item.Stdout)
		writeExcerpt(&b, "stderr", item.Stderr)
	}

	b.WriteString("\nProvide: likely root cause, safe next actions, and rollback notes.")
	return b.String()
}

func writeExcerpt(b *strings.Builder, label, output string) {
	lines := excerpt(output, excerptLines)
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "  %s:\n", label)
	for _, line := range lines {
		fmt.Fprintf(b, "    %s\n", line)
	}
}

func excerpt(output string, limit int) []string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(trimmed, "\r\n", "\n"), "\n")
	if len(lines) > limit {
		lines = lines[:limit]
	}
	return lines
}
