package format

import (
	"fmt"
	"strings"

	"github.com/harunnryd/opsgate/internal/policy"
	"github.com/harunnryd/opsgate/internal/store"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

const summaryWidth = 72

type TableFormatter struct {
	headerStyle  lipgloss.Style
	cellStyle    lipgloss.Style
	oddRowStyle  lipgloss.Style
	evenRowStyle lipgloss.Style
	gatedStyle   lipgloss.Style
	borderStyle  lipgloss.Style
}

func NewTableFormatter() *TableFormatter {
	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")
	lightGray := lipgloss.Color("241")
	amber := lipgloss.Color("214")

	return &TableFormatter{
		headerStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1),
		cellStyle: lipgloss.NewStyle().
			Padding(0, 1),
		oddRowStyle: lipgloss.NewStyle().
			Foreground(gray).
			Padding(0, 1),
		evenRowStyle: lipgloss.NewStyle().
			Foreground(lightGray).
			Padding(0, 1),
		gatedStyle: lipgloss.NewStyle().
			Foreground(amber).
			Bold(true).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Foreground(purple),
	}
}

// FormatMatrix highlights the rows that need at least one approval.
func (f *TableFormatter) FormatMatrix(rows []policy.MatrixRow) (string, error) {
	if len(rows) == 0 {
		return "No policy rows", nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return f.headerStyle
			case row >= 0 && row < len(rows) && rows[row].RequiredApprovals > 0:
				return f.gatedStyle
			case row%2 == 0:
				return f.evenRowStyle
			default:
				return f.oddRowStyle
			}
		}).
		Headers("Environment", "Risk", "Max Auto", "Approvals")

	for _, row := range rows {
		t.Row(
			row.Environment.String(),
			row.Risk.String(),
			row.MaxAutoRisk.String(),
			fmt.Sprintf("%d", row.RequiredApprovals),
		)
	}

	return t.String(), nil
}

func (f *TableFormatter) FormatReport(report store.Report) (string, error) {
	summary := lipgloss.NewStyle().Width(summaryWidth).Render(report.Summary)

	overview := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return f.headerStyle
			}
			return f.cellStyle
		})

	overview.Row("Job", report.JobID)
	overview.Row("Status", string(report.Status))
	overview.Row("Risk", report.Risk.String())
	overview.Row("Approvals", approverList(report.Approvals))
	overview.Row("Summary", summary)

	if len(report.Diagnostics) == 0 {
		return overview.String(), nil
	}

	checks := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return f.headerStyle
			}
			return f.cellStyle
		}).
		Headers("Check", "Command", "Exit")

	for _, result := range report.Diagnostics {
		checks.Row(result.ToolName, truncateString(result.Command, 40), fmt.Sprintf("%d", result.ExitCode))
	}

	return overview.String() + "\n" + checks.String(), nil
}

func approverList(approvals []store.Approval) string {
	if len(approvals) == 0 {
		return "-"
	}
	names := make([]string, len(approvals))
	for i, approval := range approvals {
		names[i] = approval.Approver
	}
	return strings.Join(names, ", ")
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
