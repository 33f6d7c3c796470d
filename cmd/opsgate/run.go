package main

import (
	"fmt"
	"strings"

	"github.com/harunnryd/opsgate/internal/format"
	"github.com/harunnryd/opsgate/internal/orchestrator"
	"github.com/harunnryd/opsgate/internal/policy"
	"github.com/harunnryd/opsgate/internal/store"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Submit one job in-process and print its report",
	Long: `Submits a goal as a job against an in-process engine. Approvals given with
--approve are recorded in order, so a gated job can run to completion in one call.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := jobRequestFromFlags(cmd, strings.Join(args, " "))
		if err != nil {
			return err
		}
		approvers, _ := cmd.Flags().GetStringSlice("approve")
		formatter, err := formatterFromFlags(cmd)
		if err != nil {
			return err
		}

		return withEngine(cmd.Context(), cfg, func(orch *orchestrator.Orchestrator) error {
			job, err := orch.CreateJob(cmd.Context(), req)
			if err != nil {
				return err
			}
			for _, approver := range approvers {
				if job.Status != store.StatusAwaitingApproval {
					break
				}
				if job, err = orch.ApproveJob(cmd.Context(), job.ID, approver, "approved from CLI"); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if job.Status == store.StatusAwaitingApproval {
				fmt.Fprintf(out, "Job %s needs %d approval(s) for %s in %s; got %d.\n",
					job.ID, job.RequiredApprovals, job.Risk, job.Environment, len(job.Approvals))
				return nil
			}

			report, err := orch.GetJobReport(job.ID)
			if err != nil {
				return err
			}
			rendered, err := formatter.FormatReport(report)
			if err != nil {
				return fmt.Errorf("failed to format report: %w", err)
			}
			fmt.Fprintln(out, rendered)
			return nil
		})
	},
}

func jobRequestFromFlags(cmd *cobra.Command, goal string) (orchestrator.JobRequest, error) {
	envFlag, _ := cmd.Flags().GetString("env")
	riskFlag, _ := cmd.Flags().GetString("risk")
	skipDiagnostics, _ := cmd.Flags().GetBool("skip-diagnostics")

	env, err := policy.ParseEnvironment(envFlag)
	if err != nil {
		return orchestrator.JobRequest{}, err
	}

	req := orchestrator.JobRequest{
		Goal:           goal,
		Environment:    env,
		RunDiagnostics: !skipDiagnostics,
	}
	if strings.TrimSpace(riskFlag) != "" {
		level, err := policy.ParseRisk(riskFlag)
		if err != nil {
			return orchestrator.JobRequest{}, err
		}
		req.Risk = &level
	}
	return req, nil
}

func formatterFromFlags(cmd *cobra.Command) (format.Formatter, error) {
	output, _ := cmd.Flags().GetString("output")
	parsed, err := format.ParseOutputFormat(output)
	if err != nil {
		return nil, err
	}
	return format.New(parsed)
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("env", "e", string(policy.Dev), "target environment (dev, stage, prod)")
	runCmd.Flags().String("risk", "", "explicit risk level (R0-R3), overrides classification")
	runCmd.Flags().Bool("skip-diagnostics", false, "do not run the diagnostics battery")
	runCmd.Flags().StringSlice("approve", nil, "approver names to record, in order")
	runCmd.Flags().StringP("output", "o", string(format.OutputFormatTable), "output format (table, json, yaml)")
}
