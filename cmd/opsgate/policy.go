package main

import (
	"fmt"

	"github.com/harunnryd/opsgate/internal/policy"

	"github.com/spf13/cobra"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect the approval policy",
}

var policyCheckCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Validate a policy document",
	Long:  `Parses the policy document strictly. Defaults to the configured policy.path.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := policyPathFromArgs(args)
		if err != nil {
			return err
		}
		engine, err := policy.Load(path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Policy OK: %s\n", path)
		fmt.Fprintf(out, "Approval rules: %d\n", len(engine.Rules()))
		for _, env := range policy.Environments {
			fmt.Fprintf(out, "  %s: auto-run up to %s\n", env, engine.MaxAutoRisk(env))
		}
		return nil
	},
}

var policyMatrixCmd = &cobra.Command{
	Use:   "matrix [path]",
	Short: "Print required approvals for every environment and risk level",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := policyPathFromArgs(args)
		if err != nil {
			return err
		}
		formatter, err := formatterFromFlags(cmd)
		if err != nil {
			return err
		}
		engine, err := policy.Load(path)
		if err != nil {
			return err
		}

		rendered, err := formatter.FormatMatrix(engine.Matrix())
		if err != nil {
			return fmt.Errorf("failed to format matrix: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func policyPathFromArgs(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if cfg == nil {
		return "", fmt.Errorf("config not loaded")
	}
	return cfg.Policy.Path, nil
}

func init() {
	policyMatrixCmd.Flags().StringP("output", "o", "table", "output format (table, json, yaml)")
	policyCmd.AddCommand(policyCheckCmd)
	policyCmd.AddCommand(policyMatrixCmd)
	rootCmd.AddCommand(policyCmd)
}
