package main

import (
	"fmt"
	"strings"

	"github.com/harunnryd/opsgate/internal/policy"
	"github.com/harunnryd/opsgate/internal/risk"

	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [text]",
	Short: "Show the risk level of a goal and the approvals it needs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}
		envFlag, _ := cmd.Flags().GetString("env")
		env, err := policy.ParseEnvironment(envFlag)
		if err != nil {
			return err
		}

		engine, err := policy.Load(cfg.Policy.Path)
		if err != nil {
			return err
		}

		text := strings.Join(args, " ")
		level, keyword := risk.Explain(text)
		required := engine.RequiredApprovals(level, env)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Risk: %s\n", level)
		if keyword != "" {
			fmt.Fprintf(out, "Matched: %q\n", keyword)
		} else {
			fmt.Fprintln(out, "Matched: (no keyword, default)")
		}
		fmt.Fprintf(out, "Environment: %s (auto-run up to %s)\n", env, engine.MaxAutoRisk(env))
		fmt.Fprintf(out, "Required approvals: %d\n", required)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringP("env", "e", string(policy.Dev), "target environment (dev, stage, prod)")
}
