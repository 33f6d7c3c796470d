package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harunnryd/opsgate/internal/config"
	"github.com/harunnryd/opsgate/internal/daemon"
	"github.com/harunnryd/opsgate/internal/daemon/components"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, scheduler and notifiers as a long-lived service",
	RunE: func(cmd *cobra.Command, args []string) error {
		forceClean, _ := cmd.Flags().GetBool("force-clean-locks")

		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		daemonMgr, err := daemon.NewDaemon(cfg)
		if err != nil {
			return fmt.Errorf("failed to create daemon manager: %w", err)
		}
		daemonMgr.SetForceCleanup(forceClean)

		policyComp := components.NewPolicyComponent(&cfg.Policy)
		storeComp := components.NewStoreComponent(daemonMgr.StateDir(), &cfg.Daemon)
		modelComp := components.NewModelComponent(&cfg.Models)
		diagComp := components.NewDiagnosticsComponent(&cfg.Diagnostics, policyComp)
		notifierComp := components.NewNotifierComponent(&cfg.Notify, &cfg.Reports)
		orchComp := components.NewOrchestratorComponent(cfg, policyComp, storeComp, modelComp, diagComp, notifierComp)
		schedulerComp := components.NewSchedulerComponent(cfg, daemonMgr.StateDir(), orchComp)
		httpComp := components.NewHTTPServerComponent(&cfg.Server, orchComp, daemonMgr.HealthErrors)

		daemonMgr.AddComponent(policyComp)
		daemonMgr.AddComponent(storeComp)
		daemonMgr.AddComponent(modelComp)
		daemonMgr.AddComponent(diagComp)
		daemonMgr.AddComponent(notifierComp)
		daemonMgr.AddComponent(orchComp)
		daemonMgr.AddComponent(schedulerComp)
		daemonMgr.AddComponent(httpComp)

		slog.Info("opsgate starting up...", "port", cfg.Server.Port, "state_dir", daemonMgr.StateDir())
		err = daemonMgr.Start(context.Background())
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("opsgate stopped gracefully")
				return nil
			}
			return fmt.Errorf("daemon failed: %w", err)
		}

		slog.Info("opsgate stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("server.port", config.DefaultServerPort, "HTTP listen port")
	serveCmd.Flags().Bool("force-clean-locks", false, "Force cleanup of stale lock files (default: warn-only)")
}
