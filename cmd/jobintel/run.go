package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one collection run",
	Long:  "Run the pipeline once: collect (or gate through the run policy in live mode), write run_report.json, and publish artifacts if publishing is enabled.",
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("configuration failed", "error", err)
		return err
	}
	logger.Info("config loaded",
		"mode", string(cfg.Mode),
		"staging_dir", cfg.StagingDir,
		"publish", cfg.Publish,
		"dry_run", cfg.DryRun,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, closeRepo, err := buildRunner(ctx, cfg, logger)
	if err != nil {
		logger.Error("pipeline setup failed", "error", err)
		return err
	}
	defer closeRepo()

	summary, err := runner.Run(ctx)
	if err != nil {
		logger.Error("run failed", "error", err, "run_id", summary.Report.RunID)
		return err
	}
	logger.Info("run complete",
		"run_id", summary.Report.RunID,
		"accepted", summary.Report.Accepted,
		"artifacts", len(summary.Report.Artifacts),
	)
	return nil
}
