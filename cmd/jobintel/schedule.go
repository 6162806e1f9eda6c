package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jobintel-labs/jobintel-go/internal/config"
	"github.com/jobintel-labs/jobintel-go/internal/pipeline"
	"github.com/jobintel-labs/jobintel-go/internal/scheduler"
)

var scheduleExpr string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline on a cron schedule",
	Long:  "Block and fire a collection run at each cron tick until SIGINT/SIGTERM. Rejected runs are logged and the schedule keeps going.",
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleExpr, "cron", "", "cron expression (default: configured schedule)")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("configuration failed", "error", err)
		return err
	}
	expr := cfg.Schedule
	if scheduleExpr != "" {
		expr = scheduleExpr
	}
	if expr == "" {
		err := fmt.Errorf("%w: a schedule is required (--cron or JOBINTEL_SCHEDULE)", config.ErrConfiguration)
		logger.Error("configuration failed", "error", err)
		return err
	}
	schedule, err := scheduler.ParseSchedule(expr)
	if err != nil {
		err = fmt.Errorf("%w: %v", config.ErrConfiguration, err)
		logger.Error("configuration failed", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, closeRepo, err := buildRunner(ctx, cfg, logger)
	if err != nil {
		logger.Error("pipeline setup failed", "error", err)
		return err
	}
	defer closeRepo()

	logger.Info("scheduler started", "schedule", expr, "mode", string(cfg.Mode))
	sched := scheduler.New(schedule, func(ctx context.Context) error {
		summary, err := runner.Run(ctx)
		if errors.Is(err, pipeline.ErrRunRejected) {
			logger.Warn("run rejected", "run_id", summary.Report.RunID, "attempts", len(summary.Report.DecisionTrace))
			return nil
		}
		return err
	}, logger)

	if err := sched.Loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("scheduler stopped")
	return nil
}
