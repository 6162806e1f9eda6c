package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jobintel-labs/jobintel-go/internal/publish"
	"github.com/jobintel-labs/jobintel-go/internal/report"
	"github.com/jobintel-labs/jobintel-go/internal/verify"
)

var (
	publishReportPath string
	publishDryRun     bool
	publishResultPath string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a finished run's artifacts",
	Long:  "Read an existing run_report.json, build the publication plan, write run-scoped objects and latest pointers to the object store, then verify.",
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishReportPath, "report", "", "path to run_report.json (default: configured report path)")
	publishCmd.Flags().BoolVar(&publishDryRun, "dry-run", false, "plan and report outcomes without writing to the store")
	publishCmd.Flags().StringVar(&publishResultPath, "result", "", "write the publish result JSON to this path")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("configuration failed", "error", err)
		return err
	}
	cfg.Publish = true
	if publishDryRun {
		cfg.DryRun = true
	}
	reportPath := cfg.ReportPath
	if publishReportPath != "" {
		reportPath = publishReportPath
	}

	rpt, err := report.Read(reportPath)
	if err != nil {
		logger.Error("report load failed", "error", err, "path", reportPath)
		return err
	}
	plan, err := publish.BuildPlan(rpt, cfg.Destination)
	if err != nil {
		logger.Error("plan build failed", "error", err, "run_id", rpt.RunID)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("object store setup failed", "error", err)
		return err
	}

	publisher := publish.NewPublisher(store, publish.DirSource{Root: cfg.StagingDir})
	result, err := publisher.Publish(ctx, plan, cfg.DryRun)
	if publishResultPath != "" {
		if raw, marshalErr := publish.MarshalResult(result); marshalErr == nil {
			if writeErr := os.WriteFile(publishResultPath, raw, 0o600); writeErr != nil {
				logger.Error("result write failed", "error", writeErr, "path", publishResultPath)
			}
		}
	}
	if err != nil {
		logger.Error("publish failed", "error", err, "run_id", plan.RunID)
		return err
	}

	var vr verify.Report
	if result.DryRun {
		vr, err = verify.Offline(plan, result)
	} else {
		vr, err = verify.Online(ctx, plan, store)
	}
	if err != nil {
		logger.Error("verification failed", "error", err)
		return err
	}
	if !vr.OK() {
		logger.Error("verification found gaps", "missing", len(vr.Missing), "mismatched", len(vr.Mismatched))
		return fmt.Errorf("verification failed: %d missing, %d mismatched", len(vr.Missing), len(vr.Mismatched))
	}

	logger.Info("publish complete",
		"run_id", plan.RunID,
		"entries", len(result.Entries),
		"dry_run", result.DryRun,
	)
	return nil
}
