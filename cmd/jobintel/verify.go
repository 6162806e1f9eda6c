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
	verifyReportPath string
	verifyResultPath string
	verifyLatestOnly bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a published run against the object store",
	Long:  "Rebuild the publication plan from run_report.json and check every planned object, or audit a recorded publish result with --result. --latest restricts the check to the latest pointers.",
	RunE:  runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyReportPath, "report", "", "path to run_report.json (default: configured report path)")
	verifyCmd.Flags().StringVar(&verifyResultPath, "result", "", "verify offline against this publish result JSON instead of the store")
	verifyCmd.Flags().BoolVar(&verifyLatestOnly, "latest", false, "check only the latest pointers")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("configuration failed", "error", err)
		return err
	}
	reportPath := cfg.ReportPath
	if verifyReportPath != "" {
		reportPath = verifyReportPath
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

	var vr verify.Report
	if verifyResultPath != "" {
		raw, err := os.ReadFile(verifyResultPath)
		if err != nil {
			logger.Error("result load failed", "error", err, "path", verifyResultPath)
			return err
		}
		result, err := publish.UnmarshalResult(raw)
		if err != nil {
			logger.Error("result parse failed", "error", err, "path", verifyResultPath)
			return err
		}
		vr, err = verify.Offline(plan, result)
		if err != nil {
			logger.Error("offline verification failed", "error", err)
			return err
		}
	} else {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg.Publish = true
		cfg.DryRun = false
		store, err := openStore(ctx, cfg)
		if err != nil {
			logger.Error("object store setup failed", "error", err)
			return err
		}
		if verifyLatestOnly {
			vr, err = verify.Latest(ctx, rpt, cfg.Destination, store)
		} else {
			vr, err = verify.Online(ctx, plan, store)
		}
		if err != nil {
			logger.Error("verification failed", "error", err)
			return err
		}
	}

	for _, key := range vr.Missing {
		logger.Error("object missing", "key", key)
	}
	for _, m := range vr.Mismatched {
		logger.Error("object mismatched", "key", m.ObjectKey, "expected", m.Expected, "actual", m.Actual)
	}
	if !vr.OK() {
		return fmt.Errorf("verification failed: %d missing, %d mismatched", len(vr.Missing), len(vr.Mismatched))
	}

	logger.Info("verification passed", "run_id", rpt.RunID, "matched", len(vr.Matched), "latest_only", verifyLatestOnly)
	return nil
}
