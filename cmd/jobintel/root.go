package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jobintel-labs/jobintel-go/internal/config"
	"github.com/jobintel-labs/jobintel-go/internal/domain"
	"github.com/jobintel-labs/jobintel-go/internal/pipeline"
	"github.com/jobintel-labs/jobintel-go/internal/platform/env"
	"github.com/jobintel-labs/jobintel-go/internal/platform/objectstore"
	"github.com/jobintel-labs/jobintel-go/internal/platform/postgres"
	"github.com/jobintel-labs/jobintel-go/internal/repo"
	repopg "github.com/jobintel-labs/jobintel-go/internal/repo/postgres"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:           "jobintel",
	Short:         "Scheduled job-posting collection pipeline",
	Long:          "jobintel runs the collection pipeline: policy-gated LIVE runs, snapshot runs, and crash-safe publication of run artifacts to the object store.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to a YAML config file (default: JOBINTEL_* environment)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// loadConfig prefers an explicit config file and falls back to the
// environment.
func loadConfig() (config.Config, error) {
	if cfgPath != "" {
		return config.Load(cfgPath)
	}
	return config.FromEnv()
}

// openStore connects to the object store and makes sure the destination
// bucket exists. Dry-run invocations never touch the store.
func openStore(ctx context.Context, cfg config.Config) (objectstore.Store, error) {
	if !cfg.Publish || cfg.DryRun {
		return nil, nil
	}
	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	storeCfg.Bucket = cfg.Destination.Bucket
	client, err := objectstore.NewMinIOClient(storeCfg)
	if err != nil {
		return nil, err
	}
	if err := objectstore.EnsureBucket(ctx, client, storeCfg); err != nil {
		return nil, err
	}
	return objectstore.NewMinioStoreWithClient(client)
}

// openReportRepo wires the optional run-history repository. Absent
// database configuration means the local run_report.json is the only
// record, which is a supported deployment.
func openReportRepo(ctx context.Context, logger *slog.Logger) (repo.RunReportRepository, func(), error) {
	if env.String("JOBINTEL_DATABASE_URL", "") == "" {
		return nil, func() {}, nil
	}
	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		return nil, nil, err
	}
	if _, err := db.ExecContext(ctx, repopg.Schema); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("apply run history schema: %w", err)
	}
	logger.Info("run history enabled", "max_open_conns", dbCfg.MaxOpenConns)
	return repopg.NewRunReportStore(db), func() { _ = db.Close() }, nil
}

// collectorFromEnv builds the external collector boundary for LIVE mode.
func collectorFromEnv(cfg config.Config) (pipeline.Provider, error) {
	command := strings.Fields(env.String("JOBINTEL_COLLECTOR_CMD", ""))
	if len(command) == 0 {
		return nil, fmt.Errorf("%w: live mode requires JOBINTEL_COLLECTOR_CMD", config.ErrConfiguration)
	}
	return pipeline.CommandProvider{
		ProviderName: cfg.Destination.Provider,
		Command:      command,
		Dir:          cfg.StagingDir,
		MetricsPath:  env.String("JOBINTEL_COLLECTOR_METRICS", "collector_metrics.json"),
	}, nil
}

func buildRunner(ctx context.Context, cfg config.Config, logger *slog.Logger) (*pipeline.Runner, func(), error) {
	var provider pipeline.Provider
	if cfg.Mode == domain.ModeLive {
		p, err := collectorFromEnv(cfg)
		if err != nil {
			return nil, nil, err
		}
		provider = p
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	reports, closeRepo, err := openReportRepo(ctx, logger)
	if err != nil {
		return nil, nil, err
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if store != nil {
		opts = append(opts, pipeline.WithStore(store))
	}
	if reports != nil {
		opts = append(opts, pipeline.WithReportRepository(reports))
	}

	runner, err := pipeline.NewRunner(cfg, provider, opts...)
	if err != nil {
		closeRepo()
		return nil, nil, err
	}
	return runner, closeRepo, nil
}
