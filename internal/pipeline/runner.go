// Package pipeline orchestrates one collection run end to end: mode
// dispatch, the policy gate, artifact collection, report persistence and
// the optional publish/verify step.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobintel-labs/jobintel-go/internal/config"
	"github.com/jobintel-labs/jobintel-go/internal/domain"
	"github.com/jobintel-labs/jobintel-go/internal/platform/objectstore"
	"github.com/jobintel-labs/jobintel-go/internal/platform/runid"
	"github.com/jobintel-labs/jobintel-go/internal/policy"
	"github.com/jobintel-labs/jobintel-go/internal/publish"
	"github.com/jobintel-labs/jobintel-go/internal/repo"
	"github.com/jobintel-labs/jobintel-go/internal/report"
	"github.com/jobintel-labs/jobintel-go/internal/verify"
)

// ErrRunRejected reports that the policy gate rejected the run after all
// attempts. The rejected report is still produced and persisted.
var ErrRunRejected = errors.New("run rejected by policy")

// Summary is the result of one Runner.Run invocation.
type Summary struct {
	Report        domain.RunReport
	PublishResult *publish.Result
	VerifyReport  *verify.Report
}

type Runner struct {
	cfg      config.Config
	provider Provider
	store    objectstore.Store
	reports  repo.RunReportRepository
	logger   *slog.Logger
	now      func() time.Time
	newRunID func(time.Time) string
}

type Option func(*Runner)

// WithStore supplies the object store used when publishing is enabled.
func WithStore(store objectstore.Store) Option {
	return func(r *Runner) { r.store = store }
}

// WithReportRepository enables durable run-history persistence.
func WithReportRepository(reports repo.RunReportRepository) Option {
	return func(r *Runner) { r.reports = reports }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

func NewRunner(cfg config.Config, provider Provider, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Mode == domain.ModeLive && provider == nil {
		return nil, fmt.Errorf("%w: live mode requires a provider", config.ErrConfiguration)
	}
	r := &Runner{
		cfg:      cfg,
		provider: provider,
		logger:   slog.Default(),
		now:      time.Now,
		newRunID: runid.New,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes one pipeline run. SNAPSHOT runs bypass the policy gate by
// construction; LIVE runs pass through the retry loop. Rejected and
// cancelled runs still produce a durable rejected report.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	startedAt := r.now().UTC()
	rpt := domain.RunReport{
		RunID:     r.newRunID(startedAt),
		Mode:      r.cfg.Mode,
		StartedAt: startedAt,
	}
	logger := r.logger.With("run_id", rpt.RunID, "mode", string(rpt.Mode))

	var runErr error
	switch r.cfg.Mode {
	case domain.ModeSnapshot:
		rpt.Accepted = true
	case domain.ModeLive:
		engine, err := policy.NewEngine(*r.cfg.Policy)
		if err != nil {
			return Summary{}, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
		}
		outcome, err := engine.EvaluateAndRetry(ctx, func(ctx context.Context, attempt int) (domain.ProviderMetrics, error) {
			logger.Info("provider attempt", "attempt", attempt, "provider", r.provider.Name())
			return r.provider.Collect(ctx, attempt)
		})
		rpt.Accepted = outcome.Accepted
		rpt.DecisionTrace = outcome.Trace
		rpt.ProviderMetrics = outcome.Metrics
		runErr = err
	}

	if rpt.Accepted {
		artifacts, err := CollectArtifacts(r.cfg.StagingDir)
		if err != nil {
			return Summary{}, err
		}
		if len(artifacts) == 0 {
			return Summary{}, fmt.Errorf("%w: accepted run produced no artifacts in %s", publish.ErrInvalidInput, r.cfg.StagingDir)
		}
		rpt.Artifacts = artifacts
	}
	rpt.FinishedAt = r.now().UTC()

	sealed, err := report.Finalize(rpt)
	if err != nil {
		return Summary{}, err
	}
	if err := report.Write(r.cfg.ReportPath, sealed); err != nil {
		return Summary{}, err
	}
	logger.Info("run report persisted", "path", r.cfg.ReportPath, "accepted", sealed.Accepted, "attempts", len(sealed.DecisionTrace))

	if r.reports != nil {
		if err := r.reports.Insert(ctx, sealed); err != nil {
			// The local run_report.json remains the durable record.
			logger.Error("run history insert failed", "error", err)
		}
	}

	summary := Summary{Report: sealed}
	if runErr != nil {
		return summary, runErr
	}
	if !sealed.Accepted {
		return summary, ErrRunRejected
	}

	if r.cfg.Publish {
		publishResult, verifyReport, err := r.publishAndVerify(ctx, sealed, logger)
		summary.PublishResult = publishResult
		summary.VerifyReport = verifyReport
		if err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (r *Runner) publishAndVerify(ctx context.Context, rpt domain.RunReport, logger *slog.Logger) (*publish.Result, *verify.Report, error) {
	plan, err := publish.BuildPlan(rpt, r.cfg.Destination)
	if err != nil {
		return nil, nil, err
	}

	publisher := publish.NewPublisher(r.store, publish.DirSource{Root: r.cfg.StagingDir})
	result, err := publisher.Publish(ctx, plan, r.cfg.DryRun)
	if err != nil {
		return &result, nil, err
	}

	var vr verify.Report
	if result.DryRun {
		vr, err = verify.Offline(plan, result)
	} else {
		vr, err = verify.Online(ctx, plan, r.store)
	}
	if err != nil {
		return &result, nil, err
	}
	if !vr.OK() {
		logger.Error("verification failed", "missing", len(vr.Missing), "mismatched", len(vr.Mismatched))
		return &result, &vr, fmt.Errorf("verification failed: %d missing, %d mismatched", len(vr.Missing), len(vr.Mismatched))
	}
	logger.Info("publish verified", "entries", len(result.Entries), "dry_run", result.DryRun)
	return &result, &vr, nil
}
