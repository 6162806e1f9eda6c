package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jobintel-labs/jobintel-go/internal/config"
	"github.com/jobintel-labs/jobintel-go/internal/domain"
	"github.com/jobintel-labs/jobintel-go/internal/platform/objectstore"
	"github.com/jobintel-labs/jobintel-go/internal/policy"
	"github.com/jobintel-labs/jobintel-go/internal/publish"
	"github.com/jobintel-labs/jobintel-go/internal/report"
)

type fakeProvider struct {
	metrics []domain.ProviderMetrics
	calls   int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Collect(ctx context.Context, attempt int) (domain.ProviderMetrics, error) {
	p.calls++
	return p.metrics[attempt-1], nil
}

func stageFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return dir
}

func snapshotConfig(t *testing.T, staging string) config.Config {
	t.Helper()
	return config.Config{
		Mode:       domain.ModeSnapshot,
		StagingDir: staging,
		ReportPath: filepath.Join(t.TempDir(), report.FileName),
		Publish:    true,
		DryRun:     true,
		Destination: publish.Destination{
			Bucket:   "jobintel",
			Prefix:   "jobintel",
			Provider: "boardfeed",
			Profile:  "default",
		},
	}
}

func livePolicy() *policy.Config {
	return &policy.Config{
		ErrorRateMax:     0.1,
		MinJobs:          50,
		MinSnapshotRatio: 0.2,
		MaxAttempts:      2,
		BackoffBase:      time.Millisecond,
		BackoffMax:       2 * time.Millisecond,
	}
}

func TestRunSnapshotDryRun(t *testing.T) {
	staging := stageFiles(t, map[string]string{
		"jobs.jsonl":           "jobs",
		"summary.json":         "summary",
		"meta/provenance.json": "provenance",
	})
	cfg := snapshotConfig(t, staging)

	runner, err := NewRunner(cfg, nil)
	if err != nil {
		t.Fatalf("NewRunner() err=%v", err)
	}
	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() err=%v", err)
	}

	rpt := summary.Report
	if !rpt.Accepted || rpt.Mode != domain.ModeSnapshot {
		t.Fatalf("report=%+v", rpt)
	}
	if len(rpt.DecisionTrace) != 0 {
		t.Fatalf("snapshot run has a decision trace")
	}
	if len(rpt.Artifacts) != 3 {
		t.Fatalf("artifacts=%d", len(rpt.Artifacts))
	}
	if rpt.IntegritySHA256 == "" {
		t.Fatalf("report not sealed")
	}

	if summary.PublishResult == nil || len(summary.PublishResult.Entries) != 6 {
		t.Fatalf("publish result=%+v", summary.PublishResult)
	}
	for _, entry := range summary.PublishResult.Entries {
		if entry.Outcome != publish.OutcomeWouldWrite {
			t.Fatalf("entry outcome=%s", entry.Outcome)
		}
	}
	if summary.VerifyReport == nil || !summary.VerifyReport.OK() {
		t.Fatalf("verify report=%+v", summary.VerifyReport)
	}

	persisted, err := report.Read(cfg.ReportPath)
	if err != nil {
		t.Fatalf("Read() err=%v", err)
	}
	if persisted.RunID != rpt.RunID {
		t.Fatalf("persisted run id=%s", persisted.RunID)
	}
}

func TestRunLiveAcceptedPublishes(t *testing.T) {
	staging := stageFiles(t, map[string]string{"jobs.jsonl": "jobs"})
	cfg := snapshotConfig(t, staging)
	cfg.Mode = domain.ModeLive
	cfg.Policy = livePolicy()
	cfg.DryRun = false

	store := objectstore.NewMemoryStore()
	provider := &fakeProvider{metrics: []domain.ProviderMetrics{
		{Errors: 10, JobsCollected: 40, SnapshotFallbackRatio: 0.5},
		{Errors: 2, JobsCollected: 60, SnapshotFallbackRatio: 0.1},
	}}

	runner, err := NewRunner(cfg, provider, WithStore(store))
	if err != nil {
		t.Fatalf("NewRunner() err=%v", err)
	}
	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() err=%v", err)
	}

	if provider.calls != 2 {
		t.Fatalf("provider calls=%d", provider.calls)
	}
	if !summary.Report.Accepted || len(summary.Report.DecisionTrace) != 2 {
		t.Fatalf("report=%+v", summary.Report)
	}
	if summary.Report.ProviderMetrics == nil || summary.Report.ProviderMetrics.AttemptsUsed != 2 {
		t.Fatalf("metrics=%+v", summary.Report.ProviderMetrics)
	}
	if store.Len() != 2 {
		t.Fatalf("store objects=%d", store.Len())
	}
	if summary.VerifyReport == nil || !summary.VerifyReport.OK() {
		t.Fatalf("verify report=%+v", summary.VerifyReport)
	}
}

func TestRunLiveRejected(t *testing.T) {
	staging := stageFiles(t, map[string]string{"jobs.jsonl": "jobs"})
	cfg := snapshotConfig(t, staging)
	cfg.Mode = domain.ModeLive
	cfg.Policy = livePolicy()

	bad := domain.ProviderMetrics{Errors: 50, JobsCollected: 10}
	runner, err := NewRunner(cfg, &fakeProvider{metrics: []domain.ProviderMetrics{bad, bad}})
	if err != nil {
		t.Fatalf("NewRunner() err=%v", err)
	}
	summary, err := runner.Run(context.Background())
	if !errors.Is(err, ErrRunRejected) {
		t.Fatalf("err=%v, want ErrRunRejected", err)
	}
	if summary.Report.Accepted {
		t.Fatalf("rejected run reported accepted")
	}
	if len(summary.Report.Artifacts) != 0 {
		t.Fatalf("rejected run carries artifacts")
	}
	if summary.PublishResult != nil {
		t.Fatalf("rejected run was published")
	}

	// the rejected report is still durable
	persisted, err := report.Read(cfg.ReportPath)
	if err != nil {
		t.Fatalf("Read() err=%v", err)
	}
	if persisted.Accepted || len(persisted.DecisionTrace) != 2 {
		t.Fatalf("persisted=%+v", persisted)
	}
}

func TestRunLiveCancelledIsRejected(t *testing.T) {
	staging := stageFiles(t, map[string]string{"jobs.jsonl": "jobs"})
	cfg := snapshotConfig(t, staging)
	cfg.Mode = domain.ModeLive
	cfg.Policy = livePolicy()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner, err := NewRunner(cfg, &fakeProvider{metrics: []domain.ProviderMetrics{{}, {}}})
	if err != nil {
		t.Fatalf("NewRunner() err=%v", err)
	}
	summary, err := runner.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if summary.Report.Accepted {
		t.Fatalf("cancelled run reported accepted")
	}
}

func TestNewRunnerLiveRequiresProvider(t *testing.T) {
	cfg := snapshotConfig(t, t.TempDir())
	cfg.Mode = domain.ModeLive
	cfg.Policy = livePolicy()
	if _, err := NewRunner(cfg, nil); !errors.Is(err, config.ErrConfiguration) {
		t.Fatalf("err=%v", err)
	}
}
