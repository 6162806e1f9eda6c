package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/jobintel-labs/jobintel-go/internal/domain"
)

// Provider performs one LIVE collection attempt and reports its raw
// telemetry. The scraping/enrichment pipeline behind it is an external
// collaborator; this is its sole ingestion contract.
type Provider interface {
	Name() string
	Collect(ctx context.Context, attempt int) (domain.ProviderMetrics, error)
}

// CommandProvider shells out to the upstream collector. The command is
// expected to materialize artifacts into the staging directory and write
// its telemetry JSON to MetricsPath before exiting.
type CommandProvider struct {
	ProviderName string
	Command      []string
	Dir          string
	MetricsPath  string
}

func (p CommandProvider) Name() string {
	return p.ProviderName
}

func (p CommandProvider) Collect(ctx context.Context, attempt int) (domain.ProviderMetrics, error) {
	if len(p.Command) == 0 {
		return domain.ProviderMetrics{}, fmt.Errorf("collector command is required")
	}
	cmd := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...)
	cmd.Dir = p.Dir
	cmd.Env = append(os.Environ(), fmt.Sprintf("JOBINTEL_ATTEMPT=%d", attempt))
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return domain.ProviderMetrics{}, fmt.Errorf("collector attempt %d: %w", attempt, err)
	}
	return ReadMetrics(p.MetricsPath)
}

type metricsPayload struct {
	JobsCollected         int     `json:"jobs_collected"`
	Errors                int     `json:"errors"`
	AttemptsUsed          int     `json:"attempts_used"`
	SnapshotFallbackRatio float64 `json:"snapshot_fallback_ratio"`
}

// ReadMetrics parses the telemetry file the collector leaves behind.
func ReadMetrics(path string) (domain.ProviderMetrics, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.ProviderMetrics{}, fmt.Errorf("read provider metrics: %w", err)
	}
	var payload metricsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.ProviderMetrics{}, fmt.Errorf("decode provider metrics: %w", err)
	}
	metrics := domain.ProviderMetrics{
		JobsCollected:         payload.JobsCollected,
		Errors:                payload.Errors,
		AttemptsUsed:          payload.AttemptsUsed,
		SnapshotFallbackRatio: payload.SnapshotFallbackRatio,
	}
	if metrics.AttemptsUsed < 1 {
		metrics.AttemptsUsed = 1
	}
	if err := metrics.Validate(); err != nil {
		return domain.ProviderMetrics{}, fmt.Errorf("provider metrics: %w", err)
	}
	return metrics, nil
}
