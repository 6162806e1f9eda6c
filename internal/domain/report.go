package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode selects how a run sources its data.
type Mode string

const (
	// ModeSnapshot runs against local, deterministic data only.
	ModeSnapshot Mode = "snapshot"
	// ModeLive calls external providers; output quality must be gated.
	ModeLive Mode = "live"
)

func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeSnapshot:
		return ModeSnapshot, nil
	case ModeLive:
		return ModeLive, nil
	default:
		return "", fmt.Errorf("unknown mode %q", value)
	}
}

// ProviderMetrics holds raw telemetry from one LIVE provider attempt.
type ProviderMetrics struct {
	JobsCollected         int
	Errors                int
	AttemptsUsed          int
	SnapshotFallbackRatio float64
}

// ErrorRate is the fraction of operations that failed. The denominator is
// floored at one so a zero-activity attempt reports rate zero, not NaN.
func (m ProviderMetrics) ErrorRate() float64 {
	total := m.Errors + m.JobsCollected
	if total < 1 {
		total = 1
	}
	return float64(m.Errors) / float64(total)
}

func (m ProviderMetrics) Validate() error {
	if m.JobsCollected < 0 {
		return errors.New("jobs collected must be >= 0")
	}
	if m.Errors < 0 {
		return errors.New("errors must be >= 0")
	}
	if m.AttemptsUsed < 1 {
		return errors.New("attempts used must be >= 1")
	}
	if m.SnapshotFallbackRatio < 0 || m.SnapshotFallbackRatio > 1 {
		return errors.New("snapshot fallback ratio must be in [0,1]")
	}
	return nil
}

// Artifact references one locally materialized file produced by a run.
type Artifact struct {
	RelativePath string
	ContentHash  string
	SizeBytes    int64
}

func (a Artifact) Validate() error {
	if strings.TrimSpace(a.RelativePath) == "" {
		return errors.New("artifact relative path is required")
	}
	if strings.HasPrefix(a.RelativePath, "/") || strings.Contains(a.RelativePath, "..") {
		return fmt.Errorf("artifact path must be relative and normalized: %q", a.RelativePath)
	}
	if strings.TrimSpace(a.ContentHash) == "" {
		return errors.New("artifact content hash is required")
	}
	if a.SizeBytes < 0 {
		return errors.New("artifact size must be >= 0")
	}
	return nil
}

// Decision is the per-attempt verdict of the policy engine.
type Decision string

const (
	DecisionPass Decision = "pass"
	DecisionFail Decision = "fail"
)

// DecisionRecord is one entry of a run's audit trace.
type DecisionRecord struct {
	AttemptID             string
	Attempt               int
	ErrorRate             float64
	JobsCollected         int
	SnapshotFallbackRatio float64
	Decision              Decision
	BackoffDelay          time.Duration
}

// RunReport is the immutable record of one pipeline execution. Once
// Accepted is set the report must never change; EnsureRunReportImmutable
// guards persistence paths.
type RunReport struct {
	RunID           string
	Mode            Mode
	StartedAt       time.Time
	FinishedAt      time.Time
	ProviderMetrics *ProviderMetrics
	Artifacts       []Artifact
	Accepted        bool
	DecisionTrace   []DecisionRecord
	IntegritySHA256 string
}

func (r RunReport) Validate() error {
	if strings.TrimSpace(r.RunID) == "" {
		return errors.New("run id is required")
	}
	if r.Mode != ModeSnapshot && r.Mode != ModeLive {
		return fmt.Errorf("unknown mode %q", r.Mode)
	}
	if r.Mode == ModeLive && r.Accepted && r.ProviderMetrics == nil {
		return errors.New("accepted live run requires provider metrics")
	}
	if r.Mode == ModeSnapshot && r.ProviderMetrics != nil {
		return errors.New("snapshot run must not carry provider metrics")
	}
	if r.ProviderMetrics != nil {
		if err := r.ProviderMetrics.Validate(); err != nil {
			return err
		}
	}
	if !r.Accepted && len(r.Artifacts) > 0 {
		return errors.New("rejected run must not carry artifacts")
	}
	seen := make(map[string]struct{}, len(r.Artifacts))
	for i, artifact := range r.Artifacts {
		if err := artifact.Validate(); err != nil {
			return fmt.Errorf("artifact[%d]: %w", i, err)
		}
		if _, ok := seen[artifact.RelativePath]; ok {
			return fmt.Errorf("artifact path duplicated: %q", artifact.RelativePath)
		}
		seen[artifact.RelativePath] = struct{}{}
	}
	for i, record := range r.DecisionTrace {
		if record.Attempt != i+1 {
			return fmt.Errorf("decision trace attempt %d out of order at index %d", record.Attempt, i)
		}
		if record.Decision != DecisionPass && record.Decision != DecisionFail {
			return fmt.Errorf("decision trace[%d]: unknown decision %q", i, record.Decision)
		}
	}
	return nil
}
