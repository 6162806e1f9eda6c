// Package report serializes run reports deterministically and persists
// them as the durable local record downstream verifiers consume.
package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jobintel-labs/jobintel-go/internal/domain"
)

// Marshal serializes a run report with stable field names and order so
// repeated serializations of the same report are byte-identical.
func Marshal(report domain.RunReport) ([]byte, error) {
	if err := report.Validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(payloadFromDomain(report), "", "  ")
}

// Unmarshal parses a persisted run report.
func Unmarshal(raw []byte) (domain.RunReport, error) {
	var payload runReportPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.RunReport{}, fmt.Errorf("decode run report: %w", err)
	}
	report := payload.toDomain()
	if err := report.Validate(); err != nil {
		return domain.RunReport{}, err
	}
	return report, nil
}

// Finalize computes the report's integrity hash over its canonical
// serialization (with the hash field empty) and returns the frozen copy.
func Finalize(report domain.RunReport) (domain.RunReport, error) {
	if err := report.Validate(); err != nil {
		return domain.RunReport{}, err
	}
	unsealed := report
	unsealed.IntegritySHA256 = ""
	hash, err := domain.IntegritySHA256(payloadFromDomain(unsealed))
	if err != nil {
		return domain.RunReport{}, err
	}
	report.IntegritySHA256 = hash
	return report, nil
}

type runReportPayload struct {
	RunID           string                  `json:"run_id"`
	Mode            string                  `json:"mode"`
	StartedAt       time.Time               `json:"started_at"`
	FinishedAt      time.Time               `json:"finished_at"`
	ProviderMetrics *providerMetricsPayload `json:"provider_metrics,omitempty"`
	Artifacts       []artifactPayload       `json:"artifacts"`
	Accepted        bool                    `json:"accepted"`
	DecisionTrace   []decisionRecordPayload `json:"decision_trace"`
	IntegritySHA256 string                  `json:"integrity_sha256,omitempty"`
}

type providerMetricsPayload struct {
	JobsCollected         int     `json:"jobs_collected"`
	Errors                int     `json:"errors"`
	AttemptsUsed          int     `json:"attempts_used"`
	SnapshotFallbackRatio float64 `json:"snapshot_fallback_ratio"`
}

type artifactPayload struct {
	RelativePath string `json:"relative_path"`
	ContentHash  string `json:"content_hash"`
	SizeBytes    int64  `json:"size_bytes"`
}

type decisionRecordPayload struct {
	AttemptID             string  `json:"attempt_id"`
	Attempt               int     `json:"attempt"`
	ErrorRate             float64 `json:"error_rate"`
	JobsCollected         int     `json:"jobs_collected"`
	SnapshotFallbackRatio float64 `json:"snapshot_fallback_ratio"`
	Decision              string  `json:"decision"`
	BackoffDelaySeconds   float64 `json:"backoff_delay_seconds"`
}

func payloadFromDomain(report domain.RunReport) runReportPayload {
	payload := runReportPayload{
		RunID:           report.RunID,
		Mode:            string(report.Mode),
		StartedAt:       report.StartedAt.UTC(),
		FinishedAt:      report.FinishedAt.UTC(),
		Artifacts:       make([]artifactPayload, 0, len(report.Artifacts)),
		Accepted:        report.Accepted,
		DecisionTrace:   make([]decisionRecordPayload, 0, len(report.DecisionTrace)),
		IntegritySHA256: report.IntegritySHA256,
	}
	if report.ProviderMetrics != nil {
		payload.ProviderMetrics = &providerMetricsPayload{
			JobsCollected:         report.ProviderMetrics.JobsCollected,
			Errors:                report.ProviderMetrics.Errors,
			AttemptsUsed:          report.ProviderMetrics.AttemptsUsed,
			SnapshotFallbackRatio: report.ProviderMetrics.SnapshotFallbackRatio,
		}
	}
	for _, artifact := range report.Artifacts {
		payload.Artifacts = append(payload.Artifacts, artifactPayload{
			RelativePath: artifact.RelativePath,
			ContentHash:  artifact.ContentHash,
			SizeBytes:    artifact.SizeBytes,
		})
	}
	for _, record := range report.DecisionTrace {
		payload.DecisionTrace = append(payload.DecisionTrace, decisionRecordPayload{
			AttemptID:             record.AttemptID,
			Attempt:               record.Attempt,
			ErrorRate:             record.ErrorRate,
			JobsCollected:         record.JobsCollected,
			SnapshotFallbackRatio: record.SnapshotFallbackRatio,
			Decision:              string(record.Decision),
			BackoffDelaySeconds:   record.BackoffDelay.Seconds(),
		})
	}
	return payload
}

func (p runReportPayload) toDomain() domain.RunReport {
	report := domain.RunReport{
		RunID:           p.RunID,
		Mode:            domain.Mode(p.Mode),
		StartedAt:       p.StartedAt,
		FinishedAt:      p.FinishedAt,
		Artifacts:       make([]domain.Artifact, 0, len(p.Artifacts)),
		Accepted:        p.Accepted,
		DecisionTrace:   make([]domain.DecisionRecord, 0, len(p.DecisionTrace)),
		IntegritySHA256: p.IntegritySHA256,
	}
	if p.ProviderMetrics != nil {
		report.ProviderMetrics = &domain.ProviderMetrics{
			JobsCollected:         p.ProviderMetrics.JobsCollected,
			Errors:                p.ProviderMetrics.Errors,
			AttemptsUsed:          p.ProviderMetrics.AttemptsUsed,
			SnapshotFallbackRatio: p.ProviderMetrics.SnapshotFallbackRatio,
		}
	}
	for _, artifact := range p.Artifacts {
		report.Artifacts = append(report.Artifacts, domain.Artifact{
			RelativePath: artifact.RelativePath,
			ContentHash:  artifact.ContentHash,
			SizeBytes:    artifact.SizeBytes,
		})
	}
	for _, record := range p.DecisionTrace {
		report.DecisionTrace = append(report.DecisionTrace, domain.DecisionRecord{
			AttemptID:             record.AttemptID,
			Attempt:               record.Attempt,
			ErrorRate:             record.ErrorRate,
			JobsCollected:         record.JobsCollected,
			SnapshotFallbackRatio: record.SnapshotFallbackRatio,
			Decision:              domain.Decision(record.Decision),
			BackoffDelay:          time.Duration(record.BackoffDelaySeconds * float64(time.Second)),
		})
	}
	return report
}
