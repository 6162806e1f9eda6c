// Package postgres persists run history with the stdlib driver interface
// backed by pgx.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jobintel-labs/jobintel-go/internal/domain"
	"github.com/jobintel-labs/jobintel-go/internal/repo"
)

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type RunReportStore struct {
	db DB
}

func NewRunReportStore(db DB) *RunReportStore {
	if db == nil {
		return nil
	}
	return &RunReportStore{db: db}
}

func (s *RunReportStore) Insert(ctx context.Context, rpt domain.RunReport) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run report store not initialized")
	}
	if err := rpt.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(rpt.IntegritySHA256) == "" {
		return errors.New("integrity sha256 is required")
	}

	artifactsJSON, err := json.Marshal(artifactRowsFromDomain(rpt.Artifacts))
	if err != nil {
		return fmt.Errorf("encode artifacts: %w", err)
	}
	traceJSON, err := json.Marshal(traceRowsFromDomain(rpt.DecisionTrace))
	if err != nil {
		return fmt.Errorf("encode decision trace: %w", err)
	}

	var jobsCollected, errCount, attemptsUsed sql.NullInt64
	var fallbackRatio sql.NullFloat64
	if rpt.ProviderMetrics != nil {
		jobsCollected = sql.NullInt64{Int64: int64(rpt.ProviderMetrics.JobsCollected), Valid: true}
		errCount = sql.NullInt64{Int64: int64(rpt.ProviderMetrics.Errors), Valid: true}
		attemptsUsed = sql.NullInt64{Int64: int64(rpt.ProviderMetrics.AttemptsUsed), Valid: true}
		fallbackRatio = sql.NullFloat64{Float64: rpt.ProviderMetrics.SnapshotFallbackRatio, Valid: true}
	}

	result, err := s.db.ExecContext(
		ctx,
		`INSERT INTO run_reports (
			run_id,
			mode,
			started_at,
			finished_at,
			accepted,
			jobs_collected,
			errors,
			attempts_used,
			snapshot_fallback_ratio,
			artifacts,
			decision_trace,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (run_id) DO NOTHING`,
		strings.TrimSpace(rpt.RunID),
		string(rpt.Mode),
		rpt.StartedAt.UTC(),
		rpt.FinishedAt.UTC(),
		rpt.Accepted,
		jobsCollected,
		errCount,
		attemptsUsed,
		fallbackRatio,
		artifactsJSON,
		traceJSON,
		strings.TrimSpace(rpt.IntegritySHA256),
	)
	if err != nil {
		return fmt.Errorf("insert run report: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Reports are immutable; a duplicate insert of the same run is a
		// caller bug, not an upsert.
		return fmt.Errorf("run report %s already exists", rpt.RunID)
	}
	return nil
}

func (s *RunReportStore) GetByRunID(ctx context.Context, runID string) (domain.RunReport, error) {
	if s == nil || s.db == nil {
		return domain.RunReport{}, fmt.Errorf("run report store not initialized")
	}
	row := s.db.QueryRowContext(
		ctx,
		selectColumns+` FROM run_reports WHERE run_id = $1`,
		strings.TrimSpace(runID),
	)
	rpt, err := scanRunReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunReport{}, repo.ErrNotFound
	}
	return rpt, err
}

func (s *RunReportStore) ListRecent(ctx context.Context, limit int) ([]domain.RunReport, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run report store not initialized")
	}
	if limit < 1 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		selectColumns+` FROM run_reports ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list run reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]domain.RunReport, 0, limit)
	for rows.Next() {
		rpt, err := scanRunReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rpt)
	}
	return out, rows.Err()
}

const selectColumns = `SELECT
	run_id,
	mode,
	started_at,
	finished_at,
	accepted,
	jobs_collected,
	errors,
	attempts_used,
	snapshot_fallback_ratio,
	artifacts,
	decision_trace,
	integrity_sha256`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunReport(row rowScanner) (domain.RunReport, error) {
	var (
		rpt           domain.RunReport
		mode          string
		jobsCollected sql.NullInt64
		errCount      sql.NullInt64
		attemptsUsed  sql.NullInt64
		fallbackRatio sql.NullFloat64
		artifactsJSON []byte
		traceJSON     []byte
	)
	err := row.Scan(
		&rpt.RunID,
		&mode,
		&rpt.StartedAt,
		&rpt.FinishedAt,
		&rpt.Accepted,
		&jobsCollected,
		&errCount,
		&attemptsUsed,
		&fallbackRatio,
		&artifactsJSON,
		&traceJSON,
		&rpt.IntegritySHA256,
	)
	if err != nil {
		return domain.RunReport{}, err
	}
	rpt.Mode = domain.Mode(mode)
	rpt.StartedAt = rpt.StartedAt.UTC()
	rpt.FinishedAt = rpt.FinishedAt.UTC()

	if jobsCollected.Valid {
		rpt.ProviderMetrics = &domain.ProviderMetrics{
			JobsCollected:         int(jobsCollected.Int64),
			Errors:                int(errCount.Int64),
			AttemptsUsed:          int(attemptsUsed.Int64),
			SnapshotFallbackRatio: fallbackRatio.Float64,
		}
	}

	var artifacts []artifactRow
	if err := json.Unmarshal(artifactsJSON, &artifacts); err != nil {
		return domain.RunReport{}, fmt.Errorf("decode artifacts: %w", err)
	}
	for _, a := range artifacts {
		rpt.Artifacts = append(rpt.Artifacts, domain.Artifact{
			RelativePath: a.RelativePath,
			ContentHash:  a.ContentHash,
			SizeBytes:    a.SizeBytes,
		})
	}

	var trace []traceRow
	if err := json.Unmarshal(traceJSON, &trace); err != nil {
		return domain.RunReport{}, fmt.Errorf("decode decision trace: %w", err)
	}
	for _, record := range trace {
		rpt.DecisionTrace = append(rpt.DecisionTrace, domain.DecisionRecord{
			AttemptID:             record.AttemptID,
			Attempt:               record.Attempt,
			ErrorRate:             record.ErrorRate,
			JobsCollected:         record.JobsCollected,
			SnapshotFallbackRatio: record.SnapshotFallbackRatio,
			Decision:              domain.Decision(record.Decision),
			BackoffDelay:          time.Duration(record.BackoffDelayMillis) * time.Millisecond,
		})
	}
	return rpt, nil
}

type artifactRow struct {
	RelativePath string `json:"relative_path"`
	ContentHash  string `json:"content_hash"`
	SizeBytes    int64  `json:"size_bytes"`
}

type traceRow struct {
	AttemptID             string  `json:"attempt_id"`
	Attempt               int     `json:"attempt"`
	ErrorRate             float64 `json:"error_rate"`
	JobsCollected         int     `json:"jobs_collected"`
	SnapshotFallbackRatio float64 `json:"snapshot_fallback_ratio"`
	Decision              string  `json:"decision"`
	BackoffDelayMillis    int64   `json:"backoff_delay_ms"`
}

func artifactRowsFromDomain(artifacts []domain.Artifact) []artifactRow {
	out := make([]artifactRow, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, artifactRow{
			RelativePath: a.RelativePath,
			ContentHash:  a.ContentHash,
			SizeBytes:    a.SizeBytes,
		})
	}
	return out
}

func traceRowsFromDomain(trace []domain.DecisionRecord) []traceRow {
	out := make([]traceRow, 0, len(trace))
	for _, record := range trace {
		out = append(out, traceRow{
			AttemptID:             record.AttemptID,
			Attempt:               record.Attempt,
			ErrorRate:             record.ErrorRate,
			JobsCollected:         record.JobsCollected,
			SnapshotFallbackRatio: record.SnapshotFallbackRatio,
			Decision:              string(record.Decision),
			BackoffDelayMillis:    record.BackoffDelay.Milliseconds(),
		})
	}
	return out
}
