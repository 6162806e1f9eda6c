package postgres

// Schema is the DDL for the run history tables. Idempotent, so the CLI
// applies it on startup when run history is enabled.
const Schema = `
CREATE TABLE IF NOT EXISTS run_reports (
	run_id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	accepted BOOLEAN NOT NULL,
	jobs_collected INTEGER,
	errors INTEGER,
	attempts_used INTEGER,
	snapshot_fallback_ratio DOUBLE PRECISION,
	artifacts JSONB NOT NULL DEFAULT '[]'::jsonb,
	decision_trace JSONB NOT NULL DEFAULT '[]'::jsonb,
	integrity_sha256 TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS run_reports_started_at_idx ON run_reports (started_at DESC);
`
