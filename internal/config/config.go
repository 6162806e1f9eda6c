// Package config assembles the pipeline's runtime configuration from the
// environment or a YAML file. LIVE mode refuses to start without every
// policy threshold: silently substituting defaults would mask unreliable
// provider data as safe.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jobintel-labs/jobintel-go/internal/domain"
	"github.com/jobintel-labs/jobintel-go/internal/platform/env"
	"github.com/jobintel-labs/jobintel-go/internal/policy"
	"github.com/jobintel-labs/jobintel-go/internal/publish"
)

// ErrConfiguration marks a fatal misconfiguration; the run never starts.
var ErrConfiguration = errors.New("configuration error")

type Config struct {
	Mode domain.Mode
	// Policy is required for LIVE mode and ignored for SNAPSHOT.
	Policy      *policy.Config
	Destination publish.Destination
	Publish     bool
	DryRun      bool
	// StagingDir is where the upstream pipeline materializes artifacts.
	StagingDir string
	// ReportPath is where run_report.json lands after each run.
	ReportPath string
	// Schedule is a cron expression for unattended operation; empty
	// means run once.
	Schedule string
}

func (c Config) Validate() error {
	if c.Mode != domain.ModeSnapshot && c.Mode != domain.ModeLive {
		return fmt.Errorf("%w: unknown mode %q", ErrConfiguration, c.Mode)
	}
	if c.Mode == domain.ModeLive {
		if c.Policy == nil {
			return fmt.Errorf("%w: live mode requires the full policy config", ErrConfiguration)
		}
		if err := c.Policy.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}
	if strings.TrimSpace(c.StagingDir) == "" {
		return fmt.Errorf("%w: staging dir is required", ErrConfiguration)
	}
	if c.Publish {
		if err := c.Destination.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}
	return nil
}

// FromEnv reads configuration from JOBINTEL_* variables. Every LIVE
// threshold must be present explicitly.
func FromEnv() (Config, error) {
	mode, err := domain.ParseMode(env.String("JOBINTEL_MODE", string(domain.ModeSnapshot)))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	publishEnabled, err := env.Bool("JOBINTEL_PUBLISH", false)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	dryRun, err := env.Bool("JOBINTEL_DRY_RUN", false)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	cfg := Config{
		Mode:       mode,
		Publish:    publishEnabled,
		DryRun:     dryRun,
		StagingDir: env.String("JOBINTEL_STAGING_DIR", "./staging"),
		ReportPath: env.String("JOBINTEL_REPORT_PATH", "./run_report.json"),
		Schedule:   env.String("JOBINTEL_SCHEDULE", ""),
		Destination: publish.Destination{
			Bucket:   env.String("JOBINTEL_S3_BUCKET", "jobintel"),
			Prefix:   env.String("JOBINTEL_DEST_PREFIX", "jobintel"),
			Provider: env.String("JOBINTEL_PROVIDER", ""),
			Profile:  env.String("JOBINTEL_PROFILE", "default"),
		},
	}

	if mode == domain.ModeLive {
		policyCfg, err := policyFromEnv()
		if err != nil {
			return Config{}, err
		}
		cfg.Policy = &policyCfg
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func policyFromEnv() (policy.Config, error) {
	var cfg policy.Config
	var missing []string

	errorRateMax, ok, err := env.LookupFloat("JOBINTEL_ERROR_RATE_MAX")
	if err != nil {
		return policy.Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if !ok {
		missing = append(missing, "JOBINTEL_ERROR_RATE_MAX")
	}
	minJobs, ok, err := env.LookupInt("JOBINTEL_MIN_JOBS")
	if err != nil {
		return policy.Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if !ok {
		missing = append(missing, "JOBINTEL_MIN_JOBS")
	}
	minSnapshotRatio, ok, err := env.LookupFloat("JOBINTEL_MIN_SNAPSHOT_RATIO")
	if err != nil {
		return policy.Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if !ok {
		missing = append(missing, "JOBINTEL_MIN_SNAPSHOT_RATIO")
	}
	maxAttempts, ok, err := env.LookupInt("JOBINTEL_MAX_ATTEMPTS")
	if err != nil {
		return policy.Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if !ok {
		missing = append(missing, "JOBINTEL_MAX_ATTEMPTS")
	}
	backoffBase, ok, err := env.LookupDuration("JOBINTEL_BACKOFF_BASE")
	if err != nil {
		return policy.Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if !ok {
		missing = append(missing, "JOBINTEL_BACKOFF_BASE")
	}
	backoffMax, ok, err := env.LookupDuration("JOBINTEL_BACKOFF_MAX")
	if err != nil {
		return policy.Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if !ok {
		missing = append(missing, "JOBINTEL_BACKOFF_MAX")
	}
	jitter, err := env.Bool("JOBINTEL_BACKOFF_JITTER", false)
	if err != nil {
		return policy.Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	if len(missing) > 0 {
		return policy.Config{}, fmt.Errorf("%w: live mode requires %s", ErrConfiguration, strings.Join(missing, ", "))
	}

	cfg = policy.Config{
		ErrorRateMax:     errorRateMax,
		MinJobs:          minJobs,
		MinSnapshotRatio: minSnapshotRatio,
		MaxAttempts:      maxAttempts,
		BackoffBase:      backoffBase,
		BackoffMax:       backoffMax,
		Jitter:           jitter,
	}
	return cfg, nil
}
