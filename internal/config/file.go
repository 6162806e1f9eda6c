package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jobintel-labs/jobintel-go/internal/domain"
	"github.com/jobintel-labs/jobintel-go/internal/policy"
	"github.com/jobintel-labs/jobintel-go/internal/publish"
)

type filePayload struct {
	Mode        string             `yaml:"mode"`
	Publish     bool               `yaml:"publish"`
	DryRun      bool               `yaml:"dry_run"`
	StagingDir  string             `yaml:"staging_dir"`
	ReportPath  string             `yaml:"report_path"`
	Schedule    string             `yaml:"schedule"`
	Destination destinationPayload `yaml:"destination"`
	Policy      *policyFilePayload `yaml:"policy"`
}

type destinationPayload struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Provider string `yaml:"provider"`
	Profile  string `yaml:"profile"`
}

// Threshold fields are pointers so an omitted key is distinguishable from
// an explicit zero; LIVE mode rejects omissions outright.
type policyFilePayload struct {
	ErrorRateMax     *float64 `yaml:"error_rate_max"`
	MinJobs          *int     `yaml:"min_jobs"`
	MinSnapshotRatio *float64 `yaml:"min_snapshot_ratio"`
	MaxAttempts      *int     `yaml:"max_attempts"`
	BackoffBase      *string  `yaml:"backoff_base"`
	BackoffMax       *string  `yaml:"backoff_max"`
	Jitter           bool     `yaml:"jitter"`
}

// Load reads configuration from a YAML file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}
	var payload filePayload
	if err := yaml.Unmarshal(raw, &payload); err != nil {
		return Config{}, fmt.Errorf("%w: decode %s: %v", ErrConfiguration, path, err)
	}

	mode, err := domain.ParseMode(payload.Mode)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	cfg := Config{
		Mode:       mode,
		Publish:    payload.Publish,
		DryRun:     payload.DryRun,
		StagingDir: defaultString(payload.StagingDir, "./staging"),
		ReportPath: defaultString(payload.ReportPath, "./run_report.json"),
		Schedule:   payload.Schedule,
		Destination: publish.Destination{
			Bucket:   payload.Destination.Bucket,
			Prefix:   payload.Destination.Prefix,
			Provider: payload.Destination.Provider,
			Profile:  defaultString(payload.Destination.Profile, "default"),
		},
	}

	if mode == domain.ModeLive {
		policyCfg, err := policyFromFile(payload.Policy)
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

func policyFromFile(payload *policyFilePayload) (policy.Config, error) {
	if payload == nil {
		return policy.Config{}, fmt.Errorf("%w: live mode requires a policy block", ErrConfiguration)
	}
	var missing []string
	if payload.ErrorRateMax == nil {
		missing = append(missing, "error_rate_max")
	}
	if payload.MinJobs == nil {
		missing = append(missing, "min_jobs")
	}
	if payload.MinSnapshotRatio == nil {
		missing = append(missing, "min_snapshot_ratio")
	}
	if payload.MaxAttempts == nil {
		missing = append(missing, "max_attempts")
	}
	if payload.BackoffBase == nil {
		missing = append(missing, "backoff_base")
	}
	if payload.BackoffMax == nil {
		missing = append(missing, "backoff_max")
	}
	if len(missing) > 0 {
		return policy.Config{}, fmt.Errorf("%w: policy block requires %s", ErrConfiguration, strings.Join(missing, ", "))
	}

	backoffBase, err := time.ParseDuration(*payload.BackoffBase)
	if err != nil {
		return policy.Config{}, fmt.Errorf("%w: parse backoff_base: %v", ErrConfiguration, err)
	}
	backoffMax, err := time.ParseDuration(*payload.BackoffMax)
	if err != nil {
		return policy.Config{}, fmt.Errorf("%w: parse backoff_max: %v", ErrConfiguration, err)
	}

	return policy.Config{
		ErrorRateMax:     *payload.ErrorRateMax,
		MinJobs:          *payload.MinJobs,
		MinSnapshotRatio: *payload.MinSnapshotRatio,
		MaxAttempts:      *payload.MaxAttempts,
		BackoffBase:      backoffBase,
		BackoffMax:       backoffMax,
		Jitter:           payload.Jitter,
	}, nil
}

func defaultString(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
