package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobintel-labs/jobintel-go/internal/domain"
)

func setLiveEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JOBINTEL_MODE", "live")
	t.Setenv("JOBINTEL_ERROR_RATE_MAX", "0.1")
	t.Setenv("JOBINTEL_MIN_JOBS", "50")
	t.Setenv("JOBINTEL_MIN_SNAPSHOT_RATIO", "0.2")
	t.Setenv("JOBINTEL_MAX_ATTEMPTS", "3")
	t.Setenv("JOBINTEL_BACKOFF_BASE", "1s")
	t.Setenv("JOBINTEL_BACKOFF_MAX", "8s")
}

func TestFromEnvSnapshotDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, domain.ModeSnapshot, cfg.Mode)
	assert.Nil(t, cfg.Policy)
	assert.False(t, cfg.Publish)
	assert.Equal(t, "./staging", cfg.StagingDir)
}

func TestFromEnvLive(t *testing.T) {
	setLiveEnv(t)
	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NotNil(t, cfg.Policy)
	assert.Equal(t, 0.1, cfg.Policy.ErrorRateMax)
	assert.Equal(t, 50, cfg.Policy.MinJobs)
	assert.Equal(t, 0.2, cfg.Policy.MinSnapshotRatio)
	assert.Equal(t, 3, cfg.Policy.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Policy.BackoffBase)
	assert.Equal(t, 8*time.Second, cfg.Policy.BackoffMax)
	assert.False(t, cfg.Policy.Jitter)
}

func TestFromEnvLiveMissingThresholdFailsFast(t *testing.T) {
	setLiveEnv(t)
	require.NoError(t, os.Unsetenv("JOBINTEL_MIN_JOBS"))
	_, err := FromEnv()
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "JOBINTEL_MIN_JOBS")
}

func TestFromEnvPublishRequiresDestination(t *testing.T) {
	t.Setenv("JOBINTEL_PUBLISH", "true")
	// provider deliberately unset
	_, err := FromEnv()
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestLoadLive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobintel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: live
publish: true
dry_run: true
staging_dir: /var/lib/jobintel/staging
schedule: "0 6 * * *"
destination:
  bucket: jobintel
  prefix: jobintel
  provider: boardfeed
  profile: default
policy:
  error_rate_max: 0.1
  min_jobs: 50
  min_snapshot_ratio: 0.2
  max_attempts: 3
  backoff_base: 1s
  backoff_max: 8s
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeLive, cfg.Mode)
	assert.True(t, cfg.Publish)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "0 6 * * *", cfg.Schedule)
	require.NotNil(t, cfg.Policy)
	assert.Equal(t, 3, cfg.Policy.MaxAttempts)
	assert.Equal(t, "boardfeed", cfg.Destination.Provider)
}

func TestLoadLiveMissingPolicyField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobintel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: live
policy:
  error_rate_max: 0.1
  min_jobs: 50
  max_attempts: 3
  backoff_base: 1s
  backoff_max: 8s
`), 0o600))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "min_snapshot_ratio")
}

func TestLoadLiveMissingPolicyBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobintel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: live\n"), 0o600))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestLoadSnapshotIgnoresPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobintel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: snapshot\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, cfg.Policy)
}
