package policy

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig marks a policy configuration that must stop a LIVE run
// before its first attempt. It is never downgraded to a default.
var ErrInvalidConfig = errors.New("invalid policy config")

// Config holds the LIVE-mode acceptance thresholds and retry behavior.
// All fields are required together; a LIVE run with a partial config is a
// configuration error, not a run with defaults.
type Config struct {
	// ErrorRateMax is the highest tolerable errors/(errors+jobs) ratio.
	ErrorRateMax float64
	// MinJobs is the fewest jobs an attempt may collect and still pass.
	MinJobs int
	// MinSnapshotRatio is, despite the historical name, a ceiling: the
	// highest tolerable fraction of jobs served from snapshot fallback.
	MinSnapshotRatio float64
	MaxAttempts      int
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	// Jitter applies symmetric random jitter up to +-10% of each backoff
	// delay. Off by default so delays stay exactly reproducible.
	Jitter bool
}

func (c Config) Validate() error {
	if c.ErrorRateMax < 0 || c.ErrorRateMax > 1 {
		return fmt.Errorf("%w: error rate max must be in [0,1], got %v", ErrInvalidConfig, c.ErrorRateMax)
	}
	if c.MinJobs < 0 {
		return fmt.Errorf("%w: min jobs must be >= 0, got %d", ErrInvalidConfig, c.MinJobs)
	}
	if c.MinSnapshotRatio < 0 || c.MinSnapshotRatio > 1 {
		return fmt.Errorf("%w: min snapshot ratio must be in [0,1], got %v", ErrInvalidConfig, c.MinSnapshotRatio)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be >= 1, got %d", ErrInvalidConfig, c.MaxAttempts)
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("%w: backoff base must be positive, got %v", ErrInvalidConfig, c.BackoffBase)
	}
	if c.BackoffMax < c.BackoffBase {
		return fmt.Errorf("%w: backoff max %v must be >= backoff base %v", ErrInvalidConfig, c.BackoffMax, c.BackoffBase)
	}
	return nil
}

// BackoffDelay returns the capped exponential delay slept after failing
// attempt n: min(base * 2^(n-1), max).
func (c Config) BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	delay := c.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.BackoffMax || delay < 0 {
			return c.BackoffMax
		}
	}
	if delay > c.BackoffMax {
		return c.BackoffMax
	}
	return delay
}
