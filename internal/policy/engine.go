// Package policy gates LIVE-mode run acceptance and drives bounded
// retries over provider telemetry. Attempt-level failures never leave the
// engine; callers observe only the terminal accepted or rejected outcome.
package policy

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/jobintel-labs/jobintel-go/internal/domain"
)

// RunFunc performs one provider attempt and returns its raw telemetry. An
// error counts as a fully failed attempt, never as an engine failure.
type RunFunc func(ctx context.Context, attempt int) (domain.ProviderMetrics, error)

// Outcome is the terminal result of the retry loop.
type Outcome struct {
	Accepted bool
	Attempts int
	// Metrics holds the telemetry of the accepted attempt; nil when
	// rejected.
	Metrics *domain.ProviderMetrics
	Trace   []domain.DecisionRecord
}

type Engine struct {
	cfg          Config
	sleep        func(ctx context.Context, d time.Duration) error
	jitter       func(d time.Duration) time.Duration
	newAttemptID func() string
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:          cfg,
		sleep:        sleepContext,
		jitter:       func(d time.Duration) time.Duration { return d },
		newAttemptID: uuid.NewString,
	}
	if cfg.Jitter {
		e.jitter = symmetricJitter
	}
	return e, nil
}

// EvaluateAndRetry runs attempts until one passes every threshold or
// MaxAttempts failing attempts have been made. Attempts are strictly
// sequential; the backoff sleep between them is the only blocking point
// and honors ctx. A cancelled run is always rejected.
func (e *Engine) EvaluateAndRetry(ctx context.Context, run RunFunc) (Outcome, error) {
	outcome := Outcome{Trace: make([]domain.DecisionRecord, 0, e.cfg.MaxAttempts)}

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		outcome.Attempts = attempt

		metrics, runErr := run(ctx, attempt)
		if runErr != nil {
			// A broken attempt is indistinguishable from a worthless
			// one: zero jobs, unit error rate.
			metrics = domain.ProviderMetrics{Errors: 1, AttemptsUsed: attempt}
		}
		pass := runErr == nil && e.cfg.accepts(metrics)

		record := domain.DecisionRecord{
			AttemptID:             e.newAttemptID(),
			Attempt:               attempt,
			ErrorRate:             metrics.ErrorRate(),
			JobsCollected:         metrics.JobsCollected,
			SnapshotFallbackRatio: metrics.SnapshotFallbackRatio,
			Decision:              domain.DecisionFail,
		}

		if pass {
			record.Decision = domain.DecisionPass
			outcome.Trace = append(outcome.Trace, record)
			outcome.Accepted = true
			accepted := metrics
			accepted.AttemptsUsed = attempt
			outcome.Metrics = &accepted
			return outcome, nil
		}

		if attempt < e.cfg.MaxAttempts {
			record.BackoffDelay = e.cfg.BackoffDelay(attempt)
			outcome.Trace = append(outcome.Trace, record)
			if err := e.sleep(ctx, e.jitter(record.BackoffDelay)); err != nil {
				return outcome, err
			}
			continue
		}
		outcome.Trace = append(outcome.Trace, record)
	}

	return outcome, nil
}

// accepts is the per-attempt acceptance predicate; all three thresholds
// must hold.
func (c Config) accepts(m domain.ProviderMetrics) bool {
	if m.ErrorRate() > c.ErrorRateMax {
		return false
	}
	if m.JobsCollected < c.MinJobs {
		return false
	}
	if m.SnapshotFallbackRatio > c.MinSnapshotRatio {
		return false
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func symmetricJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	// +-10%
	spread := float64(d) * 0.1
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
