// Package scheduler fires the pipeline on a cron schedule for unattended
// operation. Runs never overlap: the next fire time is computed only
// after the previous run returns.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser supports standard 5-field cron expressions and descriptors
// like @hourly.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a cron expression into a Schedule.
func ParseSchedule(expr string) (cron.Schedule, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	return schedule, nil
}

// RunFunc performs one scheduled pipeline run.
type RunFunc func(ctx context.Context) error

type Scheduler struct {
	schedule cron.Schedule
	run      RunFunc
	logger   *slog.Logger
	now      func() time.Time
}

func New(schedule cron.Schedule, run RunFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedule: schedule,
		run:      run,
		logger:   logger,
		now:      time.Now,
	}
}

// Loop blocks, firing run at each schedule tick until ctx is cancelled.
// A failed run is logged and does not stop the loop; cancellation is the
// only exit.
func (s *Scheduler) Loop(ctx context.Context) error {
	for {
		next := s.schedule.Next(s.now())
		s.logger.Info("next scheduled run", "at", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := s.run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("scheduled run failed", "error", err)
		}
	}
}
