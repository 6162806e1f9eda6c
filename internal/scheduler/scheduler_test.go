package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

func TestParseSchedule(t *testing.T) {
	cases := []struct {
		expr    string
		wantErr bool
	}{
		{expr: "*/15 * * * *"},
		{expr: "0 6 * * 1-5"},
		{expr: "@hourly"},
		{expr: "", wantErr: true},
		{expr: "not a schedule", wantErr: true},
		{expr: "* * * * * *", wantErr: true}, // seconds field is not supported
	}
	for _, tc := range cases {
		_, err := ParseSchedule(tc.expr)
		if tc.wantErr != (err != nil) {
			t.Errorf("ParseSchedule(%q) err=%v, wantErr=%v", tc.expr, err, tc.wantErr)
		}
	}
}

func TestParseScheduleNextTimes(t *testing.T) {
	schedule, err := ParseSchedule("0 */6 * * *")
	if err != nil {
		t.Fatalf("ParseSchedule() err=%v", err)
	}
	after := time.Date(2024, 3, 1, 5, 30, 0, 0, time.UTC)
	next := schedule.Next(after)
	want := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("Next()=%v, want %v", next, want)
	}
}

// constantSchedule fires a fixed interval after whatever time it is asked
// about.
type constantSchedule struct{ every time.Duration }

func (s constantSchedule) Next(t time.Time) time.Time { return t.Add(s.every) }

var _ cron.Schedule = constantSchedule{}

func TestLoopFiresAndSurvivesFailures(t *testing.T) {
	var fired atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	sched := New(constantSchedule{every: 5 * time.Millisecond}, func(ctx context.Context) error {
		n := fired.Add(1)
		if n == 1 {
			return errors.New("transient")
		}
		if n >= 3 {
			cancel()
		}
		return nil
	}, nil)

	err := sched.Loop(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Loop() err=%v, want context.Canceled", err)
	}
	if fired.Load() < 3 {
		t.Fatalf("fired=%d, want >= 3", fired.Load())
	}
}

func TestLoopStopsOnCancelWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sched := New(constantSchedule{every: time.Hour}, func(ctx context.Context) error {
		t.Fatalf("run fired during cancelled wait")
		return nil
	}, nil)

	done := make(chan error, 1)
	go func() { done <- sched.Loop(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Loop() err=%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Loop did not exit after cancel")
	}
}
