package perf

import (
	"errors"
	"testing"
	"time"

	"picshrink/internal/logging"
)

type fakeActivity struct {
	last time.Time
	err  error
}

func (f *fakeActivity) LastActivity() (time.Time, error) {
	return f.last, f.err
}

func TestAutoThrottleRaisesWhenIdle(t *testing.T) {
	coord := newTestCoordinator(t)
	now := time.Now()
	source := &fakeActivity{last: now.Add(-200 * time.Second)}
	throttle, err := NewAutoThrottle(coord, source, 100*time.Second, 2, 16, logging.NewNop())
	if err != nil {
		t.Fatalf("NewAutoThrottle: %v", err)
	}
	throttle.now = func() time.Time { return now }

	if err := throttle.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := coord.ThreadCount(); got != 16 {
		t.Fatalf("ThreadCount = %d, want 16", got)
	}
}

func TestAutoThrottleRevertsOnActivity(t *testing.T) {
	coord := newTestCoordinator(t)
	now := time.Now()
	source := &fakeActivity{last: now.Add(-200 * time.Second)}
	throttle, err := NewAutoThrottle(coord, source, 100*time.Second, 2, 16, logging.NewNop())
	if err != nil {
		t.Fatalf("NewAutoThrottle: %v", err)
	}
	throttle.now = func() time.Time { return now }

	if err := throttle.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	source.last = now // activity just happened
	if err := throttle.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := coord.ThreadCount(); got != 2 {
		t.Fatalf("ThreadCount = %d, want 2", got)
	}
}

func TestAutoThrottleStaysActiveOnSourceError(t *testing.T) {
	coord := newTestCoordinator(t)
	source := &fakeActivity{err: errors.New("no signal")}
	throttle, err := NewAutoThrottle(coord, source, 100*time.Second, 2, 16, logging.NewNop())
	if err != nil {
		t.Fatalf("NewAutoThrottle: %v", err)
	}
	if err := throttle.Step(); err == nil {
		t.Fatal("expected error from activity source")
	}
	if got := coord.ThreadCount(); got != 2 {
		t.Fatalf("ThreadCount = %d, want default 2", got)
	}
}
