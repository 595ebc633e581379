package perf

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"picshrink/internal/logging"
)

// ActivitySource reports when operator activity was last observed. The
// concrete signal (input devices, session state) lives outside this package.
type ActivitySource interface {
	LastActivity() (time.Time, error)
}

// AutoThrottle raises the thread count after a quiet period and drops it
// back the moment activity returns. It layers on top of the coordinator's
// store and does not change its contract.
type AutoThrottle struct {
	coord         *Coordinator
	source        ActivitySource
	idleAfter     time.Duration
	activeThreads int
	idleThreads   int
	logger        *slog.Logger
	now           func() time.Time

	idle bool
}

// NewAutoThrottle wires an activity source to the coordinator.
func NewAutoThrottle(coord *Coordinator, source ActivitySource, idleAfter time.Duration, activeThreads, idleThreads int, logger *slog.Logger) (*AutoThrottle, error) {
	if coord == nil {
		return nil, fmt.Errorf("coordinator required")
	}
	if source == nil {
		return nil, fmt.Errorf("activity source required")
	}
	if idleAfter <= 0 {
		return nil, fmt.Errorf("idle duration must be positive")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AutoThrottle{
		coord:         coord,
		source:        source,
		idleAfter:     idleAfter,
		activeThreads: clamp(activeThreads, MinThreads, MaxThreads),
		idleThreads:   clamp(idleThreads, MinThreads, MaxThreads),
		logger:        logging.NewComponentLogger(logger, "autothrottle"),
		now:           time.Now,
	}, nil
}

// Run evaluates the activity signal at the given interval until ctx is
// cancelled.
func (a *AutoThrottle) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.Step(); err != nil {
				a.logger.Warn("auto-throttle step failed", logging.Error(err))
			}
		}
	}
}

// Step performs one evaluation: switch to the idle thread count when the
// quiet period has elapsed, revert immediately on any activity.
func (a *AutoThrottle) Step() error {
	last, err := a.source.LastActivity()
	if err != nil {
		// Without a signal, stay conservative on the active count.
		if a.idle {
			a.idle = false
			return a.coord.SetThreadCount(a.activeThreads)
		}
		return fmt.Errorf("read activity: %w", err)
	}
	quiet := a.now().Sub(last)
	switch {
	case quiet >= a.idleAfter && !a.idle:
		a.idle = true
		a.logger.Info("system idle, raising thread count",
			logging.Int("threads", a.idleThreads),
			logging.Duration("quiet", quiet))
		return a.coord.SetThreadCount(a.idleThreads)
	case quiet < a.idleAfter && a.idle:
		a.idle = false
		a.logger.Info("activity detected, lowering thread count",
			logging.Int("threads", a.activeThreads))
		return a.coord.SetThreadCount(a.activeThreads)
	}
	return nil
}
