package perf

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"picshrink/internal/logging"
)

const (
	// MinThreads and MaxThreads bound the per-process worker pool size.
	MinThreads = 1
	MaxThreads = 16
	// MinBatchSize and MaxBatchSize bound the archive batch size.
	MinBatchSize = 1
	MaxBatchSize = 100

	// retention is how long an entry survives without its owner refreshing it.
	retention = 6 * time.Hour
)

// ProcessState is one process's throttling record in the shared store.
type ProcessState struct {
	ThreadCount int       `json:"thread_count"`
	BatchSize   int       `json:"batch_size"`
	Paused      bool      `json:"paused"`
	StartTime   time.Time `json:"start_time"`
}

type stateDoc map[string]ProcessState

// Coordinator reads and writes this process's entry in the shared store.
// A missing or corrupt store is treated as empty so throttling can never
// deadlock a worker.
type Coordinator struct {
	path     string
	pid      string
	lock     *flock.Flock
	logger   *slog.Logger
	now      func() time.Time
	defaults ProcessState
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithProcessID overrides the store key (for tests).
func WithProcessID(pid string) Option {
	return func(c *Coordinator) {
		if pid != "" {
			c.pid = pid
		}
	}
}

// NewCoordinator creates a coordinator backed by the store at path. The
// defaults are used whenever this process has no entry yet.
func NewCoordinator(path string, threadCount, batchSize int, logger *slog.Logger, opts ...Option) (*Coordinator, error) {
	if path == "" {
		return nil, fmt.Errorf("performance store path required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	c := &Coordinator{
		path:   path,
		pid:    strconv.Itoa(os.Getpid()),
		lock:   flock.New(path + ".lock"),
		logger: logging.NewComponentLogger(logger, "perf"),
		now:    time.Now,
		defaults: ProcessState{
			ThreadCount: clamp(threadCount, MinThreads, MaxThreads),
			BatchSize:   clamp(batchSize, MinBatchSize, MaxBatchSize),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ThreadCount returns the current worker pool size, clamped to [1,16].
// While paused it returns 0, meaning "schedule nothing".
func (c *Coordinator) ThreadCount() int {
	state := c.readOwn()
	if state.Paused {
		return 0
	}
	return clamp(state.ThreadCount, MinThreads, MaxThreads)
}

// BatchSize returns the current batch size, clamped to [1,100].
func (c *Coordinator) BatchSize() int {
	return clamp(c.readOwn().BatchSize, MinBatchSize, MaxBatchSize)
}

// IsPaused reports whether this process is paused.
func (c *Coordinator) IsPaused() bool {
	return c.readOwn().Paused
}

// Register writes this process's entry with its defaults so control
// processes can see and adjust it.
func (c *Coordinator) Register() error {
	return c.updateOwn(func(*ProcessState) {})
}

// SetThreadCount updates this process's thread count.
func (c *Coordinator) SetThreadCount(n int) error {
	return c.updateOwn(Threads(n))
}

// SetBatchSize updates this process's batch size.
func (c *Coordinator) SetBatchSize(n int) error {
	return c.updateOwn(Batch(n))
}

// SetPaused updates this process's pause flag.
func (c *Coordinator) SetPaused(paused bool) error {
	return c.updateOwn(Pause(paused))
}

// Pause returns a mutation setting the pause flag.
func Pause(paused bool) func(*ProcessState) {
	return func(s *ProcessState) { s.Paused = paused }
}

// Threads returns a mutation setting a clamped thread count.
func Threads(n int) func(*ProcessState) {
	return func(s *ProcessState) { s.ThreadCount = ClampThreads(n) }
}

// Batch returns a mutation setting a clamped batch size.
func Batch(n int) func(*ProcessState) {
	return func(s *ProcessState) { s.BatchSize = ClampBatchSize(n) }
}

// ClampThreads normalizes an operator-supplied thread count.
func ClampThreads(n int) int { return clamp(n, MinThreads, MaxThreads) }

// ClampBatchSize normalizes an operator-supplied batch size.
func ClampBatchSize(n int) int { return clamp(n, MinBatchSize, MaxBatchSize) }

// UpdateEntries applies fn to the entries named by pids, or to every live
// entry when pids is empty, and returns the pids touched in sorted order.
// Unlike the Set* methods this reaches other processes' entries, which is
// how a control process adjusts running workers. Foreign StartTime values
// are left alone: the timestamp is the owning process's heartbeat, and
// refreshing it from outside would keep a dead entry past the purge.
func (c *Coordinator) UpdateEntries(fn func(*ProcessState), pids ...string) ([]string, error) {
	if err := c.lock.Lock(); err != nil {
		return nil, fmt.Errorf("acquire exclusive lock: %w", err)
	}
	defer c.lock.Unlock()

	doc := c.loadLocked()
	c.purgeLocked(doc)
	targets := pids
	if len(targets) == 0 {
		for pid := range doc {
			targets = append(targets, pid)
		}
	}
	sort.Strings(targets)
	for _, pid := range targets {
		state, ok := doc[pid]
		if !ok {
			return nil, fmt.Errorf("no live entry for pid %s", pid)
		}
		fn(&state)
		doc[pid] = state
	}
	if len(targets) == 0 {
		return nil, nil
	}
	return targets, c.saveLocked(doc)
}

// WaitForResume blocks until the process is unpaused, the timeout elapses,
// or ctx is cancelled. It reports whether processing may resume. A zero or
// negative timeout means wait indefinitely.
func (c *Coordinator) WaitForResume(ctx context.Context, pollInterval, timeout time.Duration) bool {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = c.now().Add(timeout)
	}
	for {
		if !c.IsPaused() {
			return true
		}
		if !deadline.IsZero() && !c.now().Before(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}
}

// States returns every live entry in the store, keyed by process id.
func (c *Coordinator) States() map[string]ProcessState {
	var out map[string]ProcessState
	c.withShared(func(doc stateDoc) {
		out = make(map[string]ProcessState, len(doc))
		for pid, state := range doc {
			out[pid] = state
		}
	})
	return out
}

// readOwn returns this process's entry, falling back to the defaults when
// the entry is missing or the store cannot be read.
func (c *Coordinator) readOwn() ProcessState {
	state := c.defaults
	c.withShared(func(doc stateDoc) {
		if s, ok := doc[c.pid]; ok {
			state = s
		}
	})
	return state
}

// updateOwn applies fn to this process's entry under an exclusive lock,
// creating the entry from defaults on first access.
func (c *Coordinator) updateOwn(fn func(*ProcessState)) error {
	if err := c.lock.Lock(); err != nil {
		return fmt.Errorf("acquire exclusive lock: %w", err)
	}
	defer c.lock.Unlock()

	doc := c.loadLocked()
	state, ok := doc[c.pid]
	if !ok {
		state = c.defaults
		state.StartTime = c.now()
	}
	fn(&state)
	// Refreshing the timestamp keeps live processes out of the purge.
	state.StartTime = c.now()
	doc[c.pid] = state
	c.purgeLocked(doc)
	return c.saveLocked(doc)
}

func (c *Coordinator) withShared(fn func(stateDoc)) {
	if err := c.lock.RLock(); err != nil {
		c.logger.Warn("performance store read lock failed, using defaults",
			logging.String("path", c.path), logging.Error(err))
		fn(stateDoc{})
		return
	}
	defer c.lock.Unlock()
	doc := c.loadLocked()
	c.purgeLocked(doc)
	fn(doc)
}

// loadLocked reads the store. Corruption is logged and treated as empty.
func (c *Coordinator) loadLocked() stateDoc {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("performance store unreadable, treating as empty",
				logging.String("path", c.path), logging.Error(err))
		}
		return stateDoc{}
	}
	doc := stateDoc{}
	if err := json.Unmarshal(data, &doc); err != nil {
		c.logger.Warn("performance store corrupt, treating as empty",
			logging.String("path", c.path),
			logging.String(logging.FieldEventType, "perf_store_corrupt"),
			logging.String(logging.FieldErrorHint, "the next update rewrites the store"),
			logging.Error(err))
		return stateDoc{}
	}
	return doc
}

func (c *Coordinator) saveLocked(doc stateDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode performance store: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write performance store: %w", err)
	}
	return nil
}

func (c *Coordinator) purgeLocked(doc stateDoc) {
	cutoff := c.now().Add(-retention)
	for pid, state := range doc {
		if state.StartTime.Before(cutoff) {
			delete(doc, pid)
		}
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
