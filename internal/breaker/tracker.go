package breaker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"picshrink/internal/logging"
)

// historyCap bounds the per-batch sample ring; the oldest sample is evicted
// once the cap is reached.
const historyCap = 50

// Blacklister is the persistence hook invoked when a batch trips.
type Blacklister interface {
	Add(archivePath string) error
}

// Sample is one recorded conversion outcome.
type Sample struct {
	Filename  string
	Ratio     float64
	Timestamp time.Time
}

// Stats is a diagnostic snapshot of one batch.
type Stats struct {
	Archive             string
	Total               int
	ConsecutiveNegative int
	Stopped             bool
	Elapsed             time.Duration
	Recent              []Sample
}

type batch struct {
	archive     string
	history     []Sample
	consecutive int
	stopped     bool
	total       int
	started     time.Time
}

// Tracker manages independent batches keyed by opaque ids so multiple
// archives can run breakers concurrently within one process. All mutations
// serialize through a single mutex; no method blocks on external tools.
type Tracker struct {
	mu        sync.Mutex
	batches   map[string]*batch
	blacklist Blacklister
	logger    *slog.Logger
	now       func() time.Time
}

// NewTracker creates a tracker writing trip decisions to the blacklist.
func NewTracker(blacklist Blacklister, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tracker{
		batches:   make(map[string]*batch),
		blacklist: blacklist,
		logger:    logging.NewComponentLogger(logger, "breaker"),
		now:       time.Now,
	}
}

// StartBatch opens a new batch for archivePath and returns its id.
func (t *Tracker) StartBatch(archivePath string) string {
	id := uuid.NewString()
	t.mu.Lock()
	t.batches[id] = &batch{archive: archivePath, started: t.now()}
	t.mu.Unlock()
	return id
}

// Record feeds one conversion outcome into the batch. It returns whether
// dispatching further work is still worthwhile, plus the computed reduction
// ratio in percent. Ratio is 0 when originalSize is not positive. A run of
// consecutiveThreshold outcomes below ratioThreshold trips the batch: the
// stop flag latches and the archive is blacklisted, both exactly once.
// Unknown batch ids fail open so a late completion never wedges a worker.
func (t *Tracker) Record(batchID, filename string, originalSize, newSize int64, consecutiveThreshold int, ratioThreshold float64) (bool, float64) {
	ratio := Ratio(originalSize, newSize)

	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.batches[batchID]
	if !ok {
		return true, ratio
	}

	b.total++
	b.history = append(b.history, Sample{Filename: filename, Ratio: ratio, Timestamp: t.now()})
	if len(b.history) > historyCap {
		b.history = b.history[1:]
	}

	if ratio < ratioThreshold {
		b.consecutive++
	} else {
		b.consecutive = 0
	}

	if !b.stopped && consecutiveThreshold > 0 && b.consecutive >= consecutiveThreshold {
		b.stopped = true
		t.logger.Warn("compression ineffective, stopping batch",
			logging.String(logging.FieldArchive, b.archive),
			logging.String(logging.FieldBatchID, batchID),
			logging.Int("consecutive", b.consecutive))
		if t.blacklist != nil {
			if err := t.blacklist.Add(b.archive); err != nil {
				t.logger.Warn("blacklist update failed",
					logging.String(logging.FieldArchive, b.archive), logging.Error(err))
			}
		}
	}
	return !b.stopped, ratio
}

// ShouldStop reports whether the batch has tripped. Unknown ids report false.
func (t *Tracker) ShouldStop(batchID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.batches[batchID]
	return ok && b.stopped
}

// BatchStats returns a snapshot of the batch for diagnostics.
func (t *Tracker) BatchStats(batchID string) (Stats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.batches[batchID]
	if !ok {
		return Stats{}, fmt.Errorf("unknown batch %s", batchID)
	}
	recent := make([]Sample, len(b.history))
	copy(recent, b.history)
	return Stats{
		Archive:             b.archive,
		Total:               b.total,
		ConsecutiveNegative: b.consecutive,
		Stopped:             b.stopped,
		Elapsed:             t.now().Sub(b.started),
		Recent:              recent,
	}, nil
}

// CleanupBatch drops the batch's state. Safe to call for unknown ids.
func (t *Tracker) CleanupBatch(batchID string) {
	t.mu.Lock()
	delete(t.batches, batchID)
	t.mu.Unlock()
}

// Ratio computes the size reduction in percent. Not positive original sizes
// yield 0 rather than a division error.
func Ratio(originalSize, newSize int64) float64 {
	if originalSize <= 0 {
		return 0
	}
	return float64(originalSize-newSize) / float64(originalSize) * 100
}
