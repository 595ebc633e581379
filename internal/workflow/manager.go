package workflow

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"picshrink/internal/logging"
	"picshrink/internal/pipeline"
	"picshrink/internal/prescan"
)

var candidateExtensions = map[string]struct{}{
	".zip": {},
	".cbz": {},
	".cbr": {},
}

// Processor runs one archive through the conversion pipeline.
type Processor interface {
	Process(ctx context.Context, archivePath string) pipeline.Result
}

// Prescanner screens candidates before extraction.
type Prescanner interface {
	Run(ctx context.Context, candidates []string, workers int) prescan.Result
}

// Coordinator supplies the live pool and batch sizing.
type Coordinator interface {
	ThreadCount() int
	BatchSize() int
}

// Historian persists run outcomes. May be nil to disable history.
type Historian interface {
	RecordRunSummary(ctx context.Context, summary Summary) error
}

// Summary aggregates one run over a candidate set.
type Summary struct {
	RunID          string
	Root           string
	StartedAt      time.Time
	FinishedAt     time.Time
	Candidates     int
	PrescanSkipped map[prescan.Reason]int
	Converted      int
	Preserved      int
	Skipped        int
	Aborted        int
	Failed         int
	BytesSaved     int64
	Results        []pipeline.Result
}

// Manager owns one conversion workflow.
type Manager struct {
	filter  Prescanner
	proc    Processor
	coord   Coordinator
	hist    Historian
	logger  *slog.Logger
	now     func() time.Time
	sleepFn func(ctx context.Context, d time.Duration) bool
}

// NewManager wires the workflow stages.
func NewManager(filter Prescanner, proc Processor, coord Coordinator, hist Historian, logger *slog.Logger) (*Manager, error) {
	if filter == nil {
		return nil, fmt.Errorf("prescan filter required")
	}
	if proc == nil {
		return nil, fmt.Errorf("processor required")
	}
	if coord == nil {
		return nil, fmt.Errorf("coordinator required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		filter: filter,
		proc:   proc,
		coord:  coord,
		hist:   hist,
		logger: logging.NewComponentLogger(logger, "workflow"),
		now:    time.Now,
		sleepFn: func(ctx context.Context, d time.Duration) bool {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(d):
				return true
			}
		},
	}, nil
}

// RunOnce discovers, prescans, and processes every candidate under root.
func (m *Manager) RunOnce(ctx context.Context, root string) (Summary, error) {
	return m.run(ctx, root, 0)
}

// run processes up to maxArchives survivors (0 means all).
func (m *Manager) run(ctx context.Context, root string, maxArchives int) (Summary, error) {
	summary := Summary{
		RunID:     uuid.NewString(),
		Root:      root,
		StartedAt: m.now(),
	}
	candidates, err := CollectCandidates(root)
	if err != nil {
		return summary, err
	}
	summary.Candidates = len(candidates)
	if len(candidates) == 0 {
		summary.FinishedAt = m.now()
		return summary, nil
	}

	workers := m.coord.ThreadCount()
	if workers < 1 {
		workers = 1
	}
	scanned := m.filter.Run(ctx, candidates, workers)
	summary.PrescanSkipped = scanned.Counts
	m.logger.Info("prescan complete",
		logging.String(logging.FieldRunID, summary.RunID),
		logging.Int("candidates", len(candidates)),
		logging.Int("kept", len(scanned.Kept)))

	work := scanned.Kept
	if maxArchives > 0 && len(work) > maxArchives {
		work = work[:maxArchives]
	}

	for _, archive := range work {
		if ctx.Err() != nil {
			break
		}
		res := m.proc.Process(ctx, archive)
		summary.Results = append(summary.Results, res)
		switch res.Outcome {
		case pipeline.OutcomeConverted:
			summary.Converted++
			summary.BytesSaved += res.OriginalSize - res.NewSize
		case pipeline.OutcomePreserved:
			summary.Preserved++
		case pipeline.OutcomeSkipped:
			summary.Skipped++
		case pipeline.OutcomeAborted:
			summary.Aborted++
		case pipeline.OutcomeFailed:
			summary.Failed++
		}
	}
	summary.FinishedAt = m.now()

	if m.hist != nil {
		if err := m.hist.RecordRunSummary(ctx, summary); err != nil {
			m.logger.Warn("history write failed", logging.Error(err))
		}
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldRunID, summary.RunID),
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("converted", summary.Converted),
		logging.Int("preserved", summary.Preserved),
		logging.Int("skipped", summary.Skipped),
		logging.Int("aborted", summary.Aborted),
		logging.Int("failed", summary.Failed),
		logging.Int64("bytes_saved", summary.BytesSaved),
	}
	if summary.Failed > 0 {
		attrs = append(attrs,
			logging.String(logging.FieldErrorHint, "inspect the archive_failed entries above"))
		m.logger.Warn("run complete", logging.Args(attrs...)...)
	} else {
		m.logger.Info("run complete", logging.Args(attrs...)...)
	}
	return summary, ctx.Err()
}

// Watch repeats batched runs over root until ctx is cancelled. Each round
// processes at most the coordinator's batch size; the pause between rounds
// grows one minute per idle round, capped at interval.
func (m *Manager) Watch(ctx context.Context, root string, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	round := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		summary, err := m.run(ctx, root, m.coord.BatchSize())
		if err != nil && ctx.Err() == nil {
			m.logger.Error("watch round failed", logging.Error(err))
		}
		if len(summary.Results) > 0 {
			// Work happened; look again soon.
			round = 0
		}
		round++
		wait := time.Duration(round) * time.Minute
		if wait > interval {
			wait = interval
		}
		m.logger.Debug("watch sleeping", logging.Duration("wait", wait))
		if !m.sleepFn(ctx, wait) {
			return ctx.Err()
		}
	}
}

// CollectCandidates expands root into a sorted list of archive paths. A
// root that is itself an archive yields a single-element list. Leftover
// work artifacts (.bak, .new, temp_ directories) are excluded.
func CollectCandidates(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		if _, ok := candidateExtensions[strings.ToLower(filepath.Ext(root))]; !ok {
			return nil, fmt.Errorf("unsupported archive %s", root)
		}
		return []string{root}, nil
	}

	var candidates []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), "temp_") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, ".bak") || strings.HasSuffix(name, ".new") {
			return nil
		}
		if _, ok := candidateExtensions[strings.ToLower(filepath.Ext(name))]; ok {
			candidates = append(candidates, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(candidates)
	return candidates, nil
}
