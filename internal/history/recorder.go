package history

import (
	"context"
	"fmt"

	"picshrink/internal/workflow"
)

// RunRecorder adapts the store to the workflow's history hook, stamping
// each run with the active conversion settings.
type RunRecorder struct {
	store        *Store
	targetFormat string
	quality      int
}

// NewRunRecorder builds the adapter.
func NewRunRecorder(store *Store, targetFormat string, quality int) *RunRecorder {
	return &RunRecorder{store: store, targetFormat: targetFormat, quality: quality}
}

// RecordRunSummary persists the run row and its per-archive outcomes.
func (r *RunRecorder) RecordRunSummary(ctx context.Context, summary workflow.Summary) error {
	runID, err := r.store.RecordRun(ctx, Run{
		StartedAt:    summary.StartedAt,
		FinishedAt:   summary.FinishedAt,
		Root:         summary.Root,
		TargetFormat: r.targetFormat,
		Quality:      r.quality,
		Candidates:   summary.Candidates,
		Converted:    summary.Converted,
		Preserved:    summary.Preserved,
		Skipped:      summary.Skipped,
		Aborted:      summary.Aborted,
		Failed:       summary.Failed,
		BytesSaved:   summary.BytesSaved,
	})
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	for _, res := range summary.Results {
		if err := r.store.RecordArchive(ctx, runID, res); err != nil {
			return fmt.Errorf("record archive outcome: %w", err)
		}
	}
	return nil
}
