package pipeline

import "time"

// Outcome classifies how one archive pass ended.
type Outcome string

const (
	// OutcomeConverted means the original was replaced by a smaller archive.
	OutcomeConverted Outcome = "converted"
	// OutcomePreserved means conversion ran but the saving was below the
	// replace threshold, so the original stayed in place.
	OutcomePreserved Outcome = "preserved"
	// OutcomeSkipped means validation bypassed the archive entirely.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeAborted means the circuit breaker stopped the batch.
	OutcomeAborted Outcome = "aborted"
	// OutcomeFailed means a terminal error ended the pass.
	OutcomeFailed Outcome = "failed"
)

// Result summarizes one archive pass.
type Result struct {
	Archive      string
	Outcome      Outcome
	Reason       string
	Processed    int
	Skipped      int
	Failed       int
	OriginalSize int64
	NewSize      int64
	Ratio        float64
	Replaced     bool
	Elapsed      time.Duration
	Err          error
}
