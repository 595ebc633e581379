// Package workflow ties the stages together: discover candidate archives,
// prescan them, run each survivor through the pipeline, and summarize. The
// watch mode repeats this as a cancellable loop with progressive backoff.
package workflow
