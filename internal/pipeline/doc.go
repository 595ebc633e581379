// Package pipeline drives one archive end to end: validate, back up,
// extract, convert images across a coordinator-sized worker pool, record,
// repack, and conditionally replace the original with rollback on failure.
package pipeline
