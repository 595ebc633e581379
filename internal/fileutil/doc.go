// Package fileutil provides the small filesystem helpers shared across the
// pipeline: copies, retried removal, and preflight space and access checks.
package fileutil
