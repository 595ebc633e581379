// Package record reads and writes the conversion record embedded in each
// processed archive. The record carries the run's config fingerprint so a
// re-run with identical settings can skip the archive without extracting it.
package record
