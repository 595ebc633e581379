// Package breaker tracks per-archive compression outcomes and aborts a
// batch after a run of ineffective conversions, persisting the offending
// archive to the blacklist so future runs skip it outright.
package breaker
