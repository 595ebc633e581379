// Package perf coordinates soft throttling state across independently
// launched processes through a file-locked JSON store. Each process owns one
// entry keyed by its pid; reads take a shared lock, writes an exclusive one,
// and stale entries are purged opportunistically on access.
package perf
