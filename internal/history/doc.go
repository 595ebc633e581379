// Package history persists per-run and per-archive results in a local
// sqlite database so operators can review what past runs achieved.
package history
