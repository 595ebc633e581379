// Package sevenzip wraps the 7z command line tool behind the archive surface
// the pipeline depends on: extract, pack, and list.
package sevenzip
