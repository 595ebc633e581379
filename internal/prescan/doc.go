// Package prescan cheaply screens candidate archives before extraction:
// blacklist membership, operator keywords, and a sampled look at the first
// few entries to spot archives that are already converted.
package prescan
