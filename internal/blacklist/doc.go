// Package blacklist persists the set of archives excluded from processing.
// The store is a JSON array of resolved absolute paths rewritten as a whole
// under an exclusive file lock; membership checks take a shared lock.
package blacklist
