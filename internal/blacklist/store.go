package blacklist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"

	"picshrink/internal/logging"
)

// Store is the persisted archive blacklist. Entries are resolved absolute
// paths; semantics are append-only (no automatic removal), though an
// operator may clear the whole set.
type Store struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

// NewStore opens the blacklist at path, creating parent directories.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("blacklist path required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create blacklist directory: %w", err)
	}
	return &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logging.NewComponentLogger(logger, "blacklist"),
	}, nil
}

// Add records archivePath, resolving it to an absolute path first. Adding a
// path already present is a no-op.
func (s *Store) Add(archivePath string) error {
	resolved, err := resolve(archivePath)
	if err != nil {
		return err
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire exclusive lock: %w", err)
	}
	defer s.lock.Unlock()

	entries := s.loadLocked()
	if _, ok := entries[resolved]; ok {
		return nil
	}
	entries[resolved] = struct{}{}
	s.logger.Info("archive blacklisted", logging.String(logging.FieldArchive, resolved))
	return s.saveLocked(entries)
}

// Contains reports whether archivePath is blacklisted. Read failures fail
// open: an unreadable store never blocks processing.
func (s *Store) Contains(archivePath string) bool {
	resolved, err := resolve(archivePath)
	if err != nil {
		return false
	}
	if err := s.lock.RLock(); err != nil {
		s.logger.Warn("blacklist read lock failed", logging.Error(err))
		return false
	}
	defer s.lock.Unlock()
	_, ok := s.loadLocked()[resolved]
	return ok
}

// All returns every blacklisted path, sorted.
func (s *Store) All() []string {
	if err := s.lock.RLock(); err != nil {
		s.logger.Warn("blacklist read lock failed", logging.Error(err))
		return nil
	}
	defer s.lock.Unlock()
	entries := s.loadLocked()
	out := make([]string, 0, len(entries))
	for path := range entries {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Clear removes every entry. Operator action only.
func (s *Store) Clear() error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire exclusive lock: %w", err)
	}
	defer s.lock.Unlock()
	return s.saveLocked(map[string]struct{}{})
}

// loadLocked reads the store. Missing or corrupt data is treated as empty.
func (s *Store) loadLocked() map[string]struct{} {
	entries := map[string]struct{}{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("blacklist unreadable, treating as empty",
				logging.String("path", s.path), logging.Error(err))
		}
		return entries
	}
	var paths []string
	if err := json.Unmarshal(data, &paths); err != nil {
		s.logger.Warn("blacklist corrupt, treating as empty",
			logging.String("path", s.path), logging.Error(err))
		return entries
	}
	for _, p := range paths {
		entries[p] = struct{}{}
	}
	return entries
}

func (s *Store) saveLocked(entries map[string]struct{}) error {
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	data, err := json.MarshalIndent(paths, "", "  ")
	if err != nil {
		return fmt.Errorf("encode blacklist: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write blacklist: %w", err)
	}
	return nil
}

func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}
	// The file may already be gone; the absolute path still identifies it.
	return abs, nil
}
