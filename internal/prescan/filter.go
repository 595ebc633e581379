package prescan

import (
	"archive/zip"
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"picshrink/internal/logging"
)

// Reason explains why an archive was excluded.
type Reason string

const (
	// ReasonBlacklist marks archives found in the persisted blacklist.
	ReasonBlacklist Reason = "blacklist"
	// ReasonKeyword marks archives whose name matches an operator keyword.
	ReasonKeyword Reason = "keyword"
	// ReasonContent marks archives whose sampled entries look converted.
	ReasonContent Reason = "content"
)

// Blacklist is the membership check the filter consults first.
type Blacklist interface {
	Contains(archivePath string) bool
}

// Skip pairs an excluded archive with its reason.
type Skip struct {
	Path   string
	Reason Reason
}

// Result is the outcome of one prescan pass. Kept is sorted ascending by
// path so downstream processing order is deterministic.
type Result struct {
	Kept    []string
	Skipped []Skip
	Counts  map[Reason]int
}

// Filter screens candidates concurrently. The checks never block each other
// and an unreadable archive is kept, deferring the decision to the
// pipeline's own validation.
type Filter struct {
	blacklist     Blacklist
	keywords      []string
	skipExts      map[string]struct{}
	sampleEntries int
	logger        *slog.Logger
	fold          cases.Caser
}

// NewFilter builds a prescan filter. Keywords match case-insensitively
// against the archive's resolved absolute path, so a keyword naming a
// directory excludes everything inside it; skipExts name extensions (with
// leading dot) counted as already converted.
func NewFilter(bl Blacklist, keywords, skipExts []string, sampleEntries int, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = logging.NewNop()
	}
	if sampleEntries <= 0 {
		sampleEntries = 10
	}
	fold := cases.Fold()
	folded := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			folded = append(folded, fold.String(kw))
		}
	}
	exts := make(map[string]struct{}, len(skipExts))
	for _, ext := range skipExts {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	return &Filter{
		blacklist:     bl,
		keywords:      folded,
		skipExts:      exts,
		sampleEntries: sampleEntries,
		logger:        logging.NewComponentLogger(logger, "prescan"),
		fold:          fold,
	}
}

// Run screens candidates across a pool of the given size. The partition is
// independent of the pool size; only throughput changes.
func (f *Filter) Run(ctx context.Context, candidates []string, workers int) Result {
	if workers < 1 {
		workers = 1
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}

	type verdict struct {
		path   string
		reason Reason
		keep   bool
	}

	jobs := make(chan string)
	verdicts := make(chan verdict)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				reason, keep := f.check(path)
				select {
				case verdicts <- verdict{path: path, reason: reason, keep: keep}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, path := range candidates {
			select {
			case jobs <- path:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(verdicts)
	}()

	result := Result{Counts: make(map[Reason]int)}
	for v := range verdicts {
		if v.keep {
			result.Kept = append(result.Kept, v.path)
			continue
		}
		result.Skipped = append(result.Skipped, Skip{Path: v.path, Reason: v.reason})
		result.Counts[v.reason]++
		f.logger.Debug("archive excluded",
			logging.String(logging.FieldArchive, v.path),
			logging.String("reason", string(v.reason)))
	}
	sort.Strings(result.Kept)
	sort.Slice(result.Skipped, func(i, j int) bool { return result.Skipped[i].Path < result.Skipped[j].Path })
	return result
}

// check applies the exclusion rules in fixed priority order.
func (f *Filter) check(path string) (Reason, bool) {
	if f.blacklist != nil && f.blacklist.Contains(path) {
		return ReasonBlacklist, false
	}
	if len(f.keywords) > 0 {
		full := f.fold.String(resolve(path))
		for _, kw := range f.keywords {
			if strings.Contains(full, kw) {
				return ReasonKeyword, false
			}
		}
	}
	if f.sampledConverted(path) {
		return ReasonContent, false
	}
	return "", true
}

// resolve absolutizes and follows symlinks so keyword matching sees the
// same path an operator would name. Unresolvable paths fall back to the
// given form.
func resolve(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	}
	return path
}

// sampledConverted peeks at the archive's leading entries. The window is
// counted over raw entries, so directory entries consume sample slots.
// This is a heuristic: large archives are under-sampled and partially
// converted ones can slip through either way.
func (f *Filter) sampledConverted(path string) bool {
	reader, err := zip.OpenReader(path)
	if err != nil {
		// Unreadable archives still get a full pipeline attempt.
		return false
	}
	defer reader.Close()

	entries := reader.File
	if len(entries) > f.sampleEntries {
		entries = entries[:f.sampleEntries]
	}
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name))
		if _, ok := f.skipExts[ext]; ok {
			return true
		}
	}
	return false
}
