package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"picshrink/internal/logging"
	"picshrink/internal/services/imgenc"
)

type convertStats struct {
	processed      int
	skipped        int
	failed         int
	originalBytes  int64
	convertedBytes int64
}

type encodeOutcome struct {
	input  string
	result imgenc.Result
	err    error
}

// convertAll fans the extracted images out across a worker pool whose size
// tracks the coordinator on every dispatch, so a live operator change takes
// effect without restarting the archive. Each completed encode feeds the
// circuit breaker; a stop verdict halts new dispatch but in-flight encodes
// run to completion. Returns aborted=true when the breaker tripped.
func (p *Pipeline) convertAll(ctx context.Context, archivePath, workDir string) (convertStats, bool, error) {
	var stats convertStats
	images, err := collectFiles(workDir)
	if err != nil {
		return stats, false, err
	}

	batchID := ""
	if p.tracker != nil && p.breakerCfg.Enabled {
		batchID = p.tracker.StartBatch(archivePath)
		defer p.tracker.CleanupBatch(batchID)
	}

	completions := make(chan encodeOutcome)
	active := 0
	next := 0
	stopped := false

	handle := func(out encodeOutcome) {
		switch {
		case out.err == nil:
			stats.processed++
			stats.originalBytes += out.result.OriginalSize
			stats.convertedBytes += out.result.NewSize
			// The converted file supersedes the original inside the
			// work directory.
			if err := os.Remove(out.input); err != nil {
				p.logger.Warn("original image removal failed",
					logging.String("file", out.input), logging.Error(err))
			}
			if batchID != "" {
				cont, _ := p.tracker.Record(batchID, filepath.Base(out.input),
					out.result.OriginalSize, out.result.NewSize,
					p.breakerCfg.ConsecutiveThreshold, p.breakerCfg.RatioThreshold)
				if !cont {
					stopped = true
				}
			}
		case errors.Is(out.err, imgenc.ErrSkipped):
			stats.skipped++
		default:
			stats.failed++
			p.logger.Warn("image conversion failed",
				logging.String("file", out.input), logging.Error(out.err))
		}
	}

	for next < len(images) || active > 0 {
		if ctx.Err() != nil && active == 0 {
			return stats, false, ctx.Err()
		}
		limit := p.coord.ThreadCount()
		if limit == 0 && !stopped && ctx.Err() == nil {
			// Paused: drain in-flight work, then block on the gate.
			if active > 0 {
				handle(<-completions)
				active--
				continue
			}
			if !p.coord.WaitForResume(ctx, p.poll, 0) {
				return stats, false, ctx.Err()
			}
			continue
		}
		if stopped || ctx.Err() != nil || next >= len(images) || active >= limit {
			if active == 0 {
				break
			}
			handle(<-completions)
			active--
			continue
		}
		input := images[next]
		next++
		active++
		go func() {
			res, err := p.encoder.Encode(ctx, input, p.cfg)
			completions <- encodeOutcome{input: input, result: res, err: err}
		}()
	}

	aborted := stopped || (batchID != "" && p.tracker.ShouldStop(batchID))
	return stats, aborted, nil
}

// collectFiles lists the regular files under dir, sorted for stable
// dispatch order.
func collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
