package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"picshrink/internal/breaker"
	"picshrink/internal/config"
	"picshrink/internal/fileutil"
	"picshrink/internal/logging"
	"picshrink/internal/record"
	"picshrink/internal/services"
	"picshrink/internal/services/imgenc"
	"picshrink/internal/services/sevenzip"
)

const (
	// replaceMinPct and replaceMinBytes form the OR replace policy: keep
	// the new archive when either threshold is beaten.
	replaceMinPct   = 0.5
	replaceMinBytes = 1 << 20
)

var supportedExtensions = map[string]struct{}{
	".zip": {},
	".cbz": {},
	".cbr": {},
}

// Coordinator is the throttling surface the pipeline consults while
// converting.
type Coordinator interface {
	ThreadCount() int
	IsPaused() bool
	WaitForResume(ctx context.Context, pollInterval, timeout time.Duration) bool
}

// Pipeline processes archives one at a time.
type Pipeline struct {
	cfg        config.RunConfig
	breakerCfg config.Breaker
	archiver   sevenzip.Archiver
	encoder    imgenc.Encoder
	coord      Coordinator
	tracker    *breaker.Tracker
	logger     *slog.Logger
	poll       time.Duration
	now        func() time.Time

	// Injectable file operations so replace failures are testable.
	removeFile func(string) error
	rename     func(oldPath, newPath string) error
}

// New builds a pipeline. All collaborators are required except tracker,
// which may be nil to disable the circuit breaker.
func New(cfg config.RunConfig, breakerCfg config.Breaker, archiver sevenzip.Archiver, encoder imgenc.Encoder, coord Coordinator, tracker *breaker.Tracker, poll time.Duration, logger *slog.Logger) (*Pipeline, error) {
	if archiver == nil {
		return nil, fmt.Errorf("archiver required")
	}
	if encoder == nil {
		return nil, fmt.Errorf("encoder required")
	}
	if coord == nil {
		return nil, fmt.Errorf("coordinator required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	return &Pipeline{
		cfg:        cfg,
		breakerCfg: breakerCfg,
		archiver:   archiver,
		encoder:    encoder,
		coord:      coord,
		tracker:    tracker,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		poll:       poll,
		now:        time.Now,
		removeFile: fileutil.RemoveWithRetry,
		rename:     os.Rename,
	}, nil
}

// Process runs one archive through the full state machine. Errors never
// escape: every failure, including a panic in a collaborator, becomes a
// failed Result so the surrounding run continues.
func (p *Pipeline) Process(ctx context.Context, archivePath string) (result Result) {
	start := p.now()
	result = Result{Archive: archivePath}
	defer func() {
		if r := recover(); r != nil {
			result.Outcome = OutcomeFailed
			result.Err = fmt.Errorf("archive pass panicked: %v", r)
			result.Reason = result.Err.Error()
			p.logger.Error("archive pass panicked",
				logging.String(logging.FieldArchive, archivePath),
				logging.Any("panic", r))
		}
		result.Elapsed = p.now().Sub(start)
	}()

	// Validating.
	if reason, skip := p.validate(archivePath); skip {
		result.Outcome = OutcomeSkipped
		result.Reason = reason
		p.logger.Info("archive skipped",
			logging.String(logging.FieldArchive, archivePath),
			logging.String("reason", reason))
		return result
	}

	// Pause gate before any destructive step.
	if p.coord.IsPaused() {
		p.logger.Info("paused, waiting for resume",
			logging.String(logging.FieldArchive, archivePath))
		if !p.coord.WaitForResume(ctx, p.poll, 0) {
			result.Outcome = OutcomeFailed
			result.Reason = "cancelled while paused"
			result.Err = ctx.Err()
			return result
		}
	}

	originalInfo, err := os.Stat(archivePath)
	if err != nil {
		return p.fail(result, services.Wrap(services.ErrTransient, "pipeline", "stat", archivePath, err))
	}
	result.OriginalSize = originalInfo.Size()

	// Preparing: extraction roughly doubles the footprint, so check space
	// and access next to the archive before touching anything.
	parent := filepath.Dir(archivePath)
	if err := fileutil.CheckWritable(parent); err != nil {
		return p.fail(result, services.Wrap(services.ErrTransient, "pipeline", "preflight", parent, err))
	}
	if free, err := fileutil.FreeSpace(parent); err == nil && free < uint64(result.OriginalSize)*2 {
		return p.fail(result, services.Wrap(services.ErrTransient, "pipeline", "preflight",
			fmt.Sprintf("insufficient free space for %s (%d bytes available)", filepath.Base(archivePath), free), nil))
	}

	base := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	workDir, err := fileutil.UniqueTempDir(archivePath, "temp_"+base)
	if err != nil {
		return p.fail(result, err)
	}
	newPath := archivePath + ".new"
	defer func() {
		// Scoped cleanup: runs on every exit path.
		if err := fileutil.RemoveAllWithRetry(workDir); err != nil {
			p.logger.Warn("work directory cleanup failed", logging.Error(err))
		}
		if err := fileutil.RemoveWithRetry(newPath); err != nil {
			p.logger.Warn("staging archive cleanup failed", logging.Error(err))
		}
	}()

	backupPath := archivePath + ".bak"
	if err := fileutil.CopyFile(archivePath, backupPath); err != nil {
		return p.fail(result, fmt.Errorf("create backup: %w", err))
	}

	// Extracting: terminal on failure, original untouched.
	if err := p.archiver.Extract(ctx, archivePath, workDir); err != nil {
		p.discardBackup(backupPath)
		return p.fail(result, err)
	}

	// Converting.
	stats, aborted, err := p.convertAll(ctx, archivePath, workDir)
	result.Processed = stats.processed
	result.Skipped = stats.skipped
	result.Failed = stats.failed
	if err != nil {
		p.discardBackup(backupPath)
		return p.fail(result, err)
	}
	if aborted {
		p.discardBackup(backupPath)
		result.Outcome = OutcomeAborted
		result.Reason = "compression ineffective, batch stopped"
		result.Err = services.Wrap(services.ErrBreakerAbort, "pipeline", "convert", archivePath, nil)
		return result
	}

	// Recording: the record travels inside the packed archive.
	elapsed := p.now().Sub(start)
	rec := &record.Record{
		Timestamp: p.now().UTC(),
		Filename:  filepath.Base(archivePath),
		Config:    record.FingerprintFrom(p.cfg),
		Stats: record.Stats{
			ProcessedImages: stats.processed,
			SkippedImages:   stats.skipped,
			OriginalSizeMB:  toMB(stats.originalBytes),
			ConvertedSizeMB: toMB(stats.convertedBytes),
			ProcessingTime:  elapsed.Seconds(),
		},
		CompressionRatio: breaker.Ratio(stats.originalBytes, stats.convertedBytes),
	}
	if err := rec.WriteTo(workDir, archivePath); err != nil {
		p.discardBackup(backupPath)
		return p.fail(result, err)
	}

	// Packing: terminal on failure.
	if err := p.archiver.Pack(ctx, workDir, newPath); err != nil {
		p.discardBackup(backupPath)
		return p.fail(result, err)
	}

	newInfo, err := os.Stat(newPath)
	if err != nil {
		p.discardBackup(backupPath)
		return p.fail(result, services.Wrap(services.ErrPacking, "pipeline", "stat staged archive", newPath, err))
	}
	result.NewSize = newInfo.Size()
	result.Ratio = breaker.Ratio(result.OriginalSize, result.NewSize)

	// Replacing.
	if !ShouldReplace(result.OriginalSize, result.NewSize) {
		p.discardBackup(backupPath)
		result.Outcome = OutcomePreserved
		result.Reason = "saving below replace threshold"
		p.logger.Info("original preserved",
			logging.String(logging.FieldArchive, archivePath),
			logging.Float64("ratio_pct", result.Ratio))
		return result
	}
	if err := p.replace(archivePath, newPath, backupPath); err != nil {
		return p.fail(result, err)
	}

	result.Outcome = OutcomeConverted
	result.Replaced = true
	p.logger.Info("archive converted",
		logging.String(logging.FieldArchive, archivePath),
		logging.String(logging.FieldEventType, "archive_converted"),
		logging.Int("processed", stats.processed),
		logging.Int("skipped", stats.skipped),
		logging.Bool("replaced", result.Replaced),
		logging.Float64("ratio_pct", result.Ratio))
	return result
}

// validate rejects unsupported extensions and archives already converted
// with an identical config fingerprint.
func (p *Pipeline) validate(archivePath string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(archivePath))
	if _, ok := supportedExtensions[ext]; !ok {
		return "unsupported extension " + ext, true
	}
	rec, err := record.ReadFromArchive(archivePath)
	if err != nil {
		// Validation is a gate, not a verdict; the pipeline still tries.
		p.logger.Debug("record peek failed, proceeding",
			logging.String(logging.FieldArchive, archivePath), logging.Error(err))
		return "", false
	}
	if rec != nil && rec.Matches(p.cfg) {
		return "already converted with identical settings", true
	}
	return "", false
}

// replace swaps the original for the staged archive: delete original, move
// the staged file into place (cbr containers become zip), then drop the
// backup. Any failure restores the backup before reporting.
func (p *Pipeline) replace(archivePath, newPath, backupPath string) error {
	finalPath := archivePath
	if strings.EqualFold(filepath.Ext(archivePath), ".cbr") {
		finalPath = strings.TrimSuffix(archivePath, filepath.Ext(archivePath)) + ".zip"
	}
	if err := p.removeFile(archivePath); err != nil {
		p.restoreBackup(backupPath, archivePath)
		return services.Wrap(services.ErrReplace, "pipeline", "delete original", archivePath, err)
	}
	if err := p.rename(newPath, finalPath); err != nil {
		p.restoreBackup(backupPath, archivePath)
		return services.Wrap(services.ErrReplace, "pipeline", "move staged archive", finalPath, err)
	}
	p.discardBackup(backupPath)
	return nil
}

// restoreBackup puts the original back after a failed replace. The backup
// is kept on disk if even the restore fails, preserving a recovery path.
func (p *Pipeline) restoreBackup(backupPath, archivePath string) {
	if _, err := os.Stat(archivePath); err == nil {
		// Original still present; nothing to restore.
		p.discardBackup(backupPath)
		return
	}
	if err := p.rename(backupPath, archivePath); err != nil {
		p.logger.Error("backup restore failed, backup left in place",
			logging.String(logging.FieldArchive, archivePath),
			logging.String("backup", backupPath),
			logging.String(logging.FieldErrorHint, "rename the .bak file back over the original"),
			logging.Error(err))
		return
	}
	p.logger.Warn("original restored from backup",
		logging.String(logging.FieldArchive, archivePath))
}

func (p *Pipeline) discardBackup(backupPath string) {
	if err := fileutil.RemoveWithRetry(backupPath); err != nil {
		p.logger.Warn("backup cleanup failed",
			logging.String("backup", backupPath), logging.Error(err))
	}
}

func (p *Pipeline) fail(result Result, err error) Result {
	result.Outcome = OutcomeFailed
	result.Err = err
	result.Reason = err.Error()
	p.logger.Error("archive pass failed",
		logging.String(logging.FieldArchive, result.Archive),
		logging.String(logging.FieldEventType, "archive_failed"),
		logging.Error(err))
	return result
}

// ShouldReplace applies the OR policy: replace when the saving exceeds
// half a percent or a full MiB.
func ShouldReplace(originalSize, newSize int64) bool {
	if originalSize <= 0 {
		return false
	}
	reduction := originalSize - newSize
	pct := float64(reduction) / float64(originalSize) * 100
	return pct > replaceMinPct || reduction > replaceMinBytes
}

func toMB(bytes int64) float64 {
	return float64(bytes) / (1 << 20)
}
