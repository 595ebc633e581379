package record

import (
	"archive/zip"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"picshrink/internal/config"
)

// Fingerprint identifies a run's configuration for idempotency checks. A
// record matches the current run iff all four fields compare equal.
type Fingerprint struct {
	TargetFormat string `json:"target_format"`
	Quality      int    `json:"quality"`
	Lossless     bool   `json:"lossless"`
	MinWidth     int    `json:"min_width"`
}

// Stats summarizes one pipeline pass over an archive.
type Stats struct {
	ProcessedImages int     `json:"processed_images"`
	SkippedImages   int     `json:"skipped_images"`
	OriginalSizeMB  float64 `json:"original_size_mb"`
	ConvertedSizeMB float64 `json:"converted_size_mb"`
	ProcessingTime  float64 `json:"processing_time"`
}

// Record is the JSON document stored inside a processed archive.
type Record struct {
	Timestamp        time.Time   `json:"timestamp"`
	Filename         string      `json:"filename"`
	Config           Fingerprint `json:"config"`
	Stats            Stats       `json:"stats"`
	CompressionRatio float64     `json:"compression_ratio"`
}

// FingerprintFrom extracts the fingerprint of a run config.
func FingerprintFrom(cfg config.RunConfig) Fingerprint {
	return Fingerprint{
		TargetFormat: cfg.TargetFormat,
		Quality:      cfg.Quality,
		Lossless:     cfg.Lossless,
		MinWidth:     cfg.MinWidth,
	}
}

// Matches reports whether the record was produced by a run with the given
// config.
func (r *Record) Matches(cfg config.RunConfig) bool {
	return r.Config == FingerprintFrom(cfg)
}

// Name returns the record's in-archive file name for archivePath, derived
// deterministically from the archive's base name.
func Name(archivePath string) string {
	sum := md5.Sum([]byte(filepath.Base(archivePath)))
	return hex.EncodeToString(sum[:]) + ".convert"
}

// WriteTo stores the record in dir under the name derived from archivePath,
// so packing dir embeds it in the resulting archive.
func (r *Record) WriteTo(dir, archivePath string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	path := filepath.Join(dir, Name(archivePath))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// ReadFromArchive looks for the record inside the archive without extracting
// it. It returns (nil, nil) when the archive carries no record; read or
// decode failures are returned so the caller can decide to proceed anyway.
func ReadFromArchive(archivePath string) (*Record, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	want := Name(archivePath)
	for _, entry := range reader.File {
		if filepath.Base(entry.Name) != want {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("open record entry: %w", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read record entry: %w", err)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		return &rec, nil
	}
	return nil, nil
}
