package record

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"picshrink/internal/config"
)

func baseConfig() config.RunConfig {
	return config.RunConfig{TargetFormat: "avif", Quality: 90, Lossless: false, MinWidth: -1}
}

func TestNameIsDeterministic(t *testing.T) {
	a := Name("/data/book.zip")
	b := Name("/other/place/book.zip")
	if a != b {
		t.Fatalf("same base name must yield same record name: %s vs %s", a, b)
	}
	if filepath.Ext(a) != ".convert" {
		t.Fatalf("unexpected extension: %s", a)
	}
	if a == Name("/data/other.zip") {
		t.Fatal("different archives must yield different record names")
	}
}

func TestMatchesExactFingerprint(t *testing.T) {
	cfg := baseConfig()
	rec := &Record{Config: FingerprintFrom(cfg)}
	if !rec.Matches(cfg) {
		t.Fatal("identical config must match")
	}

	variants := []config.RunConfig{
		{TargetFormat: "webp", Quality: 90, Lossless: false, MinWidth: -1},
		{TargetFormat: "avif", Quality: 80, Lossless: false, MinWidth: -1},
		{TargetFormat: "avif", Quality: 90, Lossless: true, MinWidth: -1},
		{TargetFormat: "avif", Quality: 90, Lossless: false, MinWidth: 800},
	}
	for i, v := range variants {
		if rec.Matches(v) {
			t.Fatalf("variant %d should not match", i)
		}
	}
}

func writeArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer f.Close()
	w := zip.NewWriter(f)
	for name, body := range files {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
		if _, err := entry.Write([]byte(body)); err != nil {
			t.Fatalf("write entry: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
}

func TestWriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "book.zip")
	work := filepath.Join(dir, "work")
	if err := os.Mkdir(work, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	rec := &Record{
		Timestamp:        time.Now().UTC().Truncate(time.Second),
		Filename:         "book.zip",
		Config:           FingerprintFrom(baseConfig()),
		Stats:            Stats{ProcessedImages: 12, SkippedImages: 2, OriginalSizeMB: 40.5, ConvertedSizeMB: 22.1, ProcessingTime: 31.7},
		CompressionRatio: 45.4,
	}
	if err := rec.WriteTo(work, archive); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	recordBody, err := os.ReadFile(filepath.Join(work, Name(archive)))
	if err != nil {
		t.Fatalf("read record file: %v", err)
	}
	writeArchive(t, archive, map[string]string{
		"page1.avif":    "img",
		Name(archive):   string(recordBody),
		"nested/p.avif": "img",
	})

	got, err := ReadFromArchive(archive)
	if err != nil {
		t.Fatalf("ReadFromArchive: %v", err)
	}
	if got == nil {
		t.Fatal("expected a record")
	}
	if !got.Matches(baseConfig()) {
		t.Fatal("round-tripped record must match its config")
	}
	if got.Stats.ProcessedImages != 12 || got.CompressionRatio != 45.4 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestReadFromArchiveWithoutRecord(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "plain.zip")
	writeArchive(t, archive, map[string]string{"page1.jpg": "img"})

	got, err := ReadFromArchive(archive)
	if err != nil {
		t.Fatalf("ReadFromArchive: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no record, got %+v", got)
	}
}

func TestReadFromCorruptArchive(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "broken.zip")
	if err := os.WriteFile(archive, []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadFromArchive(archive); err == nil {
		t.Fatal("expected error for corrupt archive")
	}
}
