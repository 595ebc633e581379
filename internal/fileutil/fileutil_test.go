package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCopyFilePreservesContentAndMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(src, []byte("payload"), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("content = %q", data)
	}
	info, _ := os.Stat(dst)
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v", info.Mode().Perm())
	}
}

func TestCopyFileRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFile(dir, filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected error copying a directory")
	}
}

func TestRemoveWithRetryMissingFileIsNoop(t *testing.T) {
	if err := RemoveWithRetry(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Fatalf("RemoveWithRetry: %v", err)
	}
}

func TestRemoveWithRetryDeletes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := RemoveWithRetry(path); err != nil {
		t.Fatalf("RemoveWithRetry: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file still present: %v", err)
	}
}

func TestFreeSpaceNonZero(t *testing.T) {
	free, err := FreeSpace(t.TempDir())
	if err != nil {
		t.Fatalf("FreeSpace: %v", err)
	}
	if free == 0 {
		t.Fatal("expected nonzero free space")
	}
}

func TestCheckWritable(t *testing.T) {
	if err := CheckWritable(t.TempDir()); err != nil {
		t.Fatalf("CheckWritable: %v", err)
	}
}

func TestUniqueTempDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "book.zip")
	dir, err := UniqueTempDir(base, "temp_book")
	if err != nil {
		t.Fatalf("UniqueTempDir: %v", err)
	}
	if filepath.Dir(dir) != filepath.Dir(base) {
		t.Fatalf("work dir not beside base: %s", dir)
	}
	if !strings.HasPrefix(filepath.Base(dir), "temp_book_") {
		t.Fatalf("unexpected name: %s", dir)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("work dir missing: %v", err)
	}
}
