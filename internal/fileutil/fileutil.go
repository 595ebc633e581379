package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// CopyFile copies src to dst, preserving the source file mode. The parent
// directory of dst must already exist.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("copy source %s is not a regular file", src)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy data: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("close destination: %w", err)
	}
	return nil
}

// RemoveWithRetry removes path, retrying once after a short pause and
// finally attempting a permission fix before the last try. Transient locks
// from scanners and sync tools clear within the pause on most systems.
func RemoveWithRetry(path string) error {
	if err := os.Remove(path); err == nil || os.IsNotExist(err) {
		return nil
	}
	time.Sleep(500 * time.Millisecond)
	if err := os.Remove(path); err == nil || os.IsNotExist(err) {
		return nil
	}
	_ = os.Chmod(path, 0o644)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// RemoveAllWithRetry removes a directory tree, retrying once.
func RemoveAllWithRetry(path string) error {
	if err := os.RemoveAll(path); err == nil {
		return nil
	}
	time.Sleep(500 * time.Millisecond)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove tree %s: %w", path, err)
	}
	return nil
}

// FreeSpace reports the bytes available to unprivileged callers on the
// filesystem holding path.
func FreeSpace(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// CheckWritable verifies the process can write to path.
func CheckWritable(path string) error {
	if err := unix.Access(path, unix.W_OK); err != nil {
		return fmt.Errorf("no write access to %s: %w", path, err)
	}
	return nil
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// UniqueTempDir returns a work directory path beside base using the given
// prefix and a timestamp suffix, creating it on disk.
func UniqueTempDir(base, prefix string) (string, error) {
	dir := filepath.Join(filepath.Dir(base), fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create work directory: %w", err)
	}
	return dir, nil
}
