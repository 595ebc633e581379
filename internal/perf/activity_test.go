package perf

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileActivitySource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stamp := time.Now().Add(-3 * time.Minute)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	source := FileActivitySource{Path: path}
	last, err := source.LastActivity()
	if err != nil {
		t.Fatalf("LastActivity: %v", err)
	}
	if diff := last.Sub(stamp); diff < -time.Second || diff > time.Second {
		t.Fatalf("last = %v, want about %v", last, stamp)
	}

	if _, err := (FileActivitySource{Path: path + ".missing"}).LastActivity(); err == nil {
		t.Fatal("expected error for missing file")
	}
}
