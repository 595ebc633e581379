package blacklist

import (
	"os"
	"path/filepath"
	"testing"

	"picshrink/internal/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "blacklist.json"), logging.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestAddIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	target := filepath.Join(t.TempDir(), "bad.zip")

	if err := store.Add(target); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Add(target); err != nil {
		t.Fatalf("Add second time: %v", err)
	}
	if got := store.All(); len(got) != 1 {
		t.Fatalf("expected one entry, got %v", got)
	}
	if !store.Contains(target) {
		t.Fatal("expected Contains to report the entry")
	}
}

func TestContainsResolvesRelativePaths(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "book.zip")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Add(target); err != nil {
		t.Fatalf("Add: %v", err)
	}

	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer os.Chdir(old)

	if !store.Contains("book.zip") {
		t.Fatal("expected relative lookup to resolve to the stored entry")
	}
}

func TestCorruptStoreFailsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.json")
	if err := os.WriteFile(path, []byte("broken["), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store, err := NewStore(path, logging.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if store.Contains("/anything.zip") {
		t.Fatal("corrupt store must not report membership")
	}
	// Adds recover the store.
	if err := store.Add("/data/a.zip"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(store.All()) != 1 {
		t.Fatalf("expected one entry, got %v", store.All())
	}
}

func TestClear(t *testing.T) {
	store := newTestStore(t)
	if err := store.Add("/data/a.zip"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := store.All(); len(got) != 0 {
		t.Fatalf("expected empty blacklist, got %v", got)
	}
}
