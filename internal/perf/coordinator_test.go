package perf

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"picshrink/internal/logging"
)

func newTestCoordinator(t *testing.T, opts ...Option) *Coordinator {
	t.Helper()
	path := filepath.Join(t.TempDir(), "performance.json")
	coord, err := NewCoordinator(path, 2, 5, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	return coord
}

func TestDefaultsWhenStoreMissing(t *testing.T) {
	coord := newTestCoordinator(t)
	if got := coord.ThreadCount(); got != 2 {
		t.Fatalf("ThreadCount = %d, want 2", got)
	}
	if got := coord.BatchSize(); got != 5 {
		t.Fatalf("BatchSize = %d, want 5", got)
	}
	if coord.IsPaused() {
		t.Fatal("expected not paused by default")
	}
}

func TestThreadCountClamped(t *testing.T) {
	coord := newTestCoordinator(t)
	if err := coord.SetThreadCount(99); err != nil {
		t.Fatalf("SetThreadCount: %v", err)
	}
	if got := coord.ThreadCount(); got != MaxThreads {
		t.Fatalf("ThreadCount = %d, want %d", got, MaxThreads)
	}
	if err := coord.SetThreadCount(-3); err != nil {
		t.Fatalf("SetThreadCount: %v", err)
	}
	if got := coord.ThreadCount(); got != MinThreads {
		t.Fatalf("ThreadCount = %d, want %d", got, MinThreads)
	}
}

func TestBatchSizeClamped(t *testing.T) {
	coord := newTestCoordinator(t)
	if err := coord.SetBatchSize(500); err != nil {
		t.Fatalf("SetBatchSize: %v", err)
	}
	if got := coord.BatchSize(); got != MaxBatchSize {
		t.Fatalf("BatchSize = %d, want %d", got, MaxBatchSize)
	}
}

func TestPausedThreadCountIsZero(t *testing.T) {
	coord := newTestCoordinator(t)
	if err := coord.SetThreadCount(4); err != nil {
		t.Fatalf("SetThreadCount: %v", err)
	}
	if err := coord.SetPaused(true); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}
	if got := coord.ThreadCount(); got != 0 {
		t.Fatalf("ThreadCount while paused = %d, want 0", got)
	}
	if err := coord.SetPaused(false); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}
	if got := coord.ThreadCount(); got != 4 {
		t.Fatalf("ThreadCount after resume = %d, want 4", got)
	}
}

func TestCorruptStoreFailsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "performance.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt store: %v", err)
	}
	coord, err := NewCoordinator(path, 3, 7, logging.NewNop())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	if got := coord.ThreadCount(); got != 3 {
		t.Fatalf("ThreadCount = %d, want default 3", got)
	}
	// Writing must recover the store.
	if err := coord.SetThreadCount(8); err != nil {
		t.Fatalf("SetThreadCount: %v", err)
	}
	if got := coord.ThreadCount(); got != 8 {
		t.Fatalf("ThreadCount = %d, want 8", got)
	}
}

func TestStaleEntriesPurged(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	coord := newTestCoordinator(t, WithClock(clock), WithProcessID("100"))
	if err := coord.SetThreadCount(6); err != nil {
		t.Fatalf("SetThreadCount: %v", err)
	}

	// A second process writes seven hours later; the first entry expires.
	later := now.Add(7 * time.Hour)
	other, err := NewCoordinator(coord.path, 2, 5, logging.NewNop(),
		WithClock(func() time.Time { return later }), WithProcessID("200"))
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	if err := other.SetThreadCount(3); err != nil {
		t.Fatalf("SetThreadCount: %v", err)
	}

	states := other.States()
	if _, ok := states["100"]; ok {
		t.Fatal("stale entry survived purge")
	}
	if _, ok := states["200"]; !ok {
		t.Fatal("live entry missing")
	}
}

func TestRegisterPublishesEntry(t *testing.T) {
	coord := newTestCoordinator(t, WithProcessID("100"))
	if err := coord.Register(); err != nil {
		t.Fatalf("Register: %v", err)
	}
	s, ok := coord.States()["100"]
	if !ok {
		t.Fatal("entry missing after Register")
	}
	if s.ThreadCount != 2 || s.BatchSize != 5 {
		t.Fatalf("entry = %+v, want defaults 2/5", s)
	}
}

func TestUpdateEntriesReachesOtherProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "performance.json")
	worker, err := NewCoordinator(path, 4, 2, logging.NewNop(), WithProcessID("1111"))
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	// Create the worker's entry the way a running worker would.
	if err := worker.SetThreadCount(4); err != nil {
		t.Fatalf("SetThreadCount: %v", err)
	}
	control, err := NewCoordinator(path, 1, 1, logging.NewNop(), WithProcessID("2222"))
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	// Pausing from the control process must pause the worker, not write a
	// fresh entry for the control pid.
	pids, err := control.UpdateEntries(Pause(true))
	if err != nil {
		t.Fatalf("UpdateEntries: %v", err)
	}
	if len(pids) != 1 || pids[0] != "1111" {
		t.Fatalf("updated pids = %v, want [1111]", pids)
	}
	if !worker.IsPaused() {
		t.Fatal("worker did not observe the pause")
	}
	if _, ok := control.States()["2222"]; ok {
		t.Fatal("control process wrote its own entry")
	}

	if _, err := control.UpdateEntries(Pause(false), "1111"); err != nil {
		t.Fatalf("UpdateEntries: %v", err)
	}
	if _, err := control.UpdateEntries(Threads(99), "1111"); err != nil {
		t.Fatalf("UpdateEntries: %v", err)
	}
	if got := worker.ThreadCount(); got != MaxThreads {
		t.Fatalf("worker ThreadCount = %d, want %d", got, MaxThreads)
	}
}

func TestUpdateEntriesUnknownPid(t *testing.T) {
	coord := newTestCoordinator(t)
	if _, err := coord.UpdateEntries(Pause(true), "9999"); err == nil {
		t.Fatal("expected error for a pid with no live entry")
	}
}

func TestUpdateEntriesKeepsForeignHeartbeat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "performance.json")
	worker, err := NewCoordinator(path, 2, 2, logging.NewNop(), WithProcessID("1111"))
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	if err := worker.SetPaused(false); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}
	before := worker.States()["1111"].StartTime

	control, err := NewCoordinator(path, 1, 1, logging.NewNop(), WithProcessID("2222"),
		WithClock(func() time.Time { return before.Add(time.Hour) }))
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	if _, err := control.UpdateEntries(Batch(9)); err != nil {
		t.Fatalf("UpdateEntries: %v", err)
	}

	after := worker.States()["1111"]
	if !after.StartTime.Equal(before) {
		t.Fatalf("foreign StartTime refreshed: %v -> %v", before, after.StartTime)
	}
	if after.BatchSize != 9 {
		t.Fatalf("BatchSize = %d, want 9", after.BatchSize)
	}
}

func TestWaitForResumeTimesOut(t *testing.T) {
	coord := newTestCoordinator(t)
	if err := coord.SetPaused(true); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}
	start := time.Now()
	resumed := coord.WaitForResume(context.Background(), 10*time.Millisecond, 50*time.Millisecond)
	if resumed {
		t.Fatal("expected timeout while paused")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("wait took too long: %v", elapsed)
	}
}

func TestWaitForResumeReturnsOnUnpause(t *testing.T) {
	coord := newTestCoordinator(t)
	if err := coord.SetPaused(true); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = coord.SetPaused(false)
	}()
	if !coord.WaitForResume(context.Background(), 10*time.Millisecond, 5*time.Second) {
		t.Fatal("expected resume")
	}
}

func TestWaitForResumeHonorsContext(t *testing.T) {
	coord := newTestCoordinator(t)
	if err := coord.SetPaused(true); err != nil {
		t.Fatalf("SetPaused: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if coord.WaitForResume(ctx, 10*time.Millisecond, 0) {
		t.Fatal("expected cancellation to end the wait")
	}
}
