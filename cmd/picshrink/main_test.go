package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"picshrink/internal/perf"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	out, err := execute(t, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	target := filepath.Join(home, ".config", "picshrink", "config.toml")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	// A second init without --overwrite refuses.
	if _, err := execute(t, "config", "init"); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, err := execute(t, "config", "init", "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateWithDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	out, err := execute(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestBlacklistAddShowClear(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if out, err := execute(t, "blacklist", "add", "/data/bad.zip"); err != nil {
		t.Fatalf("blacklist add: %v\n%s", err, out)
	}
	out, err := execute(t, "blacklist", "show")
	if err != nil {
		t.Fatalf("blacklist show: %v", err)
	}
	if !strings.Contains(out, "bad.zip") {
		t.Fatalf("entry missing from output: %s", out)
	}
	if _, err := execute(t, "blacklist", "clear"); err != nil {
		t.Fatalf("blacklist clear: %v", err)
	}
	out, err = execute(t, "blacklist", "show")
	if err != nil {
		t.Fatalf("blacklist show: %v", err)
	}
	if !strings.Contains(out, "empty") {
		t.Fatalf("expected empty blacklist, got: %s", out)
	}
}

// seedWorker writes a live worker entry into the default performance store,
// standing in for a separately launched run/watch process.
func seedWorker(t *testing.T, home, pid string) *perf.Coordinator {
	t.Helper()
	path := filepath.Join(home, ".local", "share", "picshrink", "performance.json")
	coord, err := perf.NewCoordinator(path, 4, 2, nil, perf.WithProcessID(pid))
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	if err := coord.SetPaused(false); err != nil {
		t.Fatalf("seed worker entry: %v", err)
	}
	return coord
}

func TestPerfPauseReachesWorker(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	worker := seedWorker(t, home, "4242")

	if out, err := execute(t, "perf", "pause"); err != nil {
		t.Fatalf("perf pause: %v\n%s", err, out)
	}
	if !worker.IsPaused() {
		t.Fatal("worker entry not paused by the CLI")
	}
	out, err := execute(t, "perf", "show")
	if err != nil {
		t.Fatalf("perf show: %v", err)
	}
	if !strings.Contains(out, "4242") || !strings.Contains(out, "yes") {
		t.Fatalf("expected the paused worker entry: %s", out)
	}
	if out, err := execute(t, "perf", "resume"); err != nil {
		t.Fatalf("perf resume: %v\n%s", err, out)
	}
	if worker.IsPaused() {
		t.Fatal("worker entry still paused after resume")
	}
}

func TestPerfPauseTargetsPid(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	first := seedWorker(t, home, "4242")
	second := seedWorker(t, home, "5353")

	if out, err := execute(t, "perf", "pause", "--pid", "4242"); err != nil {
		t.Fatalf("perf pause --pid: %v\n%s", err, out)
	}
	if !first.IsPaused() {
		t.Fatal("targeted worker not paused")
	}
	if second.IsPaused() {
		t.Fatal("untargeted worker paused")
	}
	if _, err := execute(t, "perf", "pause", "--pid", "9999"); err == nil {
		t.Fatal("expected error for a pid with no live entry")
	}
}

func TestPerfPauseWithoutWorkers(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	out, err := execute(t, "perf", "pause")
	if err != nil {
		t.Fatalf("perf pause: %v\n%s", err, out)
	}
	if !strings.Contains(out, "No live entries") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestPerfThreadsClamped(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	worker := seedWorker(t, home, "4242")

	out, err := execute(t, "perf", "threads", "99")
	if err != nil {
		t.Fatalf("perf threads: %v\n%s", err, out)
	}
	if !strings.Contains(out, "16") {
		t.Fatalf("expected clamp to 16: %s", out)
	}
	if got := worker.ThreadCount(); got != 16 {
		t.Fatalf("worker ThreadCount = %d, want 16", got)
	}
}

func TestRunRequiresPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, err := execute(t, "run"); err == nil {
		t.Fatal("expected usage error without a path")
	}
}
