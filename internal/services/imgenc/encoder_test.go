package imgenc

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"picshrink/internal/config"
)

type fakeExecutor struct {
	binary  string
	args    []string
	err     error
	payload []byte
}

func (f *fakeExecutor) Run(_ context.Context, binary string, args []string) error {
	f.binary = binary
	f.args = args
	if f.err != nil {
		return f.err
	}
	// Mimic the encoder producing the output file named in the args.
	output := args[len(args)-1]
	if binary == "cjxl" {
		output = args[1]
	}
	return os.WriteFile(output, f.payload, 0o644)
}

func writeInput(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestEncodeAvifCommand(t *testing.T) {
	fake := &fakeExecutor{payload: []byte("xx")}
	enc := NewExecEncoder(WithExecutor(fake))
	input := writeInput(t, "page.jpg", 100)

	cfg := config.RunConfig{TargetFormat: "avif", Quality: 85}
	res, err := enc.Encode(context.Background(), input, cfg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if fake.binary != "avifenc" {
		t.Fatalf("binary = %q", fake.binary)
	}
	want := []string{"-q", "85", input, strings.TrimSuffix(input, ".jpg") + ".avif"}
	if strings.Join(fake.args, " ") != strings.Join(want, " ") {
		t.Fatalf("unexpected args: %v", fake.args)
	}
	if res.OriginalSize != 100 || res.NewSize != 2 {
		t.Fatalf("sizes = %d/%d", res.OriginalSize, res.NewSize)
	}
}

func TestEncodeWebpLossless(t *testing.T) {
	fake := &fakeExecutor{payload: []byte("x")}
	enc := NewExecEncoder(WithExecutor(fake))
	input := writeInput(t, "cover.png", 50)

	cfg := config.RunConfig{TargetFormat: "webp", Quality: 90, Lossless: true}
	if _, err := enc.Encode(context.Background(), input, cfg); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if fake.binary != "cwebp" || fake.args[0] != "-lossless" {
		t.Fatalf("unexpected command: %s %v", fake.binary, fake.args)
	}
}

func TestEncodeSkipsNonImage(t *testing.T) {
	enc := NewExecEncoder(WithExecutor(&fakeExecutor{}))
	input := writeInput(t, "info.txt", 10)
	_, err := enc.Encode(context.Background(), input, config.RunConfig{TargetFormat: "avif", Quality: 90})
	if !errors.Is(err, ErrSkipped) {
		t.Fatalf("expected ErrSkipped, got %v", err)
	}
}

func TestEncodeSkipsAlreadyTargetFormat(t *testing.T) {
	enc := NewExecEncoder(WithExecutor(&fakeExecutor{}))
	input := writeInput(t, "page.webp", 10)
	_, err := enc.Encode(context.Background(), input, config.RunConfig{TargetFormat: "webp", Quality: 90})
	if !errors.Is(err, ErrSkipped) {
		t.Fatalf("expected ErrSkipped, got %v", err)
	}
}

func TestEncodeSkipsBelowMinWidth(t *testing.T) {
	dir := t.TempDir()
	narrow := filepath.Join(dir, "thumb.png")
	f, err := os.Create(narrow)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 100, 100))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	f.Close()

	enc := NewExecEncoder(WithExecutor(&fakeExecutor{payload: []byte("x")}))
	cfg := config.RunConfig{TargetFormat: "avif", Quality: 90, MinWidth: 800}
	if _, err := enc.Encode(context.Background(), narrow, cfg); !errors.Is(err, ErrSkipped) {
		t.Fatalf("expected ErrSkipped for narrow image, got %v", err)
	}

	// Wide enough once the threshold drops.
	cfg.MinWidth = 50
	if _, err := enc.Encode(context.Background(), narrow, cfg); err != nil {
		t.Fatalf("Encode: %v", err)
	}
}

func TestEncodeFailureRemovesPartialOutput(t *testing.T) {
	fake := &fakeExecutor{err: errors.New("exit status 1")}
	enc := NewExecEncoder(WithExecutor(fake))
	input := writeInput(t, "page.jpg", 10)

	_, err := enc.Encode(context.Background(), input, config.RunConfig{TargetFormat: "avif", Quality: 90})
	if err == nil {
		t.Fatal("expected error")
	}
	output := strings.TrimSuffix(input, ".jpg") + ".avif"
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output file, stat err = %v", statErr)
	}
}
