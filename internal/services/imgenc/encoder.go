package imgenc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"picshrink/internal/config"
)

// ErrSkipped marks an input the encoder declined (not a convertible image).
var ErrSkipped = errors.New("image skipped")

// Result describes one completed encode.
type Result struct {
	OutputPath   string
	OriginalSize int64
	NewSize      int64
}

// Encoder converts a single image file to the configured target format.
type Encoder interface {
	Encode(ctx context.Context, inputPath string, cfg config.RunConfig) (Result, error)
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) error
}

var convertibleExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".bmp":  {},
	".gif":  {},
	".webp": {},
}

// ExecEncoder invokes the per-format encoder binary for each image.
type ExecEncoder struct {
	exec Executor
}

// Option configures the encoder.
type Option func(*ExecEncoder)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(executor Executor) Option {
	return func(e *ExecEncoder) {
		if executor != nil {
			e.exec = executor
		}
	}
}

// NewExecEncoder constructs the exec-based encoder.
func NewExecEncoder(opts ...Option) *ExecEncoder {
	enc := &ExecEncoder{exec: commandExecutor{}}
	for _, opt := range opts {
		opt(enc)
	}
	return enc
}

// Encode converts inputPath to cfg.TargetFormat next to the input file and
// returns the original and encoded sizes. The input file is left in place;
// the caller decides whether to swap it out.
func (e *ExecEncoder) Encode(ctx context.Context, inputPath string, cfg config.RunConfig) (Result, error) {
	ext := strings.ToLower(filepath.Ext(inputPath))
	if _, ok := convertibleExtensions[ext]; !ok {
		return Result{}, ErrSkipped
	}
	if "."+cfg.TargetFormat == ext {
		return Result{}, ErrSkipped
	}

	info, err := os.Stat(inputPath)
	if err != nil {
		return Result{}, fmt.Errorf("stat input: %w", err)
	}
	if cfg.MinWidth > 0 && belowMinWidth(inputPath, cfg.MinWidth) {
		return Result{}, ErrSkipped
	}

	outputPath := strings.TrimSuffix(inputPath, ext) + "." + cfg.TargetFormat
	binary, args, err := encodeCommand(inputPath, outputPath, cfg)
	if err != nil {
		return Result{}, err
	}
	if err := e.exec.Run(ctx, binary, args); err != nil {
		_ = os.Remove(outputPath)
		return Result{}, fmt.Errorf("encode %s: %w", filepath.Base(inputPath), err)
	}

	outInfo, err := os.Stat(outputPath)
	if err != nil {
		return Result{}, fmt.Errorf("stat output: %w", err)
	}
	return Result{OutputPath: outputPath, OriginalSize: info.Size(), NewSize: outInfo.Size()}, nil
}

func encodeCommand(input, output string, cfg config.RunConfig) (string, []string, error) {
	quality := strconv.Itoa(cfg.Quality)
	switch cfg.TargetFormat {
	case "avif":
		args := []string{"-q", quality}
		if cfg.Lossless {
			args = []string{"--lossless"}
		}
		return "avifenc", append(args, input, output), nil
	case "webp":
		args := []string{"-q", quality}
		if cfg.Lossless {
			args = []string{"-lossless"}
		}
		return "cwebp", append(args, input, "-o", output), nil
	case "jxl":
		args := []string{input, output}
		if cfg.Lossless {
			args = append(args, "-d", "0")
		} else {
			args = append(args, "-q", quality)
		}
		return "cjxl", args, nil
	default:
		return "", nil, fmt.Errorf("unsupported target format %q", cfg.TargetFormat)
	}
}

// belowMinWidth reads only the image header. Formats the stdlib cannot
// decode are treated as wide enough and left to the encoder binary.
func belowMinWidth(inputPath string, minWidth int) bool {
	f, err := os.Open(inputPath)
	if err != nil {
		return false
	}
	defer f.Close()
	conf, _, err := image.DecodeConfig(f)
	if err != nil {
		return false
	}
	return conf.Width < minWidth
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", binary, err, msg)
		}
		return fmt.Errorf("%s: %w", binary, err)
	}
	return nil
}
