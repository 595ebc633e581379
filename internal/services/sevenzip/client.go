package sevenzip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"picshrink/internal/services"
)

// Archiver defines the behaviour the pipeline requires from the archive tool.
type Archiver interface {
	Extract(ctx context.Context, archivePath, destDir string) error
	Pack(ctx context.Context, dir, archivePath string) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(executor Executor) Option {
	return func(c *Client) {
		if executor != nil {
			c.exec = executor
		}
	}
}

// Client wraps 7z CLI interactions.
type Client struct {
	binary string
	exec   Executor
}

// New constructs a 7z client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("archive tool binary required")
	}
	client := &Client{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Extract unpacks archivePath into destDir.
func (c *Client) Extract(ctx context.Context, archivePath, destDir string) error {
	args := []string{"x", archivePath, "-o" + destDir, "-y"}
	if _, err := c.exec.Run(ctx, c.binary, args); err != nil {
		return services.Wrap(services.ErrExtraction, "sevenzip", "extract", archivePath, err)
	}
	return nil
}

// Pack builds a zip archive at archivePath from the contents of dir.
func (c *Client) Pack(ctx context.Context, dir, archivePath string) error {
	args := []string{"a", "-tzip", archivePath, filepath.Join(dir, "*")}
	if _, err := c.exec.Run(ctx, c.binary, args); err != nil {
		return services.Wrap(services.ErrPacking, "sevenzip", "pack", archivePath, err)
	}
	return nil
}

// List returns the raw listing output for archivePath. Used for diagnostics;
// the prescan and record readers use archive/zip directly.
func (c *Client) List(ctx context.Context, archivePath string) (string, error) {
	out, err := c.exec.Run(ctx, c.binary, []string{"l", archivePath})
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "sevenzip", "list", archivePath, err)
	}
	return string(out), nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg != "" {
			return nil, fmt.Errorf("%s %s: %w: %s", binary, args[0], err, msg)
		}
		return nil, fmt.Errorf("%s %s: %w", binary, args[0], err)
	}
	return stdout.Bytes(), nil
}
