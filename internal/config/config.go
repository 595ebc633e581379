package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains data directory and store file configuration.
type Paths struct {
	DataDir         string `toml:"data_dir"`
	LogDir          string `toml:"log_dir"`
	BlacklistPath   string `toml:"blacklist_path"`
	PerformancePath string `toml:"performance_path"`
	HistoryPath     string `toml:"history_path"`
}

// RunConfig is the conversion fingerprint: two runs with equal RunConfig
// values are considered the same work and the second is skipped.
type RunConfig struct {
	TargetFormat string `toml:"target_format" json:"target_format"`
	Quality      int    `toml:"quality" json:"quality"`
	Lossless     bool   `toml:"lossless" json:"lossless"`
	MinWidth     int    `toml:"min_width" json:"min_width"`
}

// Performance contains coordinator defaults and the idle auto-throttle knobs.
type Performance struct {
	ThreadCount       int `toml:"thread_count"`
	BatchSize         int `toml:"batch_size"`
	PollIntervalMS    int `toml:"poll_interval_ms"`
	RecheckIntervalMS int `toml:"recheck_interval_ms"`
	IdleAfterSeconds  int `toml:"idle_after_seconds"`
	ActiveThreads     int `toml:"active_threads"`
	IdleThreads       int `toml:"idle_threads"`
}

// Breaker contains circuit breaker thresholds.
type Breaker struct {
	Enabled              bool    `toml:"enabled"`
	ConsecutiveThreshold int     `toml:"consecutive_threshold"`
	RatioThreshold       float64 `toml:"ratio_threshold"`
}

// Prescan contains the cheap pre-extraction screening configuration.
type Prescan struct {
	SampleEntries  int      `toml:"sample_entries"`
	SkipExtensions []string `toml:"skip_extensions"`
	Keywords       []string `toml:"keywords"`
}

// Workflow contains run loop timing.
type Workflow struct {
	ScanIntervalMinutes int `toml:"scan_interval_minutes"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for picshrink.
type Config struct {
	Paths       Paths       `toml:"paths"`
	Convert     RunConfig   `toml:"convert"`
	Performance Performance `toml:"performance"`
	Breaker     Breaker     `toml:"breaker"`
	Prescan     Prescan     `toml:"prescan"`
	Workflow    Workflow    `toml:"workflow"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/picshrink/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("picshrink.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories required for operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SevenZipBinary returns the archive tool executable name.
func (c *Config) SevenZipBinary() string {
	return "7z"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the documented sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
