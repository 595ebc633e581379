package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeConvert()
	c.normalizePrescan()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	if strings.TrimSpace(c.Paths.BlacklistPath) == "" {
		c.Paths.BlacklistPath = filepath.Join(c.Paths.DataDir, "blacklist.json")
	} else if c.Paths.BlacklistPath, err = expandPath(c.Paths.BlacklistPath); err != nil {
		return fmt.Errorf("paths.blacklist_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.PerformancePath) == "" {
		c.Paths.PerformancePath = filepath.Join(c.Paths.DataDir, "performance.json")
	} else if c.Paths.PerformancePath, err = expandPath(c.Paths.PerformancePath); err != nil {
		return fmt.Errorf("paths.performance_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryPath) == "" {
		c.Paths.HistoryPath = filepath.Join(c.Paths.DataDir, "history.db")
	} else if c.Paths.HistoryPath, err = expandPath(c.Paths.HistoryPath); err != nil {
		return fmt.Errorf("paths.history_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeConvert() {
	c.Convert.TargetFormat = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Convert.TargetFormat), "."))
}

func (c *Config) normalizePrescan() {
	normalized := make([]string, 0, len(c.Prescan.SkipExtensions))
	for _, ext := range c.Prescan.SkipExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	c.Prescan.SkipExtensions = normalized

	keywords := make([]string, 0, len(c.Prescan.Keywords))
	for _, kw := range c.Prescan.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	c.Prescan.Keywords = keywords
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
