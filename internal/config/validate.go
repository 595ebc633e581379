package config

import (
	"errors"
	"fmt"
)

var supportedTargetFormats = map[string]struct{}{
	"avif": {},
	"webp": {},
	"jxl":  {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateConvert(); err != nil {
		return err
	}
	if err := c.validatePerformance(); err != nil {
		return err
	}
	if err := c.validateBreaker(); err != nil {
		return err
	}
	if err := c.validatePrescan(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateConvert() error {
	if _, ok := supportedTargetFormats[c.Convert.TargetFormat]; !ok {
		return fmt.Errorf("convert.target_format: unsupported format %q (want avif, webp, or jxl)", c.Convert.TargetFormat)
	}
	if c.Convert.Quality < 1 || c.Convert.Quality > 100 {
		return errors.New("convert.quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validatePerformance() error {
	if c.Performance.ThreadCount < 1 {
		return errors.New("performance.thread_count must be at least 1")
	}
	if c.Performance.BatchSize < 1 {
		return errors.New("performance.batch_size must be at least 1")
	}
	if c.Performance.PollIntervalMS <= 0 {
		return errors.New("performance.poll_interval_ms must be positive")
	}
	if c.Performance.RecheckIntervalMS <= 0 {
		return errors.New("performance.recheck_interval_ms must be positive")
	}
	if c.Performance.IdleAfterSeconds <= 0 {
		return errors.New("performance.idle_after_seconds must be positive")
	}
	if c.Performance.ActiveThreads < 1 || c.Performance.IdleThreads < 1 {
		return errors.New("performance.active_threads and performance.idle_threads must be at least 1")
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if !c.Breaker.Enabled {
		return nil
	}
	if c.Breaker.ConsecutiveThreshold < 1 {
		return errors.New("breaker.consecutive_threshold must be at least 1")
	}
	return nil
}

func (c *Config) validatePrescan() error {
	if c.Prescan.SampleEntries < 1 {
		return errors.New("prescan.sample_entries must be at least 1")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.ScanIntervalMinutes < 1 {
		return errors.New("workflow.scan_interval_minutes must be at least 1")
	}
	return nil
}
