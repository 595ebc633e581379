package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"picshrink/internal/blacklist"
	"picshrink/internal/breaker"
	"picshrink/internal/config"
	"picshrink/internal/history"
	"picshrink/internal/logging"
	"picshrink/internal/perf"
	"picshrink/internal/pipeline"
	"picshrink/internal/prescan"
	"picshrink/internal/services/imgenc"
	"picshrink/internal/services/sevenzip"
	"picshrink/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger builds the process logger. A console format on a pipe or
// redirect degrades to JSON so log collectors get structured lines.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.loggerOnce.Do(func() {
		format := cfg.Logging.Format
		if format == "console" && !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
			format = "json"
		}
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: format,
		})
	})
	return c.logger, c.loggerErr
}

// app bundles the wired collaborators behind the run and watch commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	coord     *perf.Coordinator
	blacklist *blacklist.Store
	history   *history.Store
	manager   *workflow.Manager
}

func (a *app) Close() {
	if a.history != nil {
		a.history.Close()
	}
}

// buildApp assembles the full conversion stack from configuration.
func (c *commandContext) buildApp() (*app, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	coord, err := perf.NewCoordinator(cfg.Paths.PerformancePath,
		cfg.Performance.ThreadCount, cfg.Performance.BatchSize, logger)
	if err != nil {
		return nil, err
	}
	// Publish this worker's entry so "picshrink perf" can reach it.
	if err := coord.Register(); err != nil {
		return nil, err
	}
	bl, err := blacklist.NewStore(cfg.Paths.BlacklistPath, logger)
	if err != nil {
		return nil, err
	}
	archiver, err := sevenzip.New(cfg.SevenZipBinary())
	if err != nil {
		return nil, err
	}
	encoder := imgenc.NewExecEncoder()
	tracker := breaker.NewTracker(bl, logger)

	poll := time.Duration(cfg.Performance.PollIntervalMS) * time.Millisecond
	pipe, err := pipeline.New(cfg.Convert, cfg.Breaker, archiver, encoder, coord, tracker, poll, logger)
	if err != nil {
		return nil, err
	}

	filter := prescan.NewFilter(bl, cfg.Prescan.Keywords, cfg.Prescan.SkipExtensions,
		cfg.Prescan.SampleEntries, logger)

	hist, err := history.Open(cfg.Paths.HistoryPath)
	if err != nil {
		return nil, err
	}
	recorder := history.NewRunRecorder(hist, cfg.Convert.TargetFormat, cfg.Convert.Quality)

	manager, err := workflow.NewManager(filter, pipe, coord, recorder, logger)
	if err != nil {
		hist.Close()
		return nil, err
	}
	return &app{
		cfg:       cfg,
		logger:    logger,
		coord:     coord,
		blacklist: bl,
		history:   hist,
		manager:   manager,
	}, nil
}

func (c *commandContext) coordinator() (*perf.Coordinator, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return perf.NewCoordinator(cfg.Paths.PerformancePath,
		cfg.Performance.ThreadCount, cfg.Performance.BatchSize, logger)
}

func (c *commandContext) blacklistStore() (*blacklist.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return blacklist.NewStore(cfg.Paths.BlacklistPath, logger)
}

func (c *commandContext) lockFilePath(name string) (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg.Paths.DataDir, name), nil
}
