package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"picshrink/internal/config"
	"picshrink/internal/perf"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var activityFile string

	cmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Keep scanning a directory and convert new archives as they appear",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.buildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			// One watcher per data directory; a second instance would
			// fight over the same archives.
			lockPath, err := ctx.lockFilePath("watch.lock")
			if err != nil {
				return err
			}
			lock := flock.New(lockPath)
			held, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire watch lock: %w", err)
			}
			if !held {
				return fmt.Errorf("another watch is already running (lock %s)", lockPath)
			}
			defer lock.Unlock()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if activityFile != "" {
				source := perf.FileActivitySource{Path: activityFile}
				throttle, err := perf.NewAutoThrottle(app.coord, source,
					time.Duration(app.cfg.Performance.IdleAfterSeconds)*time.Second,
					app.cfg.Performance.ActiveThreads, app.cfg.Performance.IdleThreads,
					app.logger)
				if err != nil {
					return err
				}
				recheck := time.Duration(app.cfg.Performance.RecheckIntervalMS) * time.Millisecond
				go throttle.Run(runCtx, recheck)
			}

			root, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			interval := time.Duration(app.cfg.Workflow.ScanIntervalMinutes) * time.Minute
			return app.manager.Watch(runCtx, root, interval)
		},
	}

	cmd.Flags().StringVar(&activityFile, "activity-file", "", "File whose mtime tracks operator activity; enables idle auto-throttle")
	return cmd
}
