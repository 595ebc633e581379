package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"picshrink/internal/config"
	"picshrink/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		format   string
		quality  int
		lossless bool
		minWidth int
	)

	cmd := &cobra.Command{
		Use:   "run <path>",
		Short: "Convert the archives under a directory (or a single archive)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			applyConvertOverrides(cfg, cmd, format, quality, lossless, minWidth)
			if err := cfg.Validate(); err != nil {
				return err
			}

			app, err := ctx.buildApp()
			if err != nil {
				return err
			}
			defer app.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			root, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			summary, err := app.manager.RunOnce(runCtx, root)
			if err != nil {
				return err
			}
			printSummary(cmd, summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Target image format (avif, webp, jxl)")
	cmd.Flags().IntVar(&quality, "quality", 0, "Encoder quality (1-100)")
	cmd.Flags().BoolVar(&lossless, "lossless", false, "Use lossless encoding")
	cmd.Flags().IntVar(&minWidth, "min-width", 0, "Skip images narrower than this (pixels)")
	return cmd
}

func applyConvertOverrides(cfg *config.Config, cmd *cobra.Command, format string, quality int, lossless bool, minWidth int) {
	if cmd.Flags().Changed("format") {
		cfg.Convert.TargetFormat = format
	}
	if cmd.Flags().Changed("quality") {
		cfg.Convert.Quality = quality
	}
	if cmd.Flags().Changed("lossless") {
		cfg.Convert.Lossless = lossless
	}
	if cmd.Flags().Changed("min-width") {
		cfg.Convert.MinWidth = minWidth
	}
}

func printSummary(cmd *cobra.Command, summary workflow.Summary) {
	out := cmd.OutOrStdout()
	if summary.Candidates == 0 {
		fmt.Fprintln(out, "No archives found")
		return
	}

	var rows [][]string
	for _, res := range summary.Results {
		ratio := ""
		if res.OriginalSize > 0 && res.NewSize > 0 {
			ratio = fmt.Sprintf("%.1f%%", res.Ratio)
		}
		rows = append(rows, []string{
			res.Archive,
			string(res.Outcome),
			ratio,
			res.Reason,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Archive", "Outcome", "Saved", "Note"}, rows, 3))

	prescanSkips := 0
	for _, n := range summary.PrescanSkipped {
		prescanSkips += n
	}
	fmt.Fprintf(out, "Candidates: %d  Prescan skips: %d  Converted: %d  Preserved: %d  Skipped: %d  Aborted: %d  Failed: %d\n",
		summary.Candidates, prescanSkips, summary.Converted, summary.Preserved,
		summary.Skipped, summary.Aborted, summary.Failed)
	fmt.Fprintf(out, "Saved %s in %s\n",
		formatBytes(summary.BytesSaved),
		summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second))
}

func formatBytes(n int64) string {
	const mib = 1 << 20
	if n >= mib || n <= -mib {
		return fmt.Sprintf("%.1f MiB", float64(n)/float64(mib))
	}
	return strconv.FormatInt(n, 10) + " B"
}
