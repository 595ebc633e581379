package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"picshrink/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	histCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.Paths.HistoryPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			var rows [][]string
			for _, run := range runs {
				rows = append(rows, []string{
					strconv.FormatInt(run.ID, 10),
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					run.Root,
					fmt.Sprintf("%s q%d", run.TargetFormat, run.Quality),
					strconv.Itoa(run.Converted),
					strconv.Itoa(run.Preserved),
					strconv.Itoa(run.Aborted + run.Failed),
					formatBytes(run.BytesSaved),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Started", "Root", "Settings", "Converted", "Preserved", "Problems", "Saved"},
				rows, 1, 5, 6, 7, 8))
			return nil
		},
	}
	histCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")

	histCmd.AddCommand(newHistoryShowCommand(ctx))
	return histCmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the per-archive outcomes of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.Paths.HistoryPath)
			if err != nil {
				return err
			}
			defer store.Close()

			results, err := store.ListArchives(cmd.Context(), runID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No archive outcomes for that run")
				return nil
			}
			var rows [][]string
			for _, res := range results {
				rows = append(rows, []string{
					res.Archive,
					res.Outcome,
					fmt.Sprintf("%.1f%%", res.Ratio),
					(time.Duration(res.ElapsedMS) * time.Millisecond).Round(time.Second).String(),
					res.Reason,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Archive", "Outcome", "Saved", "Took", "Note"}, rows, 3, 4))
			return nil
		},
	}
}
