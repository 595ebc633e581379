package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"picshrink/internal/perf"
)

func newPerfCommand(ctx *commandContext) *cobra.Command {
	perfCmd := &cobra.Command{
		Use:   "perf",
		Short: "Inspect and adjust the shared throttling state",
	}
	perfCmd.AddCommand(newPerfShowCommand(ctx))
	perfCmd.AddCommand(newPerfPauseCommand(ctx, true))
	perfCmd.AddCommand(newPerfPauseCommand(ctx, false))
	perfCmd.AddCommand(newPerfThreadsCommand(ctx))
	perfCmd.AddCommand(newPerfBatchCommand(ctx))
	return perfCmd
}

func newPerfShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show every live process entry in the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			coord, err := ctx.coordinator()
			if err != nil {
				return err
			}
			states := coord.States()
			if len(states) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No live entries")
				return nil
			}
			pids := make([]string, 0, len(states))
			for pid := range states {
				pids = append(pids, pid)
			}
			sort.Strings(pids)

			var rows [][]string
			for _, pid := range pids {
				s := states[pid]
				rows = append(rows, []string{
					pid,
					strconv.Itoa(s.ThreadCount),
					strconv.Itoa(s.BatchSize),
					yesNo(s.Paused),
					s.StartTime.Local().Format(time.RFC3339),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(),
				renderTable([]string{"PID", "Threads", "Batch", "Paused", "Since"}, rows, 2, 3))
			return nil
		},
	}
}

// applyPerf routes a mutation to one worker entry or, with no pid, to
// every live entry in the store.
func applyPerf(coord *perf.Coordinator, pid string, fn func(*perf.ProcessState)) ([]string, error) {
	if pid != "" {
		return coord.UpdateEntries(fn, pid)
	}
	return coord.UpdateEntries(fn)
}

func newPerfPauseCommand(ctx *commandContext, pause bool) *cobra.Command {
	use, short := "pause", "Pause running workers (all live entries, or --pid)"
	if !pause {
		use, short = "resume", "Resume running workers (all live entries, or --pid)"
	}
	var pid string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			coord, err := ctx.coordinator()
			if err != nil {
				return err
			}
			pids, err := applyPerf(coord, pid, perf.Pause(pause))
			if err != nil {
				return err
			}
			if len(pids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No live entries")
				return nil
			}
			verb := "Paused"
			if !pause {
				verb = "Resumed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, strings.Join(pids, ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&pid, "pid", "", "target a single process entry")
	return cmd
}

func newPerfThreadsCommand(ctx *commandContext) *cobra.Command {
	var pid string
	cmd := &cobra.Command{
		Use:   "threads <count>",
		Short: "Set the worker pool size (clamped to 1-16)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid thread count %q", args[0])
			}
			coord, err := ctx.coordinator()
			if err != nil {
				return err
			}
			pids, err := applyPerf(coord, pid, perf.Threads(n))
			if err != nil {
				return err
			}
			if len(pids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No live entries")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Thread count set to %d for %s\n",
				perf.ClampThreads(n), strings.Join(pids, ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&pid, "pid", "", "target a single process entry")
	return cmd
}

func newPerfBatchCommand(ctx *commandContext) *cobra.Command {
	var pid string
	cmd := &cobra.Command{
		Use:   "batch <size>",
		Short: "Set the per-round batch size (clamped to 1-100)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid batch size %q", args[0])
			}
			coord, err := ctx.coordinator()
			if err != nil {
				return err
			}
			pids, err := applyPerf(coord, pid, perf.Batch(n))
			if err != nil {
				return err
			}
			if len(pids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No live entries")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Batch size set to %d for %s\n",
				perf.ClampBatchSize(n), strings.Join(pids, ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&pid, "pid", "", "target a single process entry")
	return cmd
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
