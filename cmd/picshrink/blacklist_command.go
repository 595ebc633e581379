package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBlacklistCommand(ctx *commandContext) *cobra.Command {
	blCmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Manage the persisted archive blacklist",
	}
	blCmd.AddCommand(newBlacklistShowCommand(ctx))
	blCmd.AddCommand(newBlacklistAddCommand(ctx))
	blCmd.AddCommand(newBlacklistClearCommand(ctx))
	return blCmd
}

func newBlacklistShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List blacklisted archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.blacklistStore()
			if err != nil {
				return err
			}
			entries := store.All()
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Blacklist is empty")
				return nil
			}
			for _, entry := range entries {
				fmt.Fprintln(out, entry)
			}
			return nil
		},
	}
}

func newBlacklistAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <archive>",
		Short: "Exclude an archive from future runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.blacklistStore()
			if err != nil {
				return err
			}
			if err := store.Add(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Blacklisted %s\n", args[0])
			return nil
		},
	}
}

func newBlacklistClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every blacklist entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.blacklistStore()
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Blacklist cleared")
			return nil
		},
	}
}
