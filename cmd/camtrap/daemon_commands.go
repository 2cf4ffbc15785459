package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"camtrap/internal/api"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Inspect and control a running camtrapd",
	}
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	daemonCmd.AddCommand(newDaemonRunsCommand(ctx))
	daemonCmd.AddCommand(newDaemonResetCommand(ctx))
	return daemonCmd
}

func withClient(ctx *commandContext, fn func(*api.Client) error) error {
	client, err := ctx.client()
	if err != nil {
		return err
	}
	return fn(client)
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the daemon workflow state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(ctx, func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				renderDaemonStatus(out, status, nil, newPainter(out))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newDaemonRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List runs recorded by the daemon, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(ctx, func(client *api.Client) error {
				out := cmd.OutOrStdout()
				p := newPainter(out)
				if len(args) == 1 {
					run, err := client.Run(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if asJSON {
						return writeJSON(cmd, run)
					}
					renderRunDetail(out, *run, p)
					return nil
				}
				runs, err := client.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, runsTable(runs, p))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of most recent runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newDaemonResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Abandon the daemon's current dataset and return to selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(ctx, func(client *api.Client) error {
				if err := client.Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Workflow reset")
				return nil
			})
		},
	}
}
