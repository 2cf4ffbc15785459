package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"camtrap/internal/api"
	"camtrap/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show preflight checks and daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			results := preflight.RunAll(cmd.Context(), cfg)

			var daemonStatus *api.DaemonStatus
			var daemonErr error
			if client, err := ctx.client(); err == nil {
				daemonStatus, daemonErr = client.Status(cmd.Context())
			} else {
				daemonErr = err
			}

			if asJSON {
				return writeJSON(cmd, statusView{
					Checks: results,
					Daemon: daemonStatus,
				})
			}

			p := newPainter(out)
			fmt.Fprintln(out, p.heading("Preflight"))
			for _, r := range results {
				label := "OK"
				if !r.Passed {
					label = "FAIL"
				}
				fmt.Fprintf(out, "  %-4s %s: %s\n", p.state(label), r.Name, r.Detail)
			}

			fmt.Fprintln(out, p.heading("Daemon"))
			renderDaemonStatus(out, daemonStatus, daemonErr, p)

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

type statusView struct {
	Checks []preflight.Result `json:"checks"`
	Daemon *api.DaemonStatus  `json:"daemon,omitempty"`
}

func renderDaemonStatus(out io.Writer, status *api.DaemonStatus, err error, p painter) {
	var apiErr *api.Error
	switch {
	case errors.As(err, &apiErr):
		fmt.Fprintf(out, "  %s (%s)\n", p.state("failed"), apiErr.Error())
		return
	case err != nil || status == nil:
		fmt.Fprintln(out, "  not running")
		return
	}
	fmt.Fprintf(out, "  PID:      %s\n", strconv.Itoa(status.PID))
	fmt.Fprintf(out, "  Backend:  %s\n", status.Backend)
	fmt.Fprintf(out, "  Ledger:   %s\n", status.LedgerPath)
	wf := status.Workflow
	fmt.Fprintf(out, "  Workflow: %s\n", p.state(string(wf.State)))
	if wf.Selection != nil {
		fmt.Fprintf(out, "  Dataset:  %s\n", wf.Selection.RootPath)
	}
	if wf.Progress != nil {
		fmt.Fprintf(out, "  Progress: %d/%d (%d%%) %s\n", wf.Progress.Current, wf.Progress.Total, wf.Progress.Percent, wf.Progress.Message)
	}
	if wf.LastError != "" {
		fmt.Fprintf(out, "  Error:    %s\n", wf.LastError)
	}
	for _, job := range wf.Exports {
		fmt.Fprintf(out, "  Export:   %s %s %s\n", job.Format, p.state(string(job.State)), job.OutputPath)
	}
}
