package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"camtrap/internal/api"
	"camtrap/internal/store"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded detection runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				out := cmd.OutOrStdout()
				if id := strings.TrimSpace(runID); id != "" {
					run, err := st.GetRun(cmd.Context(), id)
					if err != nil {
						return err
					}
					if run == nil {
						return fmt.Errorf("run %s not found", id)
					}
					records, err := st.ListExports(cmd.Context(), id)
					if err != nil {
						return err
					}
					view := api.FromRun(*run)
					view.Exports = api.FromExportRecords(records)
					if asJSON {
						return writeJSON(cmd, view)
					}
					renderRunDetail(out, view, newPainter(out))
					return nil
				}

				if limit <= 0 {
					return errors.New("--limit must be positive")
				}
				runs, err := st.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				views := api.FromRuns(runs)
				if asJSON {
					return writeJSON(cmd, views)
				}
				if len(views) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, runsTable(views, newPainter(out)))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of most recent runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show one run with its exports")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func runsTable(runs []api.Run, p painter) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			shortID(r.ID),
			p.state(r.State),
			r.DatasetRoot,
			strconv.Itoa(r.Summary.Images),
			strconv.Itoa(r.Summary.Animals),
			strconv.Itoa(r.Summary.Humans),
			strconv.Itoa(r.Summary.Vehicles),
			r.StartedAt,
		})
	}
	return tableSpec{
		headers: []string{"Run", "State", "Dataset", "Images", "Animal", "Human", "Vehicle", "Started"},
		rows:    rows,
		numeric: []int{3, 4, 5, 6},
	}.render()
}

func renderRunDetail(out io.Writer, run api.Run, p painter) {
	fmt.Fprintf(out, "%s %s\n", p.heading("Run"), run.ID)
	fmt.Fprintf(out, "  State:     %s\n", p.state(run.State))
	fmt.Fprintf(out, "  Dataset:   %s\n", run.DatasetRoot)
	fmt.Fprintf(out, "  Recursive: %t\n", run.Recursive)
	fmt.Fprintf(out, "  Threshold: %.2f\n", run.ConfidenceThreshold)
	if run.Backend != "" {
		fmt.Fprintf(out, "  Backend:   %s\n", run.Backend)
	}
	fmt.Fprintf(out, "  Started:   %s\n", run.StartedAt)
	if run.FinishedAt != "" {
		fmt.Fprintf(out, "  Finished:  %s\n", run.FinishedAt)
	}
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:     %s\n", run.ErrorMessage)
	}
	s := run.Summary
	fmt.Fprintf(out, "  Images:    %d (animal %d, human %d, vehicle %d, empty %d, unreadable %d)\n",
		s.Images, s.Animals, s.Humans, s.Vehicles, s.Empty, s.Failed)

	if len(run.Exports) == 0 {
		return
	}
	rows := make([][]string, 0, len(run.Exports))
	for _, e := range run.Exports {
		detail := e.OutputPath
		if e.ErrorMessage != "" {
			detail = e.ErrorMessage
		}
		rows = append(rows, []string{e.Format, p.state(e.State), strconv.Itoa(e.Images), detail})
	}
	fmt.Fprintln(out, tableSpec{
		headers: []string{"Format", "State", "Images", "Output"},
		rows:    rows,
		numeric: []int{2},
	}.render())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
