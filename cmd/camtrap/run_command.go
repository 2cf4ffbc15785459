package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"camtrap/internal/daemonrun"
	"camtrap/internal/detection"
	"camtrap/internal/exportjob"
	"camtrap/internal/preflight"
	"camtrap/internal/store"
	"camtrap/internal/workflow"
)

type runOptions struct {
	threshold float64
	recursive bool
	formats   []string
	output    string
	filter    string
	draw      string
	verbose   bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <dataset-dir>",
		Short: "Detect animals, humans, and vehicles in a dataset and export the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("threshold") {
				opts.threshold = cfg.Detection.ConfidenceThreshold
			}
			if !cmd.Flags().Changed("recursive") {
				opts.recursive = cfg.Detection.Recursive
			}
			if opts.output != "" && len(opts.formats) != 1 {
				return errors.New("--output needs exactly one --format")
			}
			if check := preflight.CheckDataset(args[0]); !check.Passed {
				return fmt.Errorf("dataset: %s", check.Detail)
			}
			logger, err := ctx.logger(opts.verbose)
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				wf, err := daemonrun.NewController(cfg, logger, st)
				if err != nil {
					return err
				}
				return runDataset(cmd.Context(), cmd.OutOrStdout(), wf, args[0], opts)
			})
		},
	}

	cmd.Flags().Float64VarP(&opts.threshold, "threshold", "t", 0, "Confidence threshold in [0,1] (defaults to detection.confidence_threshold)")
	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", false, "Include subfolders")
	cmd.Flags().StringSliceVarP(&opts.formats, "format", "f", nil, "Export format id (repeatable): csv, json, image-dir")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output path for a single export (defaults next to the dataset)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Image-set filter, e.g. animals=Include,empty=Exclude")
	cmd.Flags().StringVar(&opts.draw, "draw", "", "Categories to draw boxes for: animals,humans,vehicles, all, or none")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at the configured level instead of warnings only")
	return cmd
}

func runDataset(ctx context.Context, out io.Writer, wf *workflow.Controller, root string, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	filter, err := parseFilter(opts.filter)
	if err != nil {
		return err
	}
	draw, err := parseDraw(opts.draw)
	if err != nil {
		return err
	}
	// Reject bad export requests before spending time on detection.
	for _, format := range opts.formats {
		if _, err := wf.Registry().Lookup(format); err != nil {
			return err
		}
	}
	if opts.output != "" {
		if check := preflight.CheckOutputParent(opts.output); !check.Passed {
			return fmt.Errorf("output: %s", check.Detail)
		}
	}

	if err := wf.Open(ctx); err != nil {
		return err
	}
	if err := wf.Select(workflow.Selection{RootPath: root, IncludeSubfolders: opts.recursive}); err != nil {
		return err
	}
	if err := wf.Configure(workflow.Config{ConfidenceThreshold: opts.threshold}); err != nil {
		return err
	}
	if err := wf.StartDetection(ctx); err != nil {
		return err
	}

	p := newPainter(out)
	view := newProgressView(out)
	if sub, ok := wf.Subscribe(); ok {
		for report := range sub.C() {
			view.update(report)
		}
	}
	select {
	case <-wf.Settled():
	case <-ctx.Done():
		view.finish(false)
		wf.Reset(context.Background())
		return ctx.Err()
	}

	status := wf.Status()
	view.finish(status.State == workflow.StateReviewing)
	if status.State != workflow.StateReviewing {
		return fmt.Errorf("detection failed: %s", status.LastError)
	}

	if status.Summary != nil {
		fmt.Fprintln(out, p.heading("Detection summary"))
		fmt.Fprintln(out, summaryTable(*status.Summary))
	}

	if len(opts.formats) == 0 {
		return nil
	}
	for _, format := range opts.formats {
		if _, err := wf.Export(ctx, workflow.ExportRequest{
			Format:     format,
			OutputPath: opts.output,
			Filter:     filter,
			Draw:       draw,
		}); err != nil {
			return fmt.Errorf("export %s: %w", format, err)
		}
	}
	wf.WaitExports()

	jobs := wf.Exports()
	fmt.Fprintln(out, p.heading("Exports"))
	fmt.Fprintln(out, exportsTable(jobs, p))
	for _, job := range jobs {
		if job.State == exportjob.StateFailed {
			return fmt.Errorf("export %s failed: %s", job.Format, job.Error)
		}
	}
	return nil
}

func summaryTable(s detection.Summary) string {
	row := func(label string, n int) []string { return []string{label, strconv.Itoa(n)} }
	return tableSpec{
		headers: []string{"Category", "Images"},
		rows: [][]string{
			row("Animal", s.Animals),
			row("Human", s.Humans),
			row("Vehicle", s.Vehicles),
			row("Empty", s.Empty),
			row("Unreadable", s.Failed),
		},
		numeric: []int{1},
		footer:  []string{"Total", strconv.Itoa(s.Images)},
	}.render()
}

func exportsTable(jobs []exportjob.Job, p painter) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		detail := job.OutputPath
		if job.Error != "" {
			detail = job.Error
		}
		rows = append(rows, []string{
			job.Format,
			p.state(string(job.State)),
			strconv.Itoa(job.Images),
			job.Duration().Round(time.Millisecond).String(),
			strings.TrimSpace(detail),
		})
	}
	return tableSpec{
		headers: []string{"Format", "State", "Images", "Took", "Output"},
		rows:    rows,
		numeric: []int{2, 3},
	}.render()
}
