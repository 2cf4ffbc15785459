package workflow

import (
	"context"
	"errors"
	"strings"

	"camtrap/internal/exportjob"
	"camtrap/internal/exports"
	"camtrap/internal/logging"
	"camtrap/internal/services"
)

// Export submits an export of the reviewed dataset. It is only accepted in
// Reviewing; the job itself runs in the background.
func (c *Controller) Export(ctx context.Context, req ExportRequest) (exportjob.Job, error) {
	c.mu.RLock()
	state := c.state
	var root, runID string
	if c.selection != nil {
		root = c.selection.RootPath
	}
	if c.run != nil {
		runID = c.run.ID()
	}
	records := c.records
	c.mu.RUnlock()

	if state != StateReviewing {
		return exportjob.Job{}, services.Wrap(services.ErrJobStartRejected, "workflow", "export",
			"exports are only accepted while reviewing (state "+string(state)+")", nil)
	}

	output := strings.TrimSpace(req.OutputPath)
	if output == "" {
		var err error
		if output, err = c.registry.DefaultPath(req.Format, root, ""); err != nil {
			return exportjob.Job{}, err
		}
	}

	ctx = services.WithRunID(ctx, runID)
	job, err := c.runner.Submit(ctx, exportjob.Request{
		Format:     req.Format,
		OutputPath: output,
		Filter:     req.Filter,
		Draw:       req.Draw,
		Dataset:    exports.Dataset{Root: root, Records: records},
	})
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "export rejected", "export_rejected",
			append(logging.ErrorAttrs(err),
				logging.String(logging.FieldFormat, req.Format),
				logging.String(logging.FieldErrorHint, "fix the request and resubmit"),
				logging.String(logging.FieldImpact, "export not started"),
			)...)
		return exportjob.Job{}, err
	}
	return job, nil
}

// Exports returns the export jobs submitted since the last reset.
func (c *Controller) Exports() []exportjob.Job {
	return c.runner.Jobs()
}

// exportFinished is the runner completion hook.
func (c *Controller) exportFinished(job exportjob.Job) {
	c.mu.RLock()
	var runID string
	if c.run != nil {
		runID = c.run.ID()
	}
	c.mu.RUnlock()

	ctx := services.WithFormat(services.WithJobID(services.WithRunID(context.Background(), runID), job.ID), job.Format)
	logger := logging.WithContext(ctx, c.logger)
	c.ledgerCall(ctx, "export recorded", func(l Ledger) error {
		return l.RecordExport(ctx, runID, job)
	})

	var err error
	if job.State == exportjob.StateSucceeded {
		err = c.notifier.NotifyExportComplete(ctx, job.Format, job.OutputPath, job.Images)
	} else {
		err = c.notifier.NotifyError(ctx, jobError(job), job.Format+" export")
	}
	if err != nil {
		c.notifyFailed(logger, err)
	}
}

func jobError(job exportjob.Job) error {
	if job.Error == "" {
		return errors.New("export failed")
	}
	return errors.New(job.Error)
}
