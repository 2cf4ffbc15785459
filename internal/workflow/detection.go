package workflow

import (
	"context"
	"errors"
	"log/slog"

	"camtrap/internal/detection"
	"camtrap/internal/logging"
	"camtrap/internal/progress"
	"camtrap/internal/services"
	"camtrap/internal/store"
)

// StartDetection starts the one detection run for the selected dataset and
// moves to Detecting once the backend acknowledges it. When the backend
// refuses, the state stays Selecting so the caller can retry.
func (c *Controller) StartDetection(ctx context.Context) error {
	c.mu.Lock()
	if err := c.requireSelectingLocked("start detection"); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.selection == nil {
		c.mu.Unlock()
		return services.Wrap(services.ErrInvalidSelection, "workflow", "start detection", "no dataset selected", nil)
	}
	req := detection.Request{
		Root:                c.selection.RootPath,
		ConfidenceThreshold: c.config.ConfidenceThreshold,
		Recursive:           c.selection.IncludeSubfolders,
	}
	gen := c.generation
	c.starting = true
	c.mu.Unlock()

	run, err := c.backend.StartDetection(ctx, req)

	c.mu.Lock()
	c.starting = false
	if err != nil {
		if services.Kind(err) == "internal" {
			err = services.Wrap(services.ErrBackendFailure, "workflow", "start detection", "backend refused the job", err)
		}
		c.lastErr = err
		c.mu.Unlock()
		logging.ErrorWithContext(c.logger, "detection start failed", "detection_start_failed",
			append(logging.ErrorAttrs(err), logging.String(logging.FieldErrorHint, "check the dataset path and detector settings, then retry"))...)
		return err
	}
	if gen != c.generation {
		c.mu.Unlock()
		run.Cancel()
		return services.Wrap(services.ErrJobStartRejected, "workflow", "start detection", "reset while the job was starting", nil)
	}
	settled := make(chan struct{})
	c.run = run
	c.settled = settled
	c.runStarted = c.now()
	c.latest = nil
	c.lastErr = nil
	c.sampler.Reset()
	c.setStateLocked(StateDetecting)
	startedAt := c.runStarted
	c.mu.Unlock()

	runCtx := services.WithRunID(context.WithoutCancel(ctx), run.ID())
	logging.WithContext(runCtx, c.logger).Info("detection started",
		logging.String("root", req.Root),
		logging.Float64("threshold", req.ConfidenceThreshold),
		logging.Bool("recursive", req.Recursive),
	)
	c.ledgerCall(runCtx, "run started", func(l Ledger) error {
		return l.RunStarted(runCtx, store.Run{
			ID:                  run.ID(),
			DatasetRoot:         req.Root,
			Recursive:           req.Recursive,
			ConfidenceThreshold: req.ConfidenceThreshold,
			Backend:             c.backendName,
			StartedAt:           startedAt,
		})
	})

	// Subscribe before returning so the first report is never missed.
	sub := run.Progress().Subscribe()
	go c.watch(runCtx, gen, run, sub, settled)
	return nil
}

// watch follows one run until it ends. Every signal is checked against gen
// so a reset run cannot touch newer state.
func (c *Controller) watch(ctx context.Context, gen uint64, run *detection.Run, sub *progress.Subscription, settled chan struct{}) {
	defer close(settled)
	logger := logging.WithContext(ctx, c.logger)

	for report := range sub.C() {
		if !c.observe(gen, run, report, logger) {
			sub.Cancel()
			return
		}
	}
	<-run.Done()

	if err := run.Err(); err != nil {
		c.runFailed(ctx, gen, run, err, logger)
		return
	}
	c.runSucceeded(ctx, gen, run, logger)
}

func (c *Controller) observe(gen uint64, run *detection.Run, report progress.Report, logger *slog.Logger) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	r := report
	c.latest = &r
	if c.sampler.ShouldLog(report.Percent, run.ID()) {
		logger.Info("detection progress",
			logging.Int("current", report.Current),
			logging.Int("total", report.Total),
			logging.Int("percent", report.Percent),
			logging.String("message", report.Message),
		)
	}
	return true
}

func (c *Controller) runSucceeded(ctx context.Context, gen uint64, run *detection.Run, logger *slog.Logger) {
	records := run.Records()
	summary := detection.Summarize(records)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.records = records
	if c.latest == nil || !c.latest.Final() {
		final := progress.New(len(records), len(records), detection.MessageComplete, "")
		if latest, ok := run.Progress().Latest(); ok && latest.Final() {
			final = latest
		}
		c.latest = &final
	}
	root := run.Request().Root
	elapsed := c.now().Sub(c.runStarted)
	c.setStateLocked(StateReviewing)
	c.mu.Unlock()

	logger.Info("detection complete",
		logging.Int("images", summary.Images),
		logging.Int("failed", summary.Failed),
		logging.Int("animals", summary.Animals),
		logging.Int("humans", summary.Humans),
		logging.Int("vehicles", summary.Vehicles),
		logging.Int("empty", summary.Empty),
	)
	c.ledgerCall(ctx, "run succeeded", func(l Ledger) error {
		return l.RunSucceeded(ctx, run.ID(), summary)
	})
	if err := c.notifier.NotifyDetectionComplete(ctx, root, summary, elapsed); err != nil {
		c.notifyFailed(logger, err)
	}
}

func (c *Controller) runFailed(ctx context.Context, gen uint64, run *detection.Run, err error, logger *slog.Logger) {
	if !errors.Is(err, services.ErrBackendFailure) {
		err = services.Wrap(services.ErrBackendFailure, "workflow", "detection", "run failed", err)
	}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.lastErr = err
	c.mu.Unlock()

	attrs := append(logging.ErrorAttrs(err), logging.String(logging.FieldErrorHint, "reset the workflow and start the detection again"))
	logging.ErrorWithContext(logger, "detection failed", "detection_failed", attrs...)
	c.ledgerCall(ctx, "run failed", func(l Ledger) error {
		return l.RunFailed(ctx, run.ID(), err.Error())
	})
	if nerr := c.notifier.NotifyError(ctx, err, "detection"); nerr != nil {
		c.notifyFailed(logger, nerr)
	}
}

func (c *Controller) notifyFailed(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "notification failed", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		logging.String(logging.FieldImpact, "completion notice not delivered"),
	)
}

// Subscribe attaches to the progress stream of the current run. It returns
// false when no run exists.
func (c *Controller) Subscribe() (*progress.Subscription, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.run == nil {
		return nil, false
	}
	return c.run.Progress().Subscribe(), true
}

// Settled returns a channel closed once the current run's outcome has been
// applied to the controller, or nil when no run exists.
func (c *Controller) Settled() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.settled == nil {
		return nil
	}
	return c.settled
}

// Records returns the records of the reviewed run.
func (c *Controller) Records() []detection.ImageRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]detection.ImageRecord, len(c.records))
	copy(out, c.records)
	return out
}
