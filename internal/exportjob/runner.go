package exportjob

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"camtrap/internal/criteria"
	"camtrap/internal/exports"
	"camtrap/internal/logging"
	"camtrap/internal/services"
)

// Exporter performs the export work for one job.
type Exporter interface {
	Export(ctx context.Context, format exports.Format, ds exports.Dataset, outputPath string, filter criteria.Filter, render criteria.Draw) (exports.Result, error)
}

// Hook observes a job once it reaches a terminal state.
type Hook func(Job)

type entry struct {
	job    Job
	cancel context.CancelFunc
}

// Runner executes export jobs.
type Runner struct {
	registry *exports.Registry
	exporter Exporter
	logger   *slog.Logger
	hooks    []Hook
	now      func() time.Time
	newID    func() string

	mu         sync.Mutex
	generation uint64
	entries    []*entry
	wg         sync.WaitGroup
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithHook registers a completion hook. Hooks run on the job goroutine, in
// registration order, outside the runner lock.
func WithHook(hook Hook) Option {
	return func(r *Runner) {
		if hook != nil {
			r.hooks = append(r.hooks, hook)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner builds a runner over registry and exporter.
func NewRunner(registry *exports.Registry, exporter Exporter, opts ...Option) *Runner {
	r := &Runner{
		registry: registry,
		exporter: exporter,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "exportjob")
	return r
}

// Submit validates req and starts the export in the background. The
// returned job is a snapshot in the pending state.
func (r *Runner) Submit(ctx context.Context, req Request) (Job, error) {
	format, err := r.registry.Lookup(req.Format)
	if err != nil {
		return Job{}, err
	}
	if err := r.registry.ValidateTarget(format.ID, req.OutputPath); err != nil {
		return Job{}, err
	}
	filter := criteria.DefaultFilter()
	if req.Filter != nil {
		filter = *req.Filter
	}
	if err := filter.Validate(); err != nil {
		return Job{}, services.Wrap(services.ErrInvalidSelection, format.ID, "submit", "filter criteria", err)
	}
	render := criteria.DefaultDraw()
	if req.Draw != nil {
		render = *req.Draw
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.job.Format == format.ID && e.job.State.InFlight() {
			return Job{}, services.Wrap(services.ErrDuplicateExportInFlight, format.ID, "submit",
				fmt.Sprintf("job %s is still %s", e.job.ID, e.job.State), nil)
		}
	}

	job := Job{
		ID:         r.newID(),
		Format:     format.ID,
		OutputPath: req.OutputPath,
		State:      StatePending,
		CreatedAt:  r.now().UTC(),
	}
	if req.Filter != nil {
		job.Filter = &filter
	}
	if req.Draw != nil {
		job.Draw = &render
	}
	jobCtx := services.WithFormat(services.WithJobID(context.WithoutCancel(ctx), job.ID), format.ID)
	jobCtx, cancel := context.WithCancel(jobCtx)
	e := &entry{job: job, cancel: cancel}
	r.entries = append(r.entries, e)

	gen := r.generation
	r.wg.Add(1)
	go r.execute(jobCtx, gen, e, format, req.Dataset, filter, render)

	return job, nil
}

func (r *Runner) execute(ctx context.Context, gen uint64, e *entry, format exports.Format, ds exports.Dataset, filter criteria.Filter, render criteria.Draw) {
	defer r.wg.Done()
	defer e.cancel()
	logger := logging.WithContext(ctx, r.logger)

	if !r.transition(gen, e, func(j *Job) {
		started := r.now().UTC()
		j.State = StateRunning
		j.StartedAt = &started
	}) {
		return
	}
	output := e.job.OutputPath
	logger.Info("export started", logging.String("output", output))

	result, err := r.exporter.Export(ctx, format, ds, output, filter, render)

	var final Job
	ok := r.transition(gen, e, func(j *Job) {
		finished := r.now().UTC()
		j.FinishedAt = &finished
		if err != nil {
			j.State = StateFailed
			j.Error = err.Error()
			j.ErrorKind = services.Kind(err)
		} else {
			j.State = StateSucceeded
			j.Images = result.Images
		}
		final = *j
	})
	if !ok {
		logger.Debug("export finished after reset; result discarded")
		return
	}

	if err != nil {
		attrs := append(logging.ErrorAttrs(err), logging.String(logging.FieldErrorHint, "check the output path and resubmit the export"))
		logging.ErrorWithContext(logger, "export failed", "export_failed", attrs...)
	} else {
		logger.Info("export succeeded",
			logging.Int("images", final.Images),
			logging.Duration("duration", final.Duration()),
		)
	}
	for _, hook := range r.hooks {
		hook(final)
	}
}

// transition applies fn to the job if gen is still current. It returns false
// once the runner has been reset past gen.
func (r *Runner) transition(gen uint64, e *entry, fn func(*Job)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		return false
	}
	fn(&e.job)
	return true
}

// Jobs returns snapshots of every job since the last Reset, oldest first.
func (r *Runner) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.job)
	}
	return out
}

// Job returns the job with the given id.
func (r *Runner) Job(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := slices.IndexFunc(r.entries, func(e *entry) bool { return e.job.ID == id })
	if idx < 0 {
		return Job{}, false
	}
	return r.entries[idx].job, true
}

// Active reports whether any job is pending or running.
func (r *Runner) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.ContainsFunc(r.entries, func(e *entry) bool { return e.job.State.InFlight() })
}

// Reset discards every job record. In-flight jobs are cancelled best effort
// and their outcomes are ignored.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.job.State.InFlight() {
			e.cancel()
		}
	}
	r.entries = nil
	r.generation++
}

// Wait blocks until every started job goroutine has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}
