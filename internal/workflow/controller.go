package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"camtrap/internal/detection"
	"camtrap/internal/exportjob"
	"camtrap/internal/exports"
	"camtrap/internal/fileutil"
	"camtrap/internal/logging"
	"camtrap/internal/notifications"
	"camtrap/internal/progress"
	"camtrap/internal/services"
)

// resetReason is recorded in the ledger for runs detached by Reset.
const resetReason = "reset while detecting"

// Controller is the WorkflowController.
type Controller struct {
	backend     detection.Backend
	backendName string
	registry    *exports.Registry
	runner      *exportjob.Runner
	presenter   Presenter
	ledger      Ledger
	notifier    notifications.Service
	logger      *slog.Logger
	sampler     *logging.ProgressSampler
	defaults    Config
	now         func() time.Time

	mu         sync.RWMutex
	state      State
	starting   bool
	revealed   bool
	generation uint64
	selection  *Selection
	config     Config
	run        *detection.Run
	runStarted time.Time
	settled    chan struct{}
	latest     *progress.Report
	records    []detection.ImageRecord
	lastErr    error
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithPresenter sets the presentation layer revealed by Open.
func WithPresenter(p Presenter) Option {
	return func(c *Controller) { c.presenter = p }
}

// WithLedger records runs and exports in l.
func WithLedger(l Ledger) Option {
	return func(c *Controller) { c.ledger = l }
}

// WithNotifier sends completion notices through n.
func WithNotifier(n notifications.Service) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithDefaults sets the DetectionConfig restored by Reset.
func WithDefaults(cfg Config) Option {
	return func(c *Controller) { c.defaults = cfg }
}

// WithBackendName labels runs in the ledger.
func WithBackendName(name string) Option {
	return func(c *Controller) { c.backendName = name }
}

// WithRegistry overrides the export format registry.
func WithRegistry(r *exports.Registry) Option {
	return func(c *Controller) { c.registry = r }
}

// New builds a controller in the Idle state.
func New(backend detection.Backend, exporter exportjob.Exporter, opts ...Option) *Controller {
	c := &Controller{
		backend:  backend,
		registry: exports.DefaultRegistry(),
		notifier: notifications.NewNoop(),
		sampler:  logging.NewProgressSampler(5),
		defaults: Config{ConfidenceThreshold: 0.2},
		now:      time.Now,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "workflow")
	c.config = c.defaults
	c.runner = exportjob.NewRunner(c.registry, exporter,
		exportjob.WithLogger(c.logger),
		exportjob.WithHook(c.exportFinished),
	)
	return c
}

// Registry returns the export format registry.
func (c *Controller) Registry() *exports.Registry { return c.registry }

// State returns the current workflow state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Open moves Idle to Selecting and reveals the presentation layer. Calling
// it in any other state does nothing.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(StateSelecting)
	reveal := !c.revealed
	c.revealed = true
	c.mu.Unlock()

	if reveal && c.presenter != nil {
		if err := c.presenter.Reveal(ctx); err != nil {
			logging.WarnWithContext(c.logger, "presenter reveal failed", "reveal_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the controller is usable; check the presentation layer"),
				logging.String(logging.FieldImpact, "no user interface was shown"),
			)
		}
	}
	return nil
}

// Select records the dataset to process. The path must be an existing
// directory and is stored in absolute form.
func (c *Controller) Select(sel Selection) error {
	root := strings.TrimSpace(sel.RootPath)
	if !fileutil.IsDirectory(root) {
		return services.Wrap(services.ErrInvalidSelection, "workflow", "select",
			fmt.Sprintf("%q is not a directory", sel.RootPath), nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return services.Wrap(services.ErrInvalidSelection, "workflow", "select", "resolve path", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireSelectingLocked("select"); err != nil {
		return err
	}
	c.selection = &Selection{RootPath: abs, IncludeSubfolders: sel.IncludeSubfolders}
	c.logger.Info("dataset selected",
		logging.String("root", abs),
		logging.Bool("recursive", sel.IncludeSubfolders),
	)
	return nil
}

// Configure replaces the DetectionConfig.
func (c *Controller) Configure(cfg Config) error {
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return services.Wrap(services.ErrInvalidSelection, "workflow", "configure",
			fmt.Sprintf("confidence threshold %v outside [0,1]", cfg.ConfidenceThreshold), nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireSelectingLocked("configure"); err != nil {
		return err
	}
	c.config = cfg
	return nil
}

func (c *Controller) requireSelectingLocked(op string) error {
	if c.state != StateSelecting || c.starting {
		state := c.state
		if c.starting {
			state = StateDetecting
		}
		return services.Wrap(services.ErrJobStartRejected, "workflow", op,
			fmt.Sprintf("not allowed while %s", state), nil)
	}
	return nil
}

func (c *Controller) setStateLocked(next State) {
	if c.state == next {
		return
	}
	c.logger.Info("workflow state changed",
		logging.String("from", string(c.state)),
		logging.String(logging.FieldState, string(next)),
	)
	c.state = next
}

// Reset discards the selection, the run and every export record, restoring
// Selecting (or leaving Idle untouched). A run still detecting is cancelled
// best effort and ignored from then on.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	c.generation++
	detached := c.run
	detachedDone := false
	if detached != nil {
		select {
		case <-detached.Done():
			detachedDone = true
		default:
		}
	}
	wasDetecting := c.state == StateDetecting
	if c.state != StateIdle {
		c.setStateLocked(StateSelecting)
	}
	c.selection = nil
	c.config = c.defaults
	c.run = nil
	c.settled = nil
	c.latest = nil
	c.records = nil
	c.lastErr = nil
	c.sampler.Reset()
	c.mu.Unlock()

	c.runner.Reset()
	if detached != nil {
		detached.Cancel()
		if wasDetecting && !detachedDone {
			c.ledgerCall(ctx, "run abandoned", func(l Ledger) error {
				return l.RunAbandoned(ctx, detached.ID(), resetReason)
			})
		}
	}
	c.logger.Info("workflow reset")
}

// WaitExports blocks until every export submitted so far has returned.
func (c *Controller) WaitExports() {
	c.runner.Wait()
}

func (c *Controller) ledgerCall(ctx context.Context, what string, fn func(Ledger) error) {
	if c.ledger == nil {
		return
	}
	if err := fn(c.ledger); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "ledger update failed", "ledger_failed",
			logging.String("update", what),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the data directory; history may be incomplete"),
			logging.String(logging.FieldImpact, "run history not recorded"),
		)
	}
}
