package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"camtrap/internal/api"
	"camtrap/internal/config"
	"camtrap/internal/logging"
	"camtrap/internal/notifications"
	"camtrap/internal/store"
	"camtrap/internal/workflow"
)

// Daemon serves one workflow controller and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	workflow *workflow.Controller
	notifier notifications.Service
	backend  string

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithNotifier sets the service used by TestNotification.
func WithNotifier(n notifications.Service) Option {
	return func(d *Daemon) { d.notifier = n }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, wf *workflow.Controller, opts ...Option) (*Daemon, error) {
	if cfg == nil || st == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow controller")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		workflow: wf,
		notifier: notifications.NewService(cfg),
		backend:  cfg.Detection.Backend,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, closes out runs left over from a previous
// process, opens the workflow, and starts the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another camtrapd instance is already running")
	}

	abandoned, err := d.store.AbandonRunning(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("close stale runs: %w", err)
	}
	if abandoned > 0 {
		logging.WarnWithContext(d.logger, "stale runs marked abandoned", "stale_runs_abandoned",
			logging.Int64("runs", abandoned),
			logging.String(logging.FieldErrorHint, "a previous daemon exited during detection; rerun those datasets"),
			logging.String(logging.FieldImpact, "unfinished runs are listed as abandoned"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Open(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("open workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("camtrap daemon started",
		logging.String("lock", d.lockPath),
		logging.String("ledger", d.store.Path()),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop shuts the API down, detaches any run, waits for exports, and
// releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.workflow.Reset(context.Background())
	d.workflow.WaitExports()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start reports a running instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("camtrap daemon stopped")
}

// Close stops the daemon and closes the ledger.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Address returns the API listen address once started.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status() api.DaemonStatus {
	return api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LedgerPath:   d.store.Path(),
		LockFilePath: d.lockPath,
		Backend:      d.backend,
		Workflow:     d.workflow.Status(),
	}
}

// TestNotification sends a test notice using the configured topic.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
