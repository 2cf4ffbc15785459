package detection

import (
	"context"
	"errors"
	"sync"

	"camtrap/internal/progress"
)

const (
	MessageLoading  = "Loading detector..."
	MessageProgress = "Processing"
	MessageComplete = "Processing Complete"
)

// Request is the input of a detection job.
type Request struct {
	Root                string
	ConfidenceThreshold float64
	Recursive           bool
}

// Backend starts detection jobs. StartDetection returns once the job is
// acknowledged; the returned Run reports everything after that.
type Backend interface {
	StartDetection(ctx context.Context, req Request) (*Run, error)
}

// Run is the producer side and the observable state of one detection job.
// Backends drive it through Publish, Succeed, and Fail.
type Run struct {
	id       string
	req      Request
	ctx      context.Context
	cancel   context.CancelFunc
	progress *progress.Channel
	done     chan struct{}

	mu      sync.Mutex
	records []ImageRecord
	err     error
	ended   bool
}

// NewRun creates a run bound to a child of ctx.
func NewRun(ctx context.Context, id string, req Request) *Run {
	runCtx, cancel := context.WithCancel(ctx)
	return &Run{
		id:       id,
		req:      req,
		ctx:      runCtx,
		cancel:   cancel,
		progress: progress.NewChannel(),
		done:     make(chan struct{}),
	}
}

func (r *Run) ID() string { return r.id }

func (r *Run) Request() Request { return r.req }

// Context is cancelled when the run is cancelled or ends.
func (r *Run) Context() context.Context { return r.ctx }

// Progress returns the run's progress stream.
func (r *Run) Progress() *progress.Channel { return r.progress }

// Done is closed once Succeed or Fail has been called.
func (r *Run) Done() <-chan struct{} { return r.done }

// Err returns the failure, if any, once Done is closed.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Records returns a copy of the results. It is empty until the run succeeds.
func (r *Run) Records() []ImageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ImageRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Cancel asks the producer to stop. It does not end the run by itself.
func (r *Run) Cancel() { r.cancel() }

// Publish forwards a report to the progress stream.
func (r *Run) Publish(report progress.Report) error {
	return r.progress.Publish(report)
}

// Succeed stores the records, publishes the completion report if the
// producer has not, and ends the run. Records are visible before the
// completion report is observed.
func (r *Run) Succeed(records []ImageRecord) {
	r.mu.Lock()
	if r.ended {
		r.mu.Unlock()
		return
	}
	r.records = records
	r.mu.Unlock()

	if !r.progress.Completed() {
		total := len(records)
		if latest, ok := r.progress.Latest(); ok {
			total = latest.Total
		}
		final := progress.New(total, total, MessageComplete, "").WithETA(0)
		if err := r.progress.Publish(final); err != nil && !errors.Is(err, progress.ErrClosed) {
			r.progress.Close()
		}
	}
	r.end(nil)
}

// Fail ends the run with err. The progress stream closes without a
// completion report.
func (r *Run) Fail(err error) {
	if err == nil {
		err = errors.New("detection failed")
	}
	r.progress.Close()
	r.end(err)
}

func (r *Run) end(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return
	}
	r.ended = true
	r.err = err
	r.cancel()
	close(r.done)
}
