package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"camtrap/internal/criteria"
	"camtrap/internal/detection"
	"camtrap/internal/exportjob"
	"camtrap/internal/exports"
	"camtrap/internal/store"
	"camtrap/internal/workflow"
)

// scriptedBackend acknowledges jobs and leaves the run for the test to drive.
type scriptedBackend struct {
	mu       sync.Mutex
	startErr error
	runs     []*detection.Run
	requests []detection.Request
}

func (b *scriptedBackend) StartDetection(ctx context.Context, req detection.Request) (*detection.Run, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	if b.startErr != nil {
		return nil, b.startErr
	}
	run := detection.NewRun(context.WithoutCancel(ctx), fmt.Sprintf("run-%d", len(b.runs)+1), req)
	b.runs = append(b.runs, run)
	return run, nil
}

func (b *scriptedBackend) lastRun(t *testing.T) *detection.Run {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.runs) == 0 {
		t.Fatal("no run started")
	}
	return b.runs[len(b.runs)-1]
}

// gatedExporter blocks each export until its format's gate is released.
type gatedExporter struct {
	mu    sync.Mutex
	gates map[string]chan error
}

func newGatedExporter() *gatedExporter {
	return &gatedExporter{gates: make(map[string]chan error)}
}

func (g *gatedExporter) gate(format string) chan error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[format]
	if !ok {
		ch = make(chan error, 1)
		g.gates[format] = ch
	}
	return ch
}

func (g *gatedExporter) Export(ctx context.Context, format exports.Format, ds exports.Dataset, _ string, _ criteria.Filter, _ criteria.Draw) (exports.Result, error) {
	select {
	case err := <-g.gate(format.ID):
		return exports.Result{Images: len(ds.Records)}, err
	case <-ctx.Done():
		return exports.Result{}, ctx.Err()
	}
}

func (g *gatedExporter) release(format string, err error) {
	g.gate(format) <- err
}

type recordingPresenter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *recordingPresenter) Reveal(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

type memoryLedger struct {
	mu      sync.Mutex
	events  []string
	exports []exportjob.Job
}

func (l *memoryLedger) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *memoryLedger) RunStarted(_ context.Context, run store.Run) error {
	l.add("started:" + run.ID)
	return nil
}

func (l *memoryLedger) RunSucceeded(_ context.Context, id string, _ detection.Summary) error {
	l.add("succeeded:" + id)
	return nil
}

func (l *memoryLedger) RunFailed(_ context.Context, id, _ string) error {
	l.add("failed:" + id)
	return nil
}

func (l *memoryLedger) RunAbandoned(_ context.Context, id, _ string) error {
	l.add("abandoned:" + id)
	return nil
}

func (l *memoryLedger) RecordExport(_ context.Context, runID string, job exportjob.Job) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, "export:"+runID+":"+job.Format+":"+string(job.State))
	l.exports = append(l.exports, job)
	return nil
}

func (l *memoryLedger) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) add(e string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) NotifyDetectionComplete(_ context.Context, _ string, s detection.Summary, _ time.Duration) error {
	n.add(fmt.Sprintf("detection:%d", s.Images))
	return nil
}

func (n *recordingNotifier) NotifyExportComplete(_ context.Context, format, _ string, images int) error {
	n.add(fmt.Sprintf("export:%s:%d", format, images))
	return nil
}

func (n *recordingNotifier) NotifyError(_ context.Context, err error, label string) error {
	n.add("error:" + label)
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return errors.New("unused") }

func (n *recordingNotifier) snapshot() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func waitSettled(t *testing.T, c *workflow.Controller) {
	t.Helper()
	ch := c.Settled()
	if ch == nil {
		t.Fatal("no run to wait for")
	}
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("run never settled")
	}
}

func waitExport(t *testing.T, c *workflow.Controller, id string, want exportjob.State) exportjob.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, job := range c.Exports() {
			if job.ID == id && job.State == want {
				return job
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("export %s never reached %s", id, want)
	return exportjob.Job{}
}

func records(root string, n int) []detection.ImageRecord {
	out := make([]detection.ImageRecord, 0, n)
	for i := 1; i <= n; i++ {
		rec := detection.ImageRecord{File: fmt.Sprintf("%s/img%02d.png", root, i), ImageWidth: 64, ImageHeight: 48}
		if i%2 == 0 {
			rec.Detections = []detection.Detection{{X: 0.1, Y: 0.1, Width: 0.3, Height: 0.3, Category: detection.Animal, Confidence: 0.9}}
		}
		out = append(out, rec)
	}
	return out
}
