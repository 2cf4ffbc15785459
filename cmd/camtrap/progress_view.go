package main

import (
	"fmt"
	"io"
	"time"

	prettyprogress "github.com/jedib0t/go-pretty/v6/progress"

	"camtrap/internal/progress"
)

// progressView renders detection progress. Terminals get a live bar;
// anything else gets one line per ten percent.
type progressView interface {
	update(progress.Report)
	finish(ok bool)
}

func newProgressView(out io.Writer) progressView {
	if isTerminal(out) {
		return newBarView(out)
	}
	return &lineView{out: out, lastBucket: -1}
}

type lineView struct {
	out        io.Writer
	lastBucket int
}

func (v *lineView) update(r progress.Report) {
	bucket := r.Percent / 10
	if bucket == v.lastBucket && !r.Final() {
		return
	}
	v.lastBucket = bucket
	fmt.Fprintf(v.out, "%3d%% %d/%d %s\n", r.Percent, r.Current, r.Total, r.Message)
}

func (v *lineView) finish(bool) {}

type barView struct {
	writer  prettyprogress.Writer
	tracker *prettyprogress.Tracker
	done    chan struct{}
}

func newBarView(out io.Writer) *barView {
	pw := prettyprogress.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(40)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetStyle(prettyprogress.StyleDefault)

	v := &barView{writer: pw, done: make(chan struct{})}
	go func() {
		defer close(v.done)
		pw.Render()
	}()
	return v
}

func (v *barView) update(r progress.Report) {
	if v.tracker == nil {
		if r.Total == 0 {
			return
		}
		v.tracker = &prettyprogress.Tracker{
			Message: "Detecting",
			Total:   int64(r.Total),
			Units:   prettyprogress.UnitsDefault,
		}
		v.writer.AppendTracker(v.tracker)
	}
	v.tracker.SetValue(int64(r.Current))
}

func (v *barView) finish(ok bool) {
	if v.tracker != nil {
		if ok {
			v.tracker.MarkAsDone()
		} else {
			v.tracker.MarkAsErrored()
		}
	}
	// Give the renderer one frame to draw the final state.
	time.Sleep(150 * time.Millisecond)
	// Stop is a no-op until Render has started.
	for i := 0; i < 50 && !v.writer.IsRenderInProgress(); i++ {
		time.Sleep(10 * time.Millisecond)
	}
	v.writer.Stop()
	<-v.done
}
