package progress

import (
	"sync"
	"time"
)

// DefaultETAWindow is the number of recent item durations averaged for ETA.
const DefaultETAWindow = 100

// Estimator predicts remaining time from a moving average of recent
// per-item durations.
type Estimator struct {
	mu      sync.Mutex
	window  []time.Duration
	next    int
	filled  int
	sum     time.Duration
	lastTic time.Time
	now     func() time.Time
}

// NewEstimator builds an estimator over the last size durations.
func NewEstimator(size int) *Estimator {
	if size <= 0 {
		size = DefaultETAWindow
	}
	return &Estimator{window: make([]time.Duration, size), now: time.Now}
}

// Start marks the beginning of the first item.
func (e *Estimator) Start() {
	e.mu.Lock()
	e.lastTic = e.now()
	e.mu.Unlock()
}

// Tick records that one item finished since the previous Tick (or Start).
func (e *Estimator) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	if !e.lastTic.IsZero() {
		e.observeLocked(now.Sub(e.lastTic))
	}
	e.lastTic = now
}

// Observe adds a measured item duration.
func (e *Estimator) Observe(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observeLocked(d)
}

func (e *Estimator) observeLocked(d time.Duration) {
	if d < 0 {
		d = 0
	}
	e.sum -= e.window[e.next]
	e.window[e.next] = d
	e.sum += d
	e.next = (e.next + 1) % len(e.window)
	if e.filled < len(e.window) {
		e.filled++
	}
}

// Remaining estimates the time left for the given number of items. The
// second result is false until at least one duration has been observed.
func (e *Estimator) Remaining(items int) (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.filled == 0 {
		return 0, false
	}
	if items <= 0 {
		return 0, true
	}
	avg := e.sum / time.Duration(e.filled)
	return avg * time.Duration(items), true
}
