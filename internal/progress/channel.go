package progress

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrOutOfOrder rejects a report that moves Current backwards, exceeds
	// Total, or changes Total mid-job.
	ErrOutOfOrder = errors.New("progress report out of order")
	// ErrClosed rejects a report published after the channel closed.
	ErrClosed = errors.New("progress channel closed")
)

// Channel is the single-producer progress stream of one job.
type Channel struct {
	mu        sync.Mutex
	latest    Report
	hasLatest bool
	closed    bool
	completed bool
	subs      map[*Subscription]struct{}
	done      chan struct{}
}

// NewChannel returns an open channel with no reports.
func NewChannel() *Channel {
	return &Channel{
		subs: make(map[*Subscription]struct{}),
		done: make(chan struct{}),
	}
}

// Publish validates and fans out r. A final report closes the channel.
func (c *Channel) Publish(r Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if r.Current < 0 || r.Total < 0 {
		return fmt.Errorf("%w: negative counters %d/%d", ErrOutOfOrder, r.Current, r.Total)
	}
	if r.Current > r.Total {
		return fmt.Errorf("%w: current %d exceeds total %d", ErrOutOfOrder, r.Current, r.Total)
	}
	if c.hasLatest {
		if r.Total != c.latest.Total {
			return fmt.Errorf("%w: total changed from %d to %d", ErrOutOfOrder, c.latest.Total, r.Total)
		}
		if r.Current < c.latest.Current {
			return fmt.Errorf("%w: current %d after %d", ErrOutOfOrder, r.Current, c.latest.Current)
		}
	}
	r.Percent = Percent(r.Current, r.Total)

	c.latest = r
	c.hasLatest = true
	for sub := range c.subs {
		sub.offer(r)
	}
	if r.Final() {
		c.completed = true
		c.closeLocked()
	}
	return nil
}

// Close ends the stream without a completion report, as happens when the
// job fails. Closing twice is a no-op.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closeLocked()
	}
}

func (c *Channel) closeLocked() {
	c.closed = true
	for sub := range c.subs {
		sub.closeLocked()
	}
	c.subs = nil
	close(c.done)
}

// Subscribe registers a new consumer. When a report has already been
// published the subscription starts with it. Subscribing to a closed
// channel yields the latest report (if any) and then a closed stream.
func (c *Channel) Subscribe() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub := &Subscription{owner: c, ch: make(chan Report, 1)}
	if c.hasLatest {
		sub.ch <- c.latest
	}
	if c.closed {
		sub.closeLocked()
		return sub
	}
	c.subs[sub] = struct{}{}
	return sub
}

// Latest returns the most recent report.
func (c *Channel) Latest() (Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.hasLatest
}

// Done is closed once the channel closes for any reason.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Completed reports whether the channel closed on a final report.
func (c *Channel) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// Subscription is one consumer's view of a Channel.
type Subscription struct {
	owner  *Channel
	ch     chan Report
	closed bool
}

// C delivers reports in order. It is closed when the channel closes or the
// subscription is cancelled.
func (s *Subscription) C() <-chan Report {
	return s.ch
}

// Cancel detaches the subscription and closes its stream.
func (s *Subscription) Cancel() {
	c := s.owner
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.closed {
		return
	}
	delete(c.subs, s)
	s.closeLocked()
}

// offer replaces any unread report with r. Callers hold the owner's lock,
// which makes this the only sender.
func (s *Subscription) offer(r Report) {
	select {
	case <-s.ch:
	default:
	}
	s.ch <- r
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
