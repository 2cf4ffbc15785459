package workflow

import (
	"camtrap/internal/detection"
	"camtrap/internal/services"
)

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.RLock()
	st := Status{
		State:  c.state,
		Config: c.config,
	}
	if c.selection != nil {
		sel := *c.selection
		st.Selection = &sel
	}
	if c.run != nil {
		st.RunID = c.run.ID()
		started := c.runStarted.UTC()
		st.StartedAt = &started
	}
	if c.latest != nil {
		report := *c.latest
		st.Progress = &report
	}
	if c.state == StateReviewing {
		summary := detection.Summarize(c.records)
		st.Summary = &summary
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
		st.LastErrorKind = services.Kind(c.lastErr)
	}
	c.mu.RUnlock()

	st.Exports = c.runner.Jobs()
	return st
}
