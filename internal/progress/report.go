// Package progress carries the ordered progress stream of a detection run.
//
// A Channel has one producer and any number of subscribers. It keeps no
// history: a subscriber first sees the latest report and then newer ones,
// and a slow subscriber only ever holds the newest report it has not read.
// The report with Current == Total is the last one and closes the channel.
package progress

import "time"

// Report is one progress snapshot. The JSON field names are part of the
// wire contract.
type Report struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
	Path    string `json:"path"`
	// ETA is the estimated remaining time in seconds; nil when unknown.
	ETA *float64 `json:"eta"`
}

// New builds a Report with Percent derived from current and total. A job
// with nothing to process is complete, so total == 0 yields 100.
func New(current, total int, message, path string) Report {
	return Report{
		Current: current,
		Total:   total,
		Percent: Percent(current, total),
		Message: message,
		Path:    path,
	}
}

// WithETA returns a copy of r carrying the given remaining duration.
func (r Report) WithETA(remaining time.Duration) Report {
	seconds := remaining.Seconds()
	r.ETA = &seconds
	return r
}

// Final reports whether r is the completion report of its job.
func (r Report) Final() bool {
	return r.Current == r.Total
}

// Percent returns floor(current*100/total), clamped to [0,100].
func Percent(current, total int) int {
	if total <= 0 {
		return 100
	}
	if current <= 0 {
		return 0
	}
	if current >= total {
		return 100
	}
	return int(int64(current) * 100 / int64(total))
}
