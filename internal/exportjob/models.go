package exportjob

import (
	"time"

	"camtrap/internal/criteria"
	"camtrap/internal/exports"
)

// State represents the lifecycle of an export job.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions happen from s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// InFlight reports whether s blocks another job for the same format.
func (s State) InFlight() bool {
	return s == StatePending || s == StateRunning
}

// Job is the observable record of one export.
type Job struct {
	ID         string           `json:"id"`
	Format     string           `json:"formatId"`
	OutputPath string           `json:"outputPath"`
	Filter     *criteria.Filter `json:"filterCriteria,omitempty"`
	Draw       *criteria.Draw   `json:"drawCriteria,omitempty"`
	State      State            `json:"state"`
	Error      string           `json:"error,omitempty"`
	ErrorKind  string           `json:"errorKind,omitempty"`
	Images     int              `json:"images"`
	CreatedAt  time.Time        `json:"createdAt"`
	StartedAt  *time.Time       `json:"startedAt,omitempty"`
	FinishedAt *time.Time       `json:"finishedAt,omitempty"`
}

// Duration returns how long the job ran, or zero before it finished.
func (j Job) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}

// Request asks for one export. Filter and Draw are optional; omitted values
// fall back to criteria.DefaultFilter and criteria.DefaultDraw.
type Request struct {
	Format     string
	OutputPath string
	Filter     *criteria.Filter
	Draw       *criteria.Draw
	Dataset    exports.Dataset
}
