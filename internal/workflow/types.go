package workflow

import (
	"context"
	"time"

	"camtrap/internal/criteria"
	"camtrap/internal/detection"
	"camtrap/internal/exportjob"
	"camtrap/internal/progress"
	"camtrap/internal/store"
)

// State is the workflow lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateSelecting State = "selecting"
	StateDetecting State = "detecting"
	StateReviewing State = "reviewing"
)

// Selection is the DatasetSelection: the folder to process.
type Selection struct {
	RootPath          string `json:"rootPath"`
	IncludeSubfolders bool   `json:"includeSubfolders"`
}

// Config is the DetectionConfig.
type Config struct {
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
}

// Presenter is the presentation layer the controller reveals once it is
// ready for input.
type Presenter interface {
	Reveal(ctx context.Context) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context) error

func (f PresenterFunc) Reveal(ctx context.Context) error { return f(ctx) }

// Ledger records run and export history. *store.Store satisfies it.
type Ledger interface {
	RunStarted(ctx context.Context, run store.Run) error
	RunSucceeded(ctx context.Context, id string, summary detection.Summary) error
	RunFailed(ctx context.Context, id, message string) error
	RunAbandoned(ctx context.Context, id, message string) error
	RecordExport(ctx context.Context, runID string, job exportjob.Job) error
}

// ExportRequest asks for one export of the reviewed dataset. An empty
// OutputPath uses the format's default name next to the dataset.
type ExportRequest struct {
	Format     string           `json:"formatId"`
	OutputPath string           `json:"outputPath,omitempty"`
	Filter     *criteria.Filter `json:"filterCriteria,omitempty"`
	Draw       *criteria.Draw   `json:"drawCriteria,omitempty"`
}

// Status is a point-in-time snapshot of the controller.
type Status struct {
	State         State              `json:"state"`
	Selection     *Selection         `json:"selection,omitempty"`
	Config        Config             `json:"config"`
	RunID         string             `json:"runId,omitempty"`
	StartedAt     *time.Time         `json:"startedAt,omitempty"`
	Progress      *progress.Report   `json:"progress,omitempty"`
	Summary       *detection.Summary `json:"summary,omitempty"`
	Exports       []exportjob.Job    `json:"exports"`
	LastError     string             `json:"lastError,omitempty"`
	LastErrorKind string             `json:"lastErrorKind,omitempty"`
}
