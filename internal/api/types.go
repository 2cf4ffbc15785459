package api

import (
	"camtrap/internal/exportjob"
	"camtrap/internal/exports"
	"camtrap/internal/workflow"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Summary is the per-category image count of a run.
type Summary struct {
	Images   int `json:"images"`
	Failed   int `json:"failed"`
	Empty    int `json:"empty"`
	Animals  int `json:"animals"`
	Humans   int `json:"humans"`
	Vehicles int `json:"vehicles"`
}

// Run describes one ledger entry.
type Run struct {
	ID                  string   `json:"id"`
	DatasetRoot         string   `json:"datasetRoot"`
	Recursive           bool     `json:"recursive"`
	ConfidenceThreshold float64  `json:"confidenceThreshold"`
	Backend             string   `json:"backend,omitempty"`
	State               string   `json:"state"`
	Summary             Summary  `json:"summary"`
	ErrorMessage        string   `json:"errorMessage,omitempty"`
	StartedAt           string   `json:"startedAt"`
	FinishedAt          string   `json:"finishedAt,omitempty"`
	Exports             []Export `json:"exports,omitempty"`
}

// Export describes one recorded export job.
type Export struct {
	ID           string `json:"id"`
	Format       string `json:"formatId"`
	OutputPath   string `json:"outputPath"`
	State        string `json:"state"`
	Images       int    `json:"images"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	CreatedAt    string `json:"createdAt"`
	FinishedAt   string `json:"finishedAt,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool            `json:"running"`
	PID          int             `json:"pid"`
	LedgerPath   string          `json:"ledgerPath"`
	LockFilePath string          `json:"lockFilePath"`
	Backend      string          `json:"backend"`
	Workflow     workflow.Status `json:"workflow"`
}

// FormatsResponse lists the registered export formats.
type FormatsResponse struct {
	Formats []exports.Format `json:"formats"`
}

// IsDirectoryRequest asks whether Path is an existing directory.
type IsDirectoryRequest struct {
	Path string `json:"path"`
}

// IsDirectoryResponse answers IsDirectoryRequest.
type IsDirectoryResponse struct {
	Path        string `json:"path"`
	IsDirectory bool   `json:"isDirectory"`
}

// ExportsResponse wraps the export jobs of the current workflow.
type ExportsResponse struct {
	Exports []exportjob.Job `json:"exports"`
}

// RunsResponse wraps a page of ledger runs.
type RunsResponse struct {
	Runs []Run `json:"runs"`
}

// RunResponse wraps a single run with its exports.
type RunResponse struct {
	Run Run `json:"run"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Operation string `json:"operation,omitempty"`
	Cause     string `json:"cause,omitempty"`
}
