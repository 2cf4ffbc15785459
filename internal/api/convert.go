package api

import (
	"time"

	"camtrap/internal/detection"
	"camtrap/internal/store"
)

// FromSummary converts a detection summary.
func FromSummary(s detection.Summary) Summary {
	return Summary{
		Images:   s.Images,
		Failed:   s.Failed,
		Empty:    s.Empty,
		Animals:  s.Animals,
		Humans:   s.Humans,
		Vehicles: s.Vehicles,
	}
}

// FromRun converts a ledger run to its API representation.
func FromRun(run store.Run) Run {
	return Run{
		ID:                  run.ID,
		DatasetRoot:         run.DatasetRoot,
		Recursive:           run.Recursive,
		ConfidenceThreshold: run.ConfidenceThreshold,
		Backend:             run.Backend,
		State:               string(run.State),
		Summary:             FromSummary(run.Summary),
		ErrorMessage:        run.ErrorMessage,
		StartedAt:           formatTime(run.StartedAt),
		FinishedAt:          formatOptionalTime(run.FinishedAt),
	}
}

// FromRuns converts a slice of ledger runs.
func FromRuns(runs []store.Run) []Run {
	out := make([]Run, 0, len(runs))
	for _, run := range runs {
		out = append(out, FromRun(run))
	}
	return out
}

// FromExportRecord converts a recorded export job.
func FromExportRecord(rec store.ExportRecord) Export {
	return Export{
		ID:           rec.ID,
		Format:       rec.Format,
		OutputPath:   rec.OutputPath,
		State:        string(rec.State),
		Images:       rec.Images,
		ErrorMessage: rec.ErrorMessage,
		CreatedAt:    formatTime(rec.CreatedAt),
		FinishedAt:   formatOptionalTime(rec.FinishedAt),
	}
}

// FromExportRecords converts recorded export jobs.
func FromExportRecords(records []store.ExportRecord) []Export {
	if len(records) == 0 {
		return nil
	}
	out := make([]Export, 0, len(records))
	for _, rec := range records {
		out = append(out, FromExportRecord(rec))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
