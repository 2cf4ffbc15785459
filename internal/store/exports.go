package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"camtrap/internal/exportjob"
)

// ExportRecord is one finished export job as kept in the ledger.
type ExportRecord struct {
	ID           string
	RunID        string
	Format       string
	OutputPath   string
	FilterJSON   string
	DrawJSON     string
	State        exportjob.State
	Images       int
	ErrorMessage string
	CreatedAt    time.Time
	FinishedAt   *time.Time
}

// RecordExport stores a terminal export job against runID. An empty runID
// stores the job without a run reference.
func (s *Store) RecordExport(ctx context.Context, runID string, job exportjob.Job) error {
	filterJSON, err := marshalOptional(job.Filter)
	if err != nil {
		return fmt.Errorf("marshal filter: %w", err)
	}
	drawJSON, err := marshalOptional(job.Draw)
	if err != nil {
		return fmt.Errorf("marshal draw: %w", err)
	}
	_, err = s.exec(ctx,
		`INSERT INTO export_jobs (id, run_id, format, output_path, filter_json, draw_json,
		     state, images, error_message, created_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET state = excluded.state, images = excluded.images,
		     error_message = excluded.error_message, finished_at = excluded.finished_at`,
		job.ID, nullableString(runID), job.Format, job.OutputPath,
		nullableString(filterJSON), nullableString(drawJSON),
		job.State, job.Images, nullableString(job.Error),
		job.CreatedAt.UTC().Format(timeLayout), nullableTime(job.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert export job: %w", err)
	}
	return nil
}

// ListExports returns the exports recorded for runID, oldest first.
func (s *Store) ListExports(ctx context.Context, runID string) ([]ExportRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, run_id, format, output_path, filter_json, draw_json, state, images,
		        error_message, created_at, finished_at
		 FROM export_jobs WHERE run_id = ? ORDER BY created_at, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	var out []ExportRecord
	for rows.Next() {
		var (
			rec                            ExportRecord
			run, filter, draw, errMsg, fin sql.NullString
			created                        string
		)
		if err := rows.Scan(&rec.ID, &run, &rec.Format, &rec.OutputPath, &filter, &draw,
			&rec.State, &rec.Images, &errMsg, &created, &fin); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		rec.RunID = run.String
		rec.FilterJSON = filter.String
		rec.DrawJSON = draw.String
		rec.ErrorMessage = errMsg.String
		rec.CreatedAt = parseTime(created)
		rec.FinishedAt = parseNullTime(fin)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func marshalOptional[T any](v *T) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
