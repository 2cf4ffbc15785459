package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"camtrap/internal/detection"
)

// RunState is the ledger lifecycle of a detection run.
type RunState string

const (
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
	// RunAbandoned marks runs that were detached by a reset or were still
	// running when the process exited.
	RunAbandoned RunState = "abandoned"
)

// AbandonedReason is the error message recorded for runs found running at startup.
const AbandonedReason = "process exited before the run finished"

// Run is one ledger row.
type Run struct {
	ID                  string
	DatasetRoot         string
	Recursive           bool
	ConfidenceThreshold float64
	Backend             string
	State               RunState
	Summary             detection.Summary
	ErrorMessage        string
	StartedAt           time.Time
	FinishedAt          *time.Time
}

const runColumns = `id, dataset_root, recursive, confidence_threshold, backend, state,
	images, failed_images, empty_images, animal_images, human_images, vehicle_images,
	error_message, started_at, finished_at`

// RunStarted records a new run in the running state.
func (s *Store) RunStarted(ctx context.Context, run Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.exec(ctx,
		`INSERT INTO runs (id, dataset_root, recursive, confidence_threshold, backend, state, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.DatasetRoot, run.Recursive, run.ConfidenceThreshold, run.Backend,
		RunRunning, run.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RunSucceeded stores the record tallies and marks the run succeeded.
func (s *Store) RunSucceeded(ctx context.Context, id string, summary detection.Summary) error {
	return s.finishRun(ctx, id, RunSucceeded, summary, "")
}

// RunFailed marks the run failed with message.
func (s *Store) RunFailed(ctx context.Context, id, message string) error {
	return s.finishRun(ctx, id, RunFailed, detection.Summary{}, message)
}

// RunAbandoned marks a run that will never report back.
func (s *Store) RunAbandoned(ctx context.Context, id, message string) error {
	return s.finishRun(ctx, id, RunAbandoned, detection.Summary{}, message)
}

func (s *Store) finishRun(ctx context.Context, id string, state RunState, sum detection.Summary, message string) error {
	now := time.Now().UTC()
	res, err := s.exec(ctx,
		`UPDATE runs SET state = ?, images = ?, failed_images = ?, empty_images = ?,
		     animal_images = ?, human_images = ?, vehicle_images = ?,
		     error_message = ?, finished_at = ?
		 WHERE id = ? AND state = ?`,
		state, sum.Images, sum.Failed, sum.Empty, sum.Animals, sum.Humans, sum.Vehicles,
		nullableString(message), nullableTime(&now), id, RunRunning,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: no running run with that id", id)
	}
	return nil
}

// AbandonRunning marks every run still in the running state as abandoned.
// The daemon calls this at startup. Returns the number of rows changed.
func (s *Store) AbandonRunning(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	res, err := s.exec(ctx,
		`UPDATE runs SET state = ?, error_message = ?, finished_at = ? WHERE state = ?`,
		RunAbandoned, AbandonedReason, nullableTime(&now), RunRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("abandon running runs: %w", err)
	}
	return res.RowsAffected()
}

// GetRun returns the run with id, or nil when it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run       Run
		errMsg    sql.NullString
		startedAt string
		finished  sql.NullString
	)
	if err := scanner.Scan(
		&run.ID, &run.DatasetRoot, &run.Recursive, &run.ConfidenceThreshold, &run.Backend, &run.State,
		&run.Summary.Images, &run.Summary.Failed, &run.Summary.Empty,
		&run.Summary.Animals, &run.Summary.Humans, &run.Summary.Vehicles,
		&errMsg, &startedAt, &finished,
	); err != nil {
		return nil, err
	}
	run.ErrorMessage = errMsg.String
	run.StartedAt = parseTime(startedAt)
	run.FinishedAt = parseNullTime(finished)
	return &run, nil
}
