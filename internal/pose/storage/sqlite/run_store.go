package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BatchRun summarises one batch invocation.
type BatchRun struct {
	RunID      string `json:"run_id"`
	Detector   string `json:"detector"`
	InputDir   string `json:"input_dir"`
	OutputDir  string `json:"output_dir"`
	Processed  int    `json:"processed"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt *int64 `json:"finished_at,omitempty"`
}

// RunStore persists batch run summaries.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Start records a new run and fills in RunID and StartedAt when unset.
func (s *RunStore) Start(run *BatchRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAt == 0 {
		run.StartedAt = time.Now().UnixNano()
	}
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO batch_runs (run_id, detector, input_dir, output_dir, started_at)
			VALUES (?, ?, ?, ?, ?)`,
			run.RunID, run.Detector, run.InputDir, run.OutputDir, run.StartedAt)
		return err
	})
}

// Finish stores the final counts of a run.
func (s *RunStore) Finish(runID string, processed, skipped, failed int, finishedAt time.Time) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`
			UPDATE batch_runs
			SET processed = ?, skipped = ?, failed = ?, finished_at = ?
			WHERE run_id = ?`,
			processed, skipped, failed, finishedAt.UnixNano(), runID)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil
	})
}

// Get returns a run by ID.
func (s *RunStore) Get(runID string) (*BatchRun, error) {
	var r BatchRun
	var finished sql.NullInt64
	err := s.db.QueryRow(`
		SELECT run_id, detector, input_dir, output_dir,
		       processed, skipped, failed, started_at, finished_at
		FROM batch_runs WHERE run_id = ?`, runID).Scan(
		&r.RunID, &r.Detector, &r.InputDir, &r.OutputDir,
		&r.Processed, &r.Skipped, &r.Failed, &r.StartedAt, &finished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if finished.Valid {
		r.FinishedAt = &finished.Int64
	}
	return &r, nil
}
