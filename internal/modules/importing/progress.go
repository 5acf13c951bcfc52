package importing

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ProgressSink receives coarse progress updates from the import
// pipeline. The pipeline takes the sink explicitly, so the same code
// runs identically whether invoked synchronously or from a background
// worker.
type ProgressSink interface {
	Report(percent int, message string)
}

// NopSink discards progress updates. Used by tests and callers that
// don't poll.
type NopSink struct{}

// Report implements ProgressSink
func (NopSink) Report(int, string) {}

// ImportRun is one import's durable progress record
type ImportRun struct {
	ID         string     `json:"id"`
	AccountID  int64      `json:"account_id"`
	Status     string     `json:"status"`
	Percent    int        `json:"percent"`
	Message    string     `json:"message"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// RunRepository persists import-run progress so pollers can observe a
// run executing in a disconnected background worker.
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("repo", "import_run").Logger(),
	}
}

// Create records the start of a run
func (r *RunRepository) Create(id string, accountID int64) error {
	_, err := r.db.Exec(
		"INSERT INTO import_runs (id, account_id, status, percent, message, started_at) VALUES (?, ?, ?, 0, '', ?)",
		id, accountID, RunStatusRunning, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create import run: %w", err)
	}
	return nil
}

// Get returns a run by id, or nil when unknown
func (r *RunRepository) Get(id string) (*ImportRun, error) {
	var run ImportRun
	var startedAt string
	var finishedAt sql.NullString

	err := r.db.QueryRow(
		"SELECT id, account_id, status, percent, message, started_at, finished_at FROM import_runs WHERE id = ?",
		id,
	).Scan(&run.ID, &run.AccountID, &run.Status, &run.Percent, &run.Message, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query import run: %w", err)
	}

	if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
		run.StartedAt = t
	}
	if finishedAt.Valid {
		if t, err := time.Parse(time.RFC3339, finishedAt.String); err == nil {
			run.FinishedAt = &t
		}
	}
	return &run, nil
}

// Finish marks a run completed or failed
func (r *RunRepository) Finish(id, status, message string) error {
	_, err := r.db.Exec(
		"UPDATE import_runs SET status = ?, percent = 100, message = ?, finished_at = ? WHERE id = ?",
		status, message, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish import run: %w", err)
	}
	return nil
}

// DurableSink writes progress updates through to the run row
type DurableSink struct {
	runs  *RunRepository
	runID string
	log   zerolog.Logger
}

// NewDurableSink creates a sink bound to one run
func NewDurableSink(runs *RunRepository, runID string, log zerolog.Logger) *DurableSink {
	return &DurableSink{runs: runs, runID: runID, log: log}
}

// Report implements ProgressSink. A failed progress write never fails
// the import itself.
func (s *DurableSink) Report(percent int, message string) {
	_, err := s.runs.db.Exec(
		"UPDATE import_runs SET percent = ?, message = ? WHERE id = ?",
		percent, message, s.runID,
	)
	if err != nil {
		s.log.Warn().Err(err).Str("run_id", s.runID).Msg("Failed to persist progress update")
	}
}
