package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run statuses recorded in voter_import_runs.
const (
	RunStatusRunning    = "running"
	RunStatusAborted    = "aborted"
	RunStatusCompleted  = "completed"
	RunStatusViolations = "completed_with_violations"
	RunStatusFailed     = "failed"
)

// RunLog records import runs in the voter_import_runs registry table so
// operators can see what was loaded where, and when. It is bookkeeping
// around the engine, not part of the engine's correctness.
type RunLog struct {
	db *sql.DB
}

func NewRunLog(db *sql.DB) *RunLog { return &RunLog{db: db} }

// Start inserts a running entry for a new import.
func (l *RunLog) Start(ctx context.Context, runID, stateCode, table, sourceFile string, totalRows int) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO voter_import_runs
			(id, state_code, table_name, source_file, status, total_rows, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		runID, stateCode, table, sourceFile, RunStatusRunning, totalRows,
	)
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// Finish updates the entry with the run outcome.
func (l *RunLog) Finish(ctx context.Context, runID, status string, processed, inserted, violationCount int, errMsg string) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE voter_import_runs
		SET status = $2, processed_rows = $3, inserted_rows = $4,
			violation_count = $5, error_message = NULLIF($6, ''), finished_at = NOW()
		WHERE id = $1`,
		runID, status, processed, inserted, violationCount, errMsg,
	)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

// RunSummary is one row of the registry, as served by the API.
type RunSummary struct {
	ID             string     `json:"id"`
	StateCode      string     `json:"state_code"`
	TableName      string     `json:"table_name"`
	SourceFile     string     `json:"source_file"`
	Status         string     `json:"status"`
	TotalRows      int        `json:"total_rows"`
	ProcessedRows  int        `json:"processed_rows"`
	InsertedRows   int        `json:"inserted_rows"`
	ViolationCount int        `json:"violation_count"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// Recent lists the most recent runs, newest first.
func (l *RunLog) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, state_code, table_name, source_file, status,
			COALESCE(total_rows, 0), COALESCE(processed_rows, 0),
			COALESCE(inserted_rows, 0), COALESCE(violation_count, 0),
			started_at, finished_at
		FROM voter_import_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.StateCode, &r.TableName, &r.SourceFile, &r.Status,
			&r.TotalRows, &r.ProcessedRows, &r.InsertedRows, &r.ViolationCount,
			&r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
