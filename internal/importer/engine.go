// Package importer applies a frozen state profile to a raw row batch and
// loads the resulting canonical rows into the sink in bounded chunks.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/civicworks/voterbase/internal/address"
	"github.com/civicworks/voterbase/internal/pkg/distlock"
	"github.com/civicworks/voterbase/internal/pkg/logger"
	"github.com/civicworks/voterbase/internal/profile"
	"github.com/civicworks/voterbase/internal/schema"
	"github.com/civicworks/voterbase/internal/sink"
	"github.com/civicworks/voterbase/internal/source"
)

const (
	// DefaultChunkSize bounds how many rows are materialized and written
	// per sink append. Tuning knob, never user data.
	DefaultChunkSize = 10000

	// violationSampleSize bounds how many offending identifiers a report
	// carries; the full count is always reported.
	violationSampleSize = 5
)

// ErrDuplicateVoterIDs is returned when the pre-write scan finds the same
// voter identifier on more than one input row. The source extract is
// corrupt; nothing is written.
var ErrDuplicateVoterIDs = errors.New("duplicate voter identifiers in input batch")

// ErrTableLocked is returned when another run already holds the write lock
// on the destination table.
var ErrTableLocked = errors.New("another import holds the table lock")

// RunState tracks where an import invocation is in its lifecycle. There is
// no retry state: a failed run is re-invoked from scratch after the source
// is corrected.
type RunState string

const (
	StateNotStarted              RunState = "not_started"
	StateDuplicatesChecked       RunState = "duplicates_checked"
	StateAborted                 RunState = "aborted"
	StateImporting               RunState = "importing"
	StateCompleted               RunState = "completed"
	StateCompletedWithViolations RunState = "completed_with_violations"
)

// DuplicateReport summarizes the pre-write duplicate scan.
type DuplicateReport struct {
	Count  int      `json:"count"`
	Sample []string `json:"sample"`
}

// Result is the outcome of one import invocation.
type Result struct {
	RunID         string           `json:"run_id"`
	State         RunState         `json:"state"`
	Table         string           `json:"table"`
	TotalRows     int              `json:"total_rows"`
	ProcessedRows int              `json:"processed_rows"`
	InsertedRows  int              `json:"inserted_rows"`
	Duplicates    *DuplicateReport `json:"duplicates,omitempty"`
	Violations    []sink.Violation `json:"violations,omitempty"`
	Duration      time.Duration    `json:"duration_ns"`
}

// Options controls one import invocation.
type Options struct {
	// RunID identifies the run in progress tracking and the run
	// registry. Generated when empty; callers set it when they need the
	// id before the run starts.
	RunID string
	// Table is the destination table name.
	Table string
	// StateCode, when set, is stamped into the canonical state field and
	// wins over any state column the mapping found.
	StateCode string
	// SourceFile is recorded in the run registry.
	SourceFile string
	// Force drops and recreates the destination table before writing.
	Force bool
	// ChunkSize overrides DefaultChunkSize when positive.
	ChunkSize int
}

// Engine is the profile-driven import pipeline. One engine is safe to
// reuse across runs; overlapping runs against the same destination table
// are refused when a lock factory is wired.
type Engine struct {
	sink      sink.Sink
	progress  *Tracker
	runs      *sink.RunLog
	lock      LockFactory
	chunkSize int
}

// LockFactory builds the write lock guarding one destination table.
type LockFactory func(table string) distlock.Lock

// New creates an engine over a sink.
func New(s sink.Sink) *Engine {
	return &Engine{sink: s, chunkSize: DefaultChunkSize}
}

// SetProgressTracker wires Redis-backed progress reporting. Optional.
func (e *Engine) SetProgressTracker(t *Tracker) { e.progress = t }

// SetRunLog wires the import run registry. Optional.
func (e *Engine) SetRunLog(l *sink.RunLog) { e.runs = l }

// SetLockFactory wires distributed per-table locking. Optional; without it
// overlapping runs against one table are only guarded by the table's
// uniqueness constraint.
func (e *Engine) SetLockFactory(f LockFactory) { e.lock = f }

// Import applies a profile to a raw batch and writes canonical rows.
//
// Duplicate voter identifiers inside the batch abort the whole run before
// the sink is touched, so the destination table is exactly as it was.
// Identifier collisions with rows from prior runs surface per chunk, are
// accumulated, and reported once at the end; the non-colliding rows of
// every chunk still commit.
func (e *Engine) Import(ctx context.Context, prof *profile.Profile, batch *source.Batch, opts Options) (*Result, error) {
	start := time.Now()
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	res := &Result{
		RunID:     runID,
		State:     StateNotStarted,
		Table:     opts.Table,
		TotalRows: batch.Len(),
	}
	if opts.Table == "" {
		return res, errors.New("destination table is required")
	}
	if prof == nil {
		return res, errors.New("profile is required")
	}

	chunkSize := e.chunkSize
	if opts.ChunkSize > 0 {
		chunkSize = opts.ChunkSize
	}

	idx := batch.Lookup()

	// Full-batch duplicate scan before anything is written. Runs ahead of
	// table creation so an aborted run leaves the destination untouched,
	// even with Force set.
	res.State = StateDuplicatesChecked
	if voterCol := prof.VoterIDColumn(); voterCol != "" {
		if dup := scanDuplicates(batch, idx, voterCol); dup.Count > 0 {
			res.State = StateAborted
			res.Duplicates = dup
			res.Duration = time.Since(start)
			logger.Error("import aborted: duplicate voter ids in extract",
				"state", opts.StateCode, "count", dup.Count)
			e.recordAborted(ctx, res, opts)
			return res, fmt.Errorf("%w: %d rows share an identifier", ErrDuplicateVoterIDs, dup.Count)
		}
	}

	if e.lock != nil {
		lock := e.lock(opts.Table)
		held, err := lock.TryAcquire(ctx)
		if err != nil {
			return res, fmt.Errorf("lock table %s: %w", opts.Table, err)
		}
		if !held {
			return res, fmt.Errorf("%w: %s", ErrTableLocked, opts.Table)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release table lock", "table", opts.Table, "error", err)
			}
		}()
	}

	if err := e.sink.EnsureTable(ctx, opts.Table, opts.Force); err != nil {
		return res, err
	}
	if e.runs != nil {
		if err := e.runs.Start(ctx, res.RunID, opts.StateCode, opts.Table, opts.SourceFile, res.TotalRows); err != nil {
			logger.Warn("run registry unavailable", "error", err)
		}
	}

	res.State = StateImporting
	e.reportProgress(ctx, res, opts, "importing")

	mappedKeys := sortedMappingKeys(prof.ColumnMappings)
	rule := prof.AddressRule()

	for off := 0; off < batch.Len(); off += chunkSize {
		end := off + chunkSize
		if end > batch.Len() {
			end = batch.Len()
		}

		rows := make([]schema.Row, 0, end-off)
		for _, raw := range batch.Rows[off:end] {
			rows = append(rows, buildRow(prof, mappedKeys, rule, batch, idx, raw, opts.StateCode))
		}

		inserted, violations, err := e.sink.AppendChunk(ctx, opts.Table, rows)
		res.InsertedRows += inserted
		res.Violations = append(res.Violations, violations...)
		if err != nil {
			res.Duration = time.Since(start)
			e.recordFinish(ctx, res, sink.RunStatusFailed, err.Error())
			return res, fmt.Errorf("append chunk at row %d: %w", off, err)
		}

		res.ProcessedRows = end
		logger.Info("import progress",
			"state", opts.StateCode, "table", opts.Table,
			"processed", res.ProcessedRows, "total", res.TotalRows)
		e.reportProgress(ctx, res, opts, "importing")
	}

	res.Duration = time.Since(start)
	if len(res.Violations) > 0 {
		res.State = StateCompletedWithViolations
		logger.Warn("import completed with uniqueness violations",
			"table", opts.Table, "violations", len(res.Violations))
		e.recordFinish(ctx, res, sink.RunStatusViolations, "")
	} else {
		res.State = StateCompleted
		e.recordFinish(ctx, res, sink.RunStatusCompleted, "")
	}
	e.reportProgress(ctx, res, opts, "done")
	return res, nil
}

// Preview builds the canonical view of up to limit rows without touching
// the sink, plus the list of canonical columns the profile produces.
// Onboarding uses it to validate a new profile against a sample.
func Preview(prof *profile.Profile, batch *source.Batch, limit int) ([]schema.Row, []string) {
	idx := batch.Lookup()
	keys := sortedMappingKeys(prof.ColumnMappings)
	rule := prof.AddressRule()

	if limit <= 0 || limit > batch.Len() {
		limit = batch.Len()
	}
	rows := make([]schema.Row, 0, limit)
	for _, raw := range batch.Rows[:limit] {
		rows = append(rows, buildRow(prof, keys, rule, batch, idx, raw, ""))
	}

	// buildRow backfills every required field, so the column set carries
	// them even when the extract maps none of its columns there.
	seen := make(map[string]bool, len(keys)+1)
	for _, f := range schema.RequiredFields() {
		seen[f] = true
	}
	for _, raw := range keys {
		seen[prof.ColumnMappings[raw]] = true
	}
	if len(rule.Fields) > 0 {
		seen[schema.FieldAddress] = true
	}
	cols := make([]string, 0, len(seen))
	for c := range seen {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return rows, cols
}

// ViolationSample returns up to violationSampleSize violations for display.
func (r *Result) ViolationSample() []sink.Violation {
	if len(r.Violations) <= violationSampleSize {
		return r.Violations
	}
	return r.Violations[:violationSampleSize]
}

// scanDuplicates finds identifier values appearing on more than one row.
// Matching is case-sensitive and exact; empty identifiers are ignored (they
// load as NULL, which the sink's constraint permits repeatedly).
func scanDuplicates(batch *source.Batch, idx map[string]int, voterCol string) *DuplicateReport {
	counts := make(map[string]int, batch.Len())
	for _, row := range batch.Rows {
		id := batch.Value(idx, row, voterCol)
		if id == "" {
			continue
		}
		counts[id]++
	}

	rep := &DuplicateReport{}
	seen := make(map[string]bool)
	for _, row := range batch.Rows {
		id := batch.Value(idx, row, voterCol)
		if id == "" || counts[id] < 2 {
			continue
		}
		rep.Count++
		if !seen[id] && len(rep.Sample) < violationSampleSize {
			rep.Sample = append(rep.Sample, id)
			seen[id] = true
		}
	}
	if rep.Count == 0 {
		return &DuplicateReport{}
	}
	return rep
}

// buildRow produces the canonical view of one raw row: mapped columns
// looked up case-insensitively, the address synthesized by the frozen
// rule, the caller's state code stamped last, and every required field
// present even when empty.
func buildRow(prof *profile.Profile, mappedKeys []string, rule address.Rule, batch *source.Batch, idx map[string]int, raw []string, stateCode string) schema.Row {
	row := make(schema.Row, len(mappedKeys)+4)

	for _, rawCol := range mappedKeys {
		field := prof.ColumnMappings[rawCol]
		row[field] = strings.TrimSpace(batch.Value(idx, raw, rawCol))
	}

	if len(rule.Fields) > 0 {
		row[schema.FieldAddress] = rule.Compose(func(col string) string {
			return batch.Value(idx, raw, col)
		})
	}

	if stateCode != "" {
		row[schema.FieldState] = strings.ToUpper(stateCode)
	}

	for _, f := range schema.RequiredFields() {
		if _, ok := row[f]; !ok {
			row[f] = ""
		}
	}
	return row
}

// sortedMappingKeys fixes iteration order over the profile's mapping so
// row construction is deterministic run to run.
func sortedMappingKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e *Engine) reportProgress(ctx context.Context, res *Result, opts Options, phase string) {
	if e.progress == nil {
		return
	}
	err := e.progress.Set(ctx, Progress{
		RunID:          res.RunID,
		StateCode:      opts.StateCode,
		Table:          opts.Table,
		Phase:          phase,
		TotalRows:      res.TotalRows,
		ProcessedRows:  res.ProcessedRows,
		InsertedRows:   res.InsertedRows,
		ViolationCount: len(res.Violations),
		UpdatedAt:      time.Now().UTC(),
	})
	if err != nil {
		logger.Warn("progress update failed", "run_id", res.RunID, "error", err)
	}
}

func (e *Engine) recordAborted(ctx context.Context, res *Result, opts Options) {
	if e.runs == nil {
		return
	}
	if err := e.runs.Start(ctx, res.RunID, opts.StateCode, opts.Table, opts.SourceFile, res.TotalRows); err != nil {
		logger.Warn("run registry unavailable", "error", err)
		return
	}
	msg := fmt.Sprintf("%d rows share a voter identifier", res.Duplicates.Count)
	if err := e.runs.Finish(ctx, res.RunID, sink.RunStatusAborted, 0, 0, 0, msg); err != nil {
		logger.Warn("run registry unavailable", "error", err)
	}
}

func (e *Engine) recordFinish(ctx context.Context, res *Result, status, errMsg string) {
	if e.runs == nil {
		return
	}
	if err := e.runs.Finish(ctx, res.RunID, status, res.ProcessedRows, res.InsertedRows, len(res.Violations), errMsg); err != nil {
		logger.Warn("run registry unavailable", "error", err)
	}
}
