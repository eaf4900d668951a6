package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/civicworks/voterbase/internal/importer"
	"github.com/civicworks/voterbase/internal/pkg/logger"
	"github.com/civicworks/voterbase/internal/profile"
	"github.com/civicworks/voterbase/internal/schema"
	"github.com/civicworks/voterbase/internal/source"
)

// importTimeout bounds a background import run.
const importTimeout = 2 * time.Hour

// ImportRequest asks the service to load one extract.
type ImportRequest struct {
	StateCode string `json:"state_code"`
	FilePath  string `json:"file_path"`
	// Table overrides the generated destination table name.
	Table string `json:"table"`
	// Force drops and recreates the destination table first.
	Force bool `json:"force"`
}

// HandleImport starts an import in the background and returns its run id.
// Progress is polled via the progress endpoint; the final outcome lands in
// the run registry.
//
//	POST /api/import
func (h *Handlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !stateCodeRe.MatchString(req.StateCode) {
		respondError(w, http.StatusBadRequest, "state_code must be two letters")
		return
	}
	if req.FilePath == "" {
		respondError(w, http.StatusBadRequest, "file_path is required")
		return
	}
	// The table name ends up in DDL unparameterized; only names the
	// pipeline itself would generate are accepted.
	if req.Table != "" && !tableNameRe.MatchString(req.Table) {
		respondError(w, http.StatusBadRequest, "table must name an imported voter table")
		return
	}

	prof, err := h.store.Load(req.StateCode)
	if errors.Is(err, profile.ErrNotFound) {
		respondError(w, http.StatusConflict, "state not onboarded: "+req.StateCode)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	batch, err := source.ReadFile(req.FilePath, prof.FileFormat, 0)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	table := req.Table
	if table == "" {
		table = schema.TableName(req.StateCode, req.FilePath, time.Now())
	}

	opts := importer.Options{
		RunID:      uuid.NewString(),
		Table:      table,
		StateCode:  req.StateCode,
		SourceFile: req.FilePath,
		Force:      req.Force,
		ChunkSize:  h.cfg.Import.ChunkSize,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()
		res, err := h.engine.Import(ctx, prof, batch, opts)
		if err != nil {
			logger.Error("background import failed",
				"run_id", opts.RunID, "state", req.StateCode, "error", err)
			return
		}
		logger.Info("background import finished",
			"run_id", res.RunID, "state", req.StateCode,
			"inserted", res.InsertedRows, "violations", len(res.Violations))
	}()

	respondJSON(w, http.StatusAccepted, map[string]any{
		"run_id":     opts.RunID,
		"table":      table,
		"total_rows": batch.Len(),
	})
}

// HandleImportProgress returns the live progress of a run.
//
//	GET /api/imports/{runID}/progress
func (h *Handlers) HandleImportProgress(w http.ResponseWriter, r *http.Request) {
	if h.tracker == nil {
		respondError(w, http.StatusServiceUnavailable, "progress tracking not configured")
		return
	}
	runID := chi.URLParam(r, "runID")
	p, err := h.tracker.Get(r.Context(), runID)
	if errors.Is(err, importer.ErrProgressNotFound) {
		respondError(w, http.StatusNotFound, "no progress for run "+runID)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"progress": p,
		"percent":  p.Percent(),
	})
}

// HandleListRuns returns recent import runs from the registry.
//
//	GET /api/runs
func (h *Handlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "run registry not configured")
		return
	}
	runs, err := h.runs.Recent(r.Context(), 50)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
