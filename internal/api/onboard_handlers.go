package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/civicworks/voterbase/internal/importer"
	"github.com/civicworks/voterbase/internal/pkg/logger"
	"github.com/civicworks/voterbase/internal/profile"
	"github.com/civicworks/voterbase/internal/schema"
	"github.com/civicworks/voterbase/internal/source"
)

var stateCodeRe = regexp.MustCompile(`^[A-Za-z]{2}$`)

// OnboardRequest asks the service to learn a state's extract layout.
type OnboardRequest struct {
	StateCode string `json:"state_code"`
	FilePath  string `json:"file_path"`
	// Force overwrites an existing profile for the state.
	Force bool `json:"force"`
}

// OnboardResponse returns the saved profile plus sample validation.
type OnboardResponse struct {
	Profile    *profile.Profile `json:"profile"`
	SampleRows int              `json:"sample_rows"`
	Valid      bool             `json:"valid"`
	Errors     []string         `json:"errors,omitempty"`
	Warnings   []string         `json:"warnings,omitempty"`
}

// HandleOnboard sniffs an extract, resolves its column mapping and address
// rule, validates against a sample, and saves the profile.
//
//	POST /api/onboard
func (h *Handlers) HandleOnboard(w http.ResponseWriter, r *http.Request) {
	var req OnboardRequest
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

	fileStore, ok := h.store.(*profile.FileStore)
	if ok && fileStore.Exists(req.StateCode) && !req.Force {
		respondError(w, http.StatusConflict, "profile already exists; use force to overwrite")
		return
	}

	format, columns, err := source.Sniff(req.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			respondError(w, http.StatusNotFound, "file not found")
			return
		}
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	prof := profile.FromHeader(req.StateCode, format, columns)

	batch, err := source.ReadFile(req.FilePath, format, h.cfg.Import.SampleRows)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	rows, canonical := importer.Preview(prof, batch, h.cfg.Import.SampleRows)
	validation := schema.Validate(canonical, rows)

	if err := h.store.Save(prof); err != nil {
		logger.Error("save profile", "state", req.StateCode, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}
	logger.Info("state onboarded",
		"state", prof.StateCode, "columns", len(columns),
		"mapped", len(prof.ColumnMappings), "valid", validation.Valid)

	respondJSON(w, http.StatusCreated, OnboardResponse{
		Profile:    prof,
		SampleRows: batch.Len(),
		Valid:      validation.Valid,
		Errors:     validation.Errors,
		Warnings:   validation.Warnings,
	})
}

// HandleGetProfile returns one state's saved profile.
//
//	GET /api/profiles/{state}
func (h *Handlers) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	state := chi.URLParam(r, "state")
	prof, err := h.store.Load(state)
	if errors.Is(err, profile.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no profile for state "+state)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, prof)
}

// HandleListProfiles returns the onboarded state codes.
//
//	GET /api/profiles
func (h *Handlers) HandleListProfiles(w http.ResponseWriter, r *http.Request) {
	fileStore, ok := h.store.(*profile.FileStore)
	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{"states": []string{}})
		return
	}
	states, err := fileStore.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if states == nil {
		states = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"states": states})
}
