package api

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/civicworks/voterbase/internal/report"
)

// tableNameRe admits only tables the import pipeline creates.
var tableNameRe = regexp.MustCompile(`^voters_[a-z0-9_]+$`)

// HandleDuplicateAddresses runs the duplicate-address analysis on an
// imported table.
//
//	GET /api/reports/duplicate-addresses?table=...&threshold=10
func (h *Handlers) HandleDuplicateAddresses(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	if !tableNameRe.MatchString(table) {
		respondError(w, http.StatusBadRequest, "table must name an imported voter table")
		return
	}
	if h.analyzer == nil {
		respondError(w, http.StatusServiceUnavailable, "reporting not configured")
		return
	}

	threshold := report.DefaultThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 2 {
			respondError(w, http.StatusBadRequest, "threshold must be an integer >= 2")
			return
		}
		threshold = n
	}

	analysis, err := h.analyzer.DuplicateAddresses(r.Context(), table, threshold)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, analysis)
}

// HandleQualityReport profiles the canonical columns of an imported table.
//
//	GET /api/reports/quality?table=...
func (h *Handlers) HandleQualityReport(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	if !tableNameRe.MatchString(table) {
		respondError(w, http.StatusBadRequest, "table must name an imported voter table")
		return
	}
	if h.analyzer == nil {
		respondError(w, http.StatusServiceUnavailable, "reporting not configured")
		return
	}

	rep, err := h.analyzer.Quality(r.Context(), table)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rep)
}
