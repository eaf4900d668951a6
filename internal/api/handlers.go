// Package api exposes the onboarding and import pipeline over HTTP.
package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/civicworks/voterbase/internal/config"
	"github.com/civicworks/voterbase/internal/importer"
	"github.com/civicworks/voterbase/internal/pkg/logger"
	"github.com/civicworks/voterbase/internal/profile"
	"github.com/civicworks/voterbase/internal/report"
	"github.com/civicworks/voterbase/internal/sink"
)

// Handlers holds all HTTP handler dependencies.
type Handlers struct {
	cfg       *config.Config
	db        *sql.DB
	store     profile.Store
	engine    *importer.Engine
	tracker   *importer.Tracker
	runs      *sink.RunLog
	analyzer  *report.Analyzer
	startTime time.Time
}

// NewHandlers creates the handler set. tracker, runs, and analyzer may be
// nil; the endpoints that need them respond 503.
func NewHandlers(cfg *config.Config, db *sql.DB, store profile.Store, engine *importer.Engine) *Handlers {
	return &Handlers{
		cfg:       cfg,
		db:        db,
		store:     store,
		engine:    engine,
		startTime: time.Now(),
	}
}

// SetProgressTracker wires the Redis progress tracker.
func (h *Handlers) SetProgressTracker(t *importer.Tracker) { h.tracker = t }

// SetRunLog wires the import run registry.
func (h *Handlers) SetRunLog(l *sink.RunLog) { h.runs = l }

// SetAnalyzer wires the report analyzer.
func (h *Handlers) SetAnalyzer(a *report.Analyzer) { h.analyzer = a }

// HealthCheck returns overall service health.
//
//	GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := "healthy"

	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			checks["database"] = "down"
			status = "unhealthy"
		} else {
			checks["database"] = "up"
		}
	} else {
		checks["database"] = "not_configured"
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
		"checks": checks,
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
