package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/civicworks/voterbase/internal/pkg/logger"
	"github.com/civicworks/voterbase/internal/profile"
	"github.com/civicworks/voterbase/internal/schema"
	"github.com/civicworks/voterbase/internal/source"
)

// Watcher polls an S3 prefix for new voter extracts and imports any whose
// state has been onboarded. Files for unknown states are left in place and
// logged; they are picked up on a later cycle once the state is onboarded.
type Watcher struct {
	src      *source.S3Source
	store    *profile.FileStore
	engine   *Engine
	interval time.Duration

	mu       sync.Mutex
	running  bool
	lastRun  time.Time
	imported map[string]bool
}

// NewWatcher creates a watcher. interval <= 0 defaults to 15 minutes.
func NewWatcher(src *source.S3Source, store *profile.FileStore, engine *Engine, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Watcher{
		src:      src,
		store:    store,
		engine:   engine,
		interval: interval,
		imported: make(map[string]bool),
	}
}

// Run polls until the context is canceled. One cycle runs immediately.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

// IsRunning reports whether a cycle is in flight.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// LastRunAt returns when the last cycle finished.
func (w *Watcher) LastRunAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun
}

func (w *Watcher) cycle(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.lastRun = time.Now()
		w.mu.Unlock()
	}()

	keys, err := w.src.List(ctx)
	if err != nil {
		logger.Error("list extracts", "error", err)
		return
	}

	for _, key := range keys {
		w.mu.Lock()
		done := w.imported[key]
		w.mu.Unlock()
		if done {
			continue
		}

		if err := w.importKey(ctx, key); err != nil {
			logger.Error("import extract", "key", key, "error", err)
			continue
		}
		w.mu.Lock()
		w.imported[key] = true
		w.mu.Unlock()
	}
}

func (w *Watcher) importKey(ctx context.Context, key string) error {
	state := stateFromKey(key)
	if state == "" {
		logger.Warn("cannot infer state from extract name", "key", key)
		return nil
	}
	if !w.store.Exists(state) {
		logger.Info("state not onboarded, leaving extract", "key", key, "state", state)
		return nil
	}
	prof, err := w.store.Load(state)
	if err != nil {
		return fmt.Errorf("load profile %s: %w", state, err)
	}

	body, err := w.src.Fetch(ctx, key)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", key, err)
	}
	defer body.Close()

	batch, err := source.Read(body, prof.FileFormat, 0)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}

	res, err := w.engine.Import(ctx, prof, batch, Options{
		Table:      schema.TableName(state, key, time.Now()),
		StateCode:  state,
		SourceFile: "s3://" + key,
	})
	if err != nil {
		return err
	}
	logger.Info("extract imported",
		"key", key, "state", state, "table", res.Table,
		"inserted", res.InsertedRows, "violations", len(res.Violations))
	return nil
}

// stateFromKey infers the state code from an extract name shaped like
// wa_voters.csv or exports/or-2026-01.txt.
func stateFromKey(key string) string {
	base := strings.ToLower(filepath.Base(key))
	if len(base) < 2 {
		return ""
	}
	code := base[:2]
	if code[0] < 'a' || code[0] > 'z' || code[1] < 'a' || code[1] > 'z' {
		return ""
	}
	if len(base) > 2 {
		sep := base[2]
		if sep != '_' && sep != '-' && sep != '.' {
			return ""
		}
	}
	return code
}
