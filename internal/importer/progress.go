package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	progressKeyPrefix = "voterbase:import:"
	progressTTL       = 24 * time.Hour
)

// ErrProgressNotFound is returned when no progress record exists for a run,
// either because the run id is unknown or the record expired.
var ErrProgressNotFound = errors.New("import progress not found")

// Progress is the point-in-time snapshot the API serves while a run is
// underway. It is overwritten after every chunk.
type Progress struct {
	RunID          string    `json:"run_id"`
	StateCode      string    `json:"state_code"`
	Table          string    `json:"table"`
	Phase          string    `json:"phase"`
	TotalRows      int       `json:"total_rows"`
	ProcessedRows  int       `json:"processed_rows"`
	InsertedRows   int       `json:"inserted_rows"`
	ViolationCount int       `json:"violation_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Percent returns completion as a whole percentage.
func (p Progress) Percent() int {
	if p.TotalRows == 0 {
		return 0
	}
	return p.ProcessedRows * 100 / p.TotalRows
}

// Tracker stores run progress in Redis under a per-run key with a TTL, so
// finished runs age out on their own.
type Tracker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTracker(rdb *redis.Client) *Tracker {
	return &Tracker{rdb: rdb, ttl: progressTTL}
}

func (t *Tracker) Set(ctx context.Context, p Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if err := t.rdb.Set(ctx, progressKeyPrefix+p.RunID, data, t.ttl).Err(); err != nil {
		return fmt.Errorf("store progress: %w", err)
	}
	return nil
}

func (t *Tracker) Get(ctx context.Context, runID string) (*Progress, error) {
	data, err := t.rdb.Get(ctx, progressKeyPrefix+runID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch progress: %w", err)
	}
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return &p, nil
}
