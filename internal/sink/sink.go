// Package sink is the relational destination for canonical voter rows.
package sink

import (
	"context"

	"github.com/civicworks/voterbase/internal/schema"
)

// Violation records one row refused by the destination's uniqueness
// constraint on the voter identifier.
type Violation struct {
	VoterID   string `json:"voter_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	State     string `json:"state"`
}

// Sink is the destination for canonical rows. Implementations must create
// the destination table on demand, append chunks, and surface voter-id
// uniqueness violations as data rather than as errors; any other write
// failure is an error that aborts the run.
type Sink interface {
	EnsureTable(ctx context.Context, table string, force bool) error
	AppendChunk(ctx context.Context, table string, rows []schema.Row) (inserted int, violations []Violation, err error)
}
