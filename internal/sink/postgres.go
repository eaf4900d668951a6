package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/civicworks/voterbase/internal/schema"
)

// uniqueViolation is the Postgres error code for a unique-constraint hit.
const uniqueViolation = "23505"

// Postgres writes canonical rows into a per-state voter table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// EnsureTable creates the destination table and its address index if
// absent. force drops the table first; that is the only path that ever
// discards existing rows, and callers must request it explicitly.
func (p *Postgres) EnsureTable(ctx context.Context, table string, force bool) error {
	if force {
		if _, err := p.db.ExecContext(ctx, schema.DropTableSQL(table)); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
	}
	if _, err := p.db.ExecContext(ctx, schema.CreateTableSQL(table)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	if _, err := p.db.ExecContext(ctx, schema.CreateAddressIndexSQL(table)); err != nil {
		return fmt.Errorf("create address index on %s: %w", table, err)
	}
	return nil
}

// AppendChunk inserts one chunk inside a transaction, isolating each row
// with a savepoint so a voter-id collision rolls back only that row. Rows
// that collide are collected as violations and the rest of the chunk still
// commits. Any non-uniqueness database error aborts the chunk.
func (p *Postgres) AppendChunk(ctx context.Context, table string, rows []schema.Row) (int, []Violation, error) {
	if len(rows) == 0 {
		return 0, nil, nil
	}

	insertSQL := buildInsertSQL(table)
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("begin chunk transaction: %w", err)
	}
	defer tx.Rollback()

	var violations []Violation
	inserted := 0
	for i, row := range rows {
		sp := fmt.Sprintf("row_sp_%d", i)
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
			return inserted, violations, fmt.Errorf("savepoint: %w", err)
		}

		if _, err := tx.ExecContext(ctx, insertSQL, rowArgs(row)...); err != nil {
			if isUniqueViolation(err) {
				if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
					return inserted, violations, fmt.Errorf("rollback savepoint: %w", rbErr)
				}
				violations = append(violations, Violation{
					VoterID:   row[schema.FieldVoterID],
					FirstName: row[schema.FieldFirstName],
					LastName:  row[schema.FieldLastName],
					State:     row[schema.FieldState],
				})
				continue
			}
			return inserted, violations, fmt.Errorf("insert into %s: %w", table, err)
		}

		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
			return inserted, violations, fmt.Errorf("release savepoint: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, violations, fmt.Errorf("commit chunk: %w", err)
	}
	return inserted, violations, nil
}

// buildInsertSQL produces the fixed-column insert statement for a table.
// Every canonical column appears; absent fields bind as NULL.
func buildInsertSQL(table string) string {
	names := schema.FieldNames()
	placeholders := make([]string, len(names))
	for i := range names {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.Join(placeholders, ", "))
}

func rowArgs(row schema.Row) []any {
	names := schema.FieldNames()
	args := make([]any, len(names))
	for i, name := range names {
		v, ok := row[name]
		if !ok {
			continue
		}
		// An absent voter id binds NULL so the UNIQUE constraint permits
		// any number of id-less rows.
		if v == "" && name == schema.FieldVoterID {
			continue
		}
		args[i] = v
	}
	return args
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
