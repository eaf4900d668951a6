package report

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/civicworks/voterbase/internal/schema"
)

// ColumnQuality describes one canonical column of an imported table.
type ColumnQuality struct {
	Column        string  `json:"column"`
	NullCount     int     `json:"null_count"`
	NullPercent   float64 `json:"null_percentage"`
	DistinctCount int     `json:"distinct_count"`
}

// QualityReport summarizes per-column fill rates for one table.
// Completeness is the share of non-empty cells across all canonical
// columns, between 0 and 1.
type QualityReport struct {
	Table        string          `json:"table"`
	RowCount     int             `json:"row_count"`
	Columns      []ColumnQuality `json:"columns"`
	Completeness float64         `json:"completeness"`
}

// Quality computes null and distinct counts for every canonical column.
// Empty strings count as null; the import pipeline writes empty for
// unmapped optional fields, so the two are equivalent here.
func (a *Analyzer) Quality(ctx context.Context, table string) (*QualityReport, error) {
	ident := pq.QuoteIdentifier(table)

	rep := &QualityReport{Table: table}
	if err := a.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, ident)).Scan(&rep.RowCount); err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}

	totalNulls := 0
	for _, column := range schema.FieldNames() {
		col := pq.QuoteIdentifier(column)
		query := fmt.Sprintf(`
			SELECT
				COUNT(*) FILTER (WHERE %[1]s IS NULL OR %[1]s = ''),
				COUNT(DISTINCT NULLIF(%[1]s, ''))
			FROM %[2]s`, col, ident)

		cq := ColumnQuality{Column: column}
		if err := a.db.QueryRowContext(ctx, query).Scan(&cq.NullCount, &cq.DistinctCount); err != nil {
			return nil, fmt.Errorf("profile column %s: %w", column, err)
		}
		if rep.RowCount > 0 {
			cq.NullPercent = float64(cq.NullCount) / float64(rep.RowCount) * 100
		}
		totalNulls += cq.NullCount
		rep.Columns = append(rep.Columns, cq)
	}

	cells := rep.RowCount * len(rep.Columns)
	if cells > 0 {
		rep.Completeness = 1 - float64(totalNulls)/float64(cells)
	}
	return rep, nil
}
