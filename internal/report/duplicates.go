// Package report runs read-only analyses over imported voter tables and
// renders them as markdown or structured results.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// DefaultThreshold is the minimum number of registered voters at one
// address before the address is flagged.
const DefaultThreshold = 10

// aggSep separates aggregated values inside a group row. Pipes do not
// occur in voter ids or registration dates.
const aggSep = "|"

// Voter is one registrant at a flagged address.
type Voter struct {
	VoterID          string `json:"voter_id"`
	Name             string `json:"name"`
	RegistrationDate string `json:"registration_date"`
}

// AddressGroup is one address with at least threshold voters.
type AddressGroup struct {
	Address    string  `json:"address"`
	City       string  `json:"city"`
	ZipCode    string  `json:"zip_code"`
	VoterCount int     `json:"voter_count"`
	Voters     []Voter `json:"voters"`
}

// DuplicateAnalysis is the full result of a duplicate-address scan.
type DuplicateAnalysis struct {
	Table                   string         `json:"table"`
	Threshold               int            `json:"threshold"`
	TotalAddresses          int            `json:"total_addresses_analyzed"`
	AddressesWithDuplicates int            `json:"addresses_with_duplicates"`
	VotersAtDuplicates      int            `json:"total_voters_at_duplicate_addresses"`
	Distribution            map[int]int    `json:"addresses_by_count"`
	Groups                  []AddressGroup `json:"detailed_results"`
}

// Analyzer runs analyses against an imported table.
type Analyzer struct {
	db *sql.DB
}

func NewAnalyzer(db *sql.DB) *Analyzer {
	return &Analyzer{db: db}
}

// DuplicateAddresses finds addresses registered to threshold or more
// voters, ordered by voter count descending. Rows with an empty address
// are excluded from both the groups and the unique-address total.
func (a *Analyzer) DuplicateAddresses(ctx context.Context, table string, threshold int) (*DuplicateAnalysis, error) {
	if threshold < 2 {
		threshold = DefaultThreshold
	}
	ident := pq.QuoteIdentifier(table)

	query := fmt.Sprintf(`
		WITH address_counts AS (
			SELECT
				address,
				city,
				zip_code,
				COUNT(*) AS voter_count,
				string_agg(COALESCE(voter_id, ''), '%[2]s' ORDER BY id) AS voter_ids,
				string_agg(COALESCE(first_name, '') || ' ' || COALESCE(last_name, ''), '%[2]s' ORDER BY id) AS voter_names,
				string_agg(COALESCE(registration_date, ''), '%[2]s' ORDER BY id) AS registration_dates
			FROM %[1]s
			WHERE address IS NOT NULL AND address <> ''
			GROUP BY address, city, zip_code
			HAVING COUNT(*) >= $1
			ORDER BY COUNT(*) DESC, address
		)
		SELECT address, city, zip_code, voter_count, voter_ids, voter_names, registration_dates
		FROM address_counts`, ident, aggSep)

	rows, err := a.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("query duplicate addresses: %w", err)
	}
	defer rows.Close()

	analysis := &DuplicateAnalysis{
		Table:        table,
		Threshold:    threshold,
		Distribution: make(map[int]int),
	}

	for rows.Next() {
		var g AddressGroup
		var city, zip sql.NullString
		var ids, names, dates string
		if err := rows.Scan(&g.Address, &city, &zip, &g.VoterCount, &ids, &names, &dates); err != nil {
			return nil, fmt.Errorf("scan address group: %w", err)
		}
		g.City = city.String
		g.ZipCode = zip.String
		g.Voters = zipVoters(ids, names, dates)

		analysis.Groups = append(analysis.Groups, g)
		analysis.AddressesWithDuplicates++
		analysis.VotersAtDuplicates += g.VoterCount
		analysis.Distribution[g.VoterCount]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate address groups: %w", err)
	}

	totalQuery := fmt.Sprintf(
		`SELECT COUNT(DISTINCT address) FROM %s WHERE address IS NOT NULL AND address <> ''`, ident)
	if err := a.db.QueryRowContext(ctx, totalQuery).Scan(&analysis.TotalAddresses); err != nil {
		return nil, fmt.Errorf("count distinct addresses: %w", err)
	}
	return analysis, nil
}

// zipVoters rebuilds per-voter records from the three aligned aggregates.
func zipVoters(ids, names, dates string) []Voter {
	idList := strings.Split(ids, aggSep)
	nameList := strings.Split(names, aggSep)
	dateList := strings.Split(dates, aggSep)

	voters := make([]Voter, 0, len(idList))
	for i, id := range idList {
		v := Voter{VoterID: id}
		if i < len(nameList) {
			v.Name = strings.TrimSpace(nameList[i])
		}
		if i < len(dateList) {
			v.RegistrationDate = dateList[i]
		}
		voters = append(voters, v)
	}
	return voters
}
