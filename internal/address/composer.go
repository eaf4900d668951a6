// Package address decides, at onboarding time, how a state's residential
// address columns reassemble into one address string, and performs that
// per-row assembly during import.
package address

import "strings"

// Rule is the persisted address-composition rule: the raw columns to join,
// in emit order, and the separator between non-empty components.
type Rule struct {
	Fields    []string `json:"fields" yaml:"fields"`
	Separator string   `json:"separator" yaml:"separator"`
}

// combinedPatterns flag a single pre-combined address column. When one is
// present no decomposition is attempted.
var combinedPatterns = []string{"address_full", "full_address", "complete_address"}

// componentOrder is the fixed natural reading order for address components.
// Matched columns are always emitted in this order, never in header order.
var componentOrder = []string{
	"street_number",
	"street_fraction",
	"street_pre_direction",
	"street_name",
	"street_type",
	"unit_type",
	"street_post_direction",
	"unit_number",
	"city",
	"state",
	"zip",
}

// componentPatterns maps each component category to its known header
// variants.
var componentPatterns = map[string][]string{
	"street_number":         {"stnum", "street_number", "housenumber", "regstnum", "stnumber", "address_number", "streetno", "res_street_number"},
	"street_fraction":       {"stfrac", "fraction", "regstfrac", "address_frac", "res_street_fraction"},
	"street_pre_direction":  {"stpredir", "predirection", "regstpredirection", "address_dir_pre", "streetdir", "res_street_pre_direction"},
	"street_name":           {"stname", "street_name", "regstname", "address_street", "streetname", "res_street_name"},
	"street_type":           {"sttype", "street_type", "regsttype", "address_suffix", "streettype", "res_street_type"},
	"unit_type":             {"unittype", "regunittype", "address_unit_type", "res_unit_type"},
	"street_post_direction": {"stpostdir", "postdirection", "regstpostdirection", "address_dir_post", "res_street_post_direction"},
	"unit_number":           {"unitnum", "regstunitnum", "address_unit", "unitno", "res_unit_number"},
	"city":                  {"city", "regcity", "res_city"},
	"state":                 {"state", "regstate", "res_state"},
	"zip":                   {"zip", "zipcode", "regzipcode", "res_zip"},
}

// Columns matching these are never part of the residential address.
var mailingExclusions = []string{"mail", "mailing", "mailcity", "mailstate", "mailzip", "mailcountry"}
var voterIDExclusions = []string{"voterid", "voter_id", "statevoterid", "voter", "votid", "id"}

// Detect inspects a raw header and returns the composition rule for the
// canonical address field.
//
// If any column looks like a pre-combined address, the rule selects that
// single column verbatim. Otherwise every column (excluding mailing and
// voter-identifier columns) is classified into at most one of the eleven
// component categories, and the matched columns are emitted in the fixed
// component order regardless of where they sat in the header.
func Detect(header []string) Rule {
	for _, col := range header {
		lc := strings.ToLower(col)
		for _, p := range combinedPatterns {
			if strings.Contains(lc, p) {
				return Rule{Fields: []string{col}, Separator: " "}
			}
		}
	}

	// Classify columns into components, preserving header order within a
	// component.
	byComponent := make(map[string][]string)
	for _, col := range header {
		lc := strings.ToLower(col)
		if matchesAny(lc, mailingExclusions) || matchesAny(lc, voterIDExclusions) {
			continue
		}
		for _, comp := range componentOrder {
			if matchesAny(lc, componentPatterns[comp]) {
				byComponent[comp] = append(byComponent[comp], col)
				break
			}
		}
	}

	var ordered []string
	for _, comp := range componentOrder {
		ordered = append(ordered, byComponent[comp]...)
	}
	return Rule{Fields: ordered, Separator: " "}
}

func matchesAny(lc string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(lc, p) {
			return true
		}
	}
	return false
}

// Compose assembles the address value for one row. lookup resolves a raw
// column name to its value for the row; it must already be case-insensitive.
// Components that are empty after trimming are dropped, so a row with no
// unit still joins cleanly with single separators. A row with every
// component empty yields "".
func (r Rule) Compose(lookup func(column string) string) string {
	sep := r.Separator
	if sep == "" {
		sep = " "
	}

	// Single pre-combined column: taken verbatim.
	if len(r.Fields) == 1 {
		return lookup(r.Fields[0])
	}

	parts := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		v := strings.TrimSpace(lookup(f))
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}
