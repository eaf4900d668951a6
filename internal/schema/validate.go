package schema

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	zipRe   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	stateRe = regexp.MustCompile(`^[A-Z]{2}$`)
)

// Validation holds the outcome of a canonical row-set check. Errors mean
// the set is structurally unusable (missing required columns); warnings are
// advisory and never block an import.
type Validation struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Validate checks a canonical row set against the schema: required-field
// presence, ZIP and state shapes, and empty names. Values are not mutated.
func Validate(columns []string, rows []Row) Validation {
	v := Validation{Valid: true}

	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	var missing []string
	for _, f := range RequiredFields() {
		if !present[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		v.Valid = false
		v.Errors = append(v.Errors,
			fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")))
	}

	var badZips, badStates int
	emptyNames := map[string]int{}
	for _, row := range rows {
		if z, ok := row[FieldZipCode]; ok && z != "" && !zipRe.MatchString(z) {
			badZips++
		}
		if s, ok := row[FieldState]; ok && s != "" && !stateRe.MatchString(s) {
			badStates++
		}
		for _, name := range []string{FieldFirstName, FieldLastName} {
			if val, ok := row[name]; ok && strings.TrimSpace(val) == "" {
				emptyNames[name]++
			}
		}
	}

	if badZips > 0 {
		v.Warnings = append(v.Warnings, fmt.Sprintf("found %d invalid ZIP codes", badZips))
	}
	if badStates > 0 {
		v.Warnings = append(v.Warnings, fmt.Sprintf("found %d invalid state codes", badStates))
	}
	for _, name := range []string{FieldFirstName, FieldLastName} {
		if n := emptyNames[name]; n > 0 {
			v.Warnings = append(v.Warnings, fmt.Sprintf("found %d empty %ss", n, name))
		}
	}

	return v
}
