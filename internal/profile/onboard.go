package profile

import (
	"strings"

	"github.com/civicworks/voterbase/internal/address"
	"github.com/civicworks/voterbase/internal/mapping"
)

// FromHeader builds a fresh profile for a state from a sniffed file format
// and the extract's header. The result is deterministic for a given header
// and carries everything a later import needs.
func FromHeader(stateCode string, format FileFormat, columns []string) *Profile {
	return &Profile{
		StateCode:      strings.ToLower(stateCode),
		FileFormat:     format,
		ColumnMappings: mapping.Resolve(columns),
		AddressFields: map[string]address.Rule{
			"address": address.Detect(columns),
		},
		ColumnNames: columns,
	}
}
