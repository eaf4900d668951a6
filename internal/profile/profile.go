// Package profile defines the persisted per-state onboarding document: the
// frozen column mappings, address rule and file-format descriptor that every
// import of that state replays.
package profile

import (
	"encoding/json"
	"fmt"

	"github.com/civicworks/voterbase/internal/address"
)

// Defaults applied when a profile predates the structured file_format shape
// or omits keys.
const (
	DefaultDelimiter = ","
	DefaultEncoding  = "utf-8"
)

// FileFormat describes how a state's extract file is laid out.
type FileFormat struct {
	Type      string `json:"type" yaml:"type"`
	Delimiter string `json:"delimiter" yaml:"delimiter"`
	Encoding  string `json:"encoding" yaml:"encoding"`
	HasHeader bool   `json:"has_header" yaml:"has_header"`
}

// Profile is the immutable-once-created onboarding result for one state.
// It is created by the onboard flow, overwritten only by explicit
// re-onboarding, and read-only during import.
type Profile struct {
	StateCode      string                  `json:"state_code"`
	FileFormat     FileFormat              `json:"file_format"`
	ColumnMappings map[string]string       `json:"column_mappings"`
	AddressFields  map[string]address.Rule `json:"address_fields"`
	ColumnNames    []string                `json:"column_names"`
	CreatedAt      string                  `json:"created_at,omitempty"`
	LastUpdated    string                  `json:"last_updated,omitempty"`
}

// AddressRule returns the composition rule for the canonical address field.
// Profiles written by onboarding always carry one; a zero Rule is returned
// for hand-edited documents that dropped it.
func (p *Profile) AddressRule() address.Rule {
	if p == nil || p.AddressFields == nil {
		return address.Rule{}
	}
	return p.AddressFields["address"]
}

// VoterIDColumn returns the raw column mapped to the voter identifier, or
// "" when the state extract has none.
func (p *Profile) VoterIDColumn() string {
	for raw, field := range p.ColumnMappings {
		if field == "voter_id" {
			return raw
		}
	}
	return ""
}

// UnmarshalJSON accepts both the current document shape and the legacy one
// where file_format is a bare string (type only) and delimiter, encoding and
// has_header live at the top level. Missing keys get defaults.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var doc struct {
		StateCode      string                  `json:"state_code"`
		FileFormat     json.RawMessage         `json:"file_format"`
		Delimiter      string                  `json:"delimiter"`
		Encoding       string                  `json:"encoding"`
		HasHeader      *bool                   `json:"has_header"`
		ColumnMappings map[string]string       `json:"column_mappings"`
		AddressFields  map[string]address.Rule `json:"address_fields"`
		ColumnNames    []string                `json:"column_names"`
		CreatedAt      string                  `json:"created_at"`
		LastUpdated    string                  `json:"last_updated"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	p.StateCode = doc.StateCode
	p.ColumnMappings = doc.ColumnMappings
	p.AddressFields = doc.AddressFields
	p.ColumnNames = doc.ColumnNames
	p.CreatedAt = doc.CreatedAt
	p.LastUpdated = doc.LastUpdated

	ff := FileFormat{}
	switch {
	case len(doc.FileFormat) == 0 || string(doc.FileFormat) == "null":
		// key absent entirely; options may still sit at the top level
		ff.Delimiter = doc.Delimiter
		ff.Encoding = doc.Encoding
		if doc.HasHeader != nil {
			ff.HasHeader = *doc.HasHeader
		} else {
			ff.HasHeader = true
		}
	case doc.FileFormat[0] == '"':
		// legacy shape: bare format string, options at top level
		if err := json.Unmarshal(doc.FileFormat, &ff.Type); err != nil {
			return fmt.Errorf("legacy file_format: %w", err)
		}
		ff.Delimiter = doc.Delimiter
		ff.Encoding = doc.Encoding
		if doc.HasHeader != nil {
			ff.HasHeader = *doc.HasHeader
		} else {
			ff.HasHeader = true
		}
	default:
		var obj struct {
			Type      string `json:"type"`
			Delimiter string `json:"delimiter"`
			Encoding  string `json:"encoding"`
			HasHeader *bool  `json:"has_header"`
		}
		if err := json.Unmarshal(doc.FileFormat, &obj); err != nil {
			return fmt.Errorf("file_format: %w", err)
		}
		ff.Type = obj.Type
		ff.Delimiter = obj.Delimiter
		ff.Encoding = obj.Encoding
		if obj.HasHeader != nil {
			ff.HasHeader = *obj.HasHeader
		} else {
			ff.HasHeader = true
		}
	}

	p.FileFormat = normalizeFormat(ff)
	return nil
}

func normalizeFormat(ff FileFormat) FileFormat {
	if ff.Type == "" {
		ff.Type = "csv"
	}
	if ff.Delimiter == "" {
		ff.Delimiter = DefaultDelimiter
	}
	if ff.Encoding == "" {
		ff.Encoding = DefaultEncoding
	}
	return ff
}
