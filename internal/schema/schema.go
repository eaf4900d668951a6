package schema

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Kind is the declared value kind of a canonical field.
type Kind string

const (
	KindString  Kind = "string"
	KindDate    Kind = "date"
	KindNumeric Kind = "numeric"
)

// Field describes one canonical voter attribute.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
}

// Canonical field names. Every state extract is mapped onto this set.
const (
	FieldFirstName             = "first_name"
	FieldLastName              = "last_name"
	FieldMiddleName            = "middle_name"
	FieldSuffix                = "suffix"
	FieldBirthDate             = "birth_date"
	FieldRegistrationDate      = "registration_date"
	FieldAddress               = "address"
	FieldStreetNumber          = "address_street_number"
	FieldStreetFraction        = "address_street_fraction"
	FieldStreetPreDirection    = "address_street_pre_direction"
	FieldStreetName            = "address_street_name"
	FieldStreetType            = "address_street_type"
	FieldUnitType              = "address_unit_type"
	FieldStreetPostDirection   = "address_street_post_direction"
	FieldUnitNumber            = "address_unit_number"
	FieldCity                  = "city"
	FieldState                 = "state"
	FieldZipCode               = "zip_code"
	FieldGender                = "gender"
	FieldParty                 = "party"
	FieldPrecinct              = "precinct"
	FieldPrecinctPart          = "precinct_part"
	FieldCounty                = "county"
	FieldVoterID               = "voter_id"
	FieldLegislativeDistrict   = "legislative_district"
	FieldCongressionalDistrict = "congressional_district"
	FieldLastVotedDate         = "last_voted_date"
	FieldStatusCode            = "status_code"
	FieldMailingAddress        = "mailing_address"
	FieldMailingAddress2       = "mailing_address2"
	FieldMailingAddress3       = "mailing_address3"
	FieldMailingCity           = "mailing_city"
	FieldMailingState          = "mailing_state"
	FieldMailingZip            = "mailing_zip"
	FieldMailingCountry        = "mailing_country"
)

// fields is the fixed, ordered canonical field set. Order here is the
// destination column order.
var fields = []Field{
	{FieldFirstName, KindString, true},
	{FieldLastName, KindString, true},
	{FieldMiddleName, KindString, false},
	{FieldSuffix, KindString, false},
	{FieldBirthDate, KindDate, true},
	{FieldRegistrationDate, KindDate, true},
	{FieldAddress, KindString, true},
	{FieldStreetNumber, KindString, false},
	{FieldStreetFraction, KindString, false},
	{FieldStreetPreDirection, KindString, false},
	{FieldStreetName, KindString, false},
	{FieldStreetType, KindString, false},
	{FieldUnitType, KindString, false},
	{FieldStreetPostDirection, KindString, false},
	{FieldUnitNumber, KindString, false},
	{FieldCity, KindString, true},
	{FieldState, KindString, true},
	{FieldZipCode, KindNumeric, true},
	{FieldGender, KindString, false},
	{FieldParty, KindString, false},
	{FieldPrecinct, KindNumeric, false},
	{FieldPrecinctPart, KindString, false},
	{FieldCounty, KindString, false},
	{FieldVoterID, KindString, false},
	{FieldLegislativeDistrict, KindNumeric, false},
	{FieldCongressionalDistrict, KindNumeric, false},
	{FieldLastVotedDate, KindDate, false},
	{FieldStatusCode, KindString, false},
	{FieldMailingAddress, KindString, false},
	{FieldMailingAddress2, KindString, false},
	{FieldMailingAddress3, KindString, false},
	{FieldMailingCity, KindString, false},
	{FieldMailingState, KindString, false},
	{FieldMailingZip, KindString, false},
	{FieldMailingCountry, KindString, false},
}

// Fields returns the ordered canonical field set.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// FieldNames returns the ordered canonical field names.
func FieldNames() []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

// RequiredFields returns the names of fields that must be present in every
// canonical row set, even when their values are empty.
func RequiredFields() []string {
	var out []string
	for _, f := range fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// KindOf returns the declared kind of a canonical field. Unknown names
// report KindString.
func KindOf(name string) Kind {
	for _, f := range fields {
		if f.Name == name {
			return f.Kind
		}
	}
	return KindString
}

// IsCanonical reports whether name is a canonical field.
func IsCanonical(name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Row is one canonical voter record. Keys are canonical field names; values
// are raw strings as read from the extract. Absent keys mean the profile
// had no mapping for the field.
type Row map[string]string

// CreateTableSQL builds the destination table DDL: every canonical column,
// a synthetic autoincrement id, an insertion timestamp, and a UNIQUE
// constraint on voter_id.
func CreateTableSQL(table string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", table)
	b.WriteString("\tid BIGSERIAL PRIMARY KEY,\n")
	for _, f := range fields {
		col := "TEXT"
		if f.Name == FieldVoterID {
			col = "TEXT UNIQUE"
		}
		fmt.Fprintf(&b, "\t%s %s,\n", f.Name, col)
	}
	b.WriteString("\tcreated_at TIMESTAMPTZ DEFAULT NOW()\n)")
	return b.String()
}

// CreateAddressIndexSQL builds the secondary index used by duplicate-address
// analytics.
func CreateAddressIndexSQL(table string) string {
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_address ON %s (address, city, zip_code)",
		table, table)
}

// DropTableSQL builds the statement used by forced re-imports.
func DropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", table)
}

// TableName derives a per-run destination table from the state code and the
// source file, suffixed with the import date so repeated loads of the same
// extract land in distinct tables.
func TableName(stateCode, filePath string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	base = sanitizeIdent(base)
	return fmt.Sprintf("voters_%s_%s_%s",
		strings.ToLower(stateCode), base, now.Format("20060102"))
}

// sanitizeIdent keeps table names to lowercase letters, digits and
// underscores.
func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
