// Package mapping resolves the column names of an unknown state extract
// onto the canonical voter schema. Resolution runs once, at onboarding;
// the result is frozen into the state's profile and replayed verbatim by
// every later import.
package mapping

import (
	"strings"

	"github.com/civicworks/voterbase/internal/schema"
)

// fieldPatterns lists the known header variants for one canonical field.
// Slice order is match priority.
type fieldPatterns struct {
	field    string
	patterns []string
}

// identityPatterns covers name, demographic and registration fields. It is
// consulted before the address tables so identity columns are claimed first:
// several address variants are substrings of identity variants and vice
// versa, and a claimed column is never reassigned.
var identityPatterns = []fieldPatterns{
	{schema.FieldFirstName, []string{"first", "given", "fname", "firstname", "name_first"}},
	{schema.FieldLastName, []string{"last", "surname", "lname", "lastname", "name_last"}},
	{schema.FieldMiddleName, []string{"middle", "mname", "middlename", "name_middle"}},
	{schema.FieldSuffix, []string{"suffix", "name_suffix", "namesuffix"}},
	{schema.FieldBirthDate, []string{"birth", "dob", "birthdate", "date_of_birth", "birthyear", "birth_year", "birthday"}},
	{schema.FieldRegistrationDate, []string{"registrationdate", "regdate", "registration_date", "reg_date"}},
	{schema.FieldCity, []string{"city", "town", "regcity", "municipality"}},
	{schema.FieldState, []string{"state", "regstate", "province"}},
	{schema.FieldZipCode, []string{"zip", "postal", "zipcode", "regzipcode", "postal_code"}},
	{schema.FieldGender, []string{"sex", "gender"}},
	{schema.FieldParty, []string{"party", "political", "affiliation", "registration_party"}},
	{schema.FieldPrecinct, []string{"precinct", "district", "precinctcode", "precinct_id", "voting_district"}},
	{schema.FieldCounty, []string{"county", "parish", "countycode", "county_name", "jurisdiction"}},
	{schema.FieldVoterID, []string{"voterid", "voter_id", "statevoterid", "voter", "votid", "id", "registration_id"}},
	{schema.FieldLegislativeDistrict, []string{"legislativedistrict", "legdistrict", "leg_district", "state_house"}},
	{schema.FieldCongressionalDistrict, []string{"congressionaldistrict", "congdistrict", "cong_district", "us_house"}},
	{schema.FieldLastVotedDate, []string{"lastvoted", "last_voted", "lastvoteddate", "last_vote_date"}},
	{schema.FieldStatusCode, []string{"statuscode", "status", "voter_status", "registration_status"}},
}

// residentialPatterns covers the component columns a state splits its
// residential address into.
var residentialPatterns = []fieldPatterns{
	{schema.FieldStreetNumber, []string{"stnum", "street_number", "housenumber", "regstnum", "stnumber", "address_number", "streetno", "house_number"}},
	{schema.FieldStreetFraction, []string{"stfrac", "fraction", "regstfrac", "address_frac", "street_fraction"}},
	{schema.FieldStreetPreDirection, []string{"stpredir", "predirection", "regstpredirection", "address_dir_pre", "streetdir", "street_direction"}},
	{schema.FieldStreetName, []string{"stname", "street_name", "regstname", "address_street", "streetname", "street"}},
	{schema.FieldStreetType, []string{"sttype", "street_type", "regsttype", "address_suffix", "streettype", "street_suffix"}},
	{schema.FieldUnitType, []string{"unittype", "regunittype", "address_unit_type", "apartment_type"}},
	{schema.FieldStreetPostDirection, []string{"stpostdir", "postdirection", "regstpostdirection", "address_dir_post", "street_post_dir"}},
	{schema.FieldUnitNumber, []string{"unitnum", "regstunitnum", "address_unit", "unitno", "apartment_number"}},
}

// mailingPatterns is consulted last so mailing variants cannot hijack
// residential columns already claimed above.
var mailingPatterns = []fieldPatterns{
	{schema.FieldMailingAddress, []string{"mail1", "mailingaddress", "mail_address", "mail_addr"}},
	{schema.FieldMailingAddress2, []string{"mail2", "mailingaddress2", "mail_address2", "mail_addr2"}},
	{schema.FieldMailingAddress3, []string{"mail3", "mailingaddress3", "mail_address3", "mail_addr3"}},
	{schema.FieldMailingCity, []string{"mailcity", "mail_city"}},
	{schema.FieldMailingState, []string{"mailstate", "mail_state"}},
	{schema.FieldMailingZip, []string{"mailzip", "mail_zip", "mailing_postal_code"}},
	{schema.FieldMailingCountry, []string{"mailcountry", "mail_country"}},
}

// Resolve maps raw extract column names to canonical fields. The result is
// deterministic for a given header: pattern tables are consulted in a fixed
// order (identity, residential, mailing), exact matches beat substring
// matches, and when several columns match the same field the first in
// header order wins. A column claimed by one field is never reassigned.
// Fields with no plausible column are simply absent from the result.
func Resolve(header []string) map[string]string {
	mapped := make(map[string]string)
	claimed := make(map[string]bool, len(header))

	for _, table := range [][]fieldPatterns{identityPatterns, residentialPatterns, mailingPatterns} {
		resolveTable(header, table, mapped, claimed)
	}
	return mapped
}

func resolveTable(header []string, table []fieldPatterns, mapped map[string]string, claimed map[string]bool) {
	for _, fp := range table {
		col := matchColumn(header, fp.patterns, claimed, true)
		if col == "" {
			col = matchColumn(header, fp.patterns, claimed, false)
		}
		if col != "" {
			mapped[col] = fp.field
			claimed[col] = true
		}
	}
}

// matchColumn scans unclaimed columns in header order and returns the first
// whose lowercased name matches a pattern, exactly or by containment.
func matchColumn(header []string, patterns []string, claimed map[string]bool, exact bool) string {
	for _, col := range header {
		if claimed[col] {
			continue
		}
		lc := normalize(col)
		for _, p := range patterns {
			if exact && lc == p {
				return col
			}
			if !exact && strings.Contains(lc, p) {
				return col
			}
		}
	}
	return ""
}

func normalize(col string) string {
	return strings.ToLower(strings.TrimSpace(col))
}
