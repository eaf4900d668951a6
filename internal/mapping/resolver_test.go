package mapping

import (
	"reflect"
	"testing"
)

func TestResolveWashingtonStyleHeader(t *testing.T) {
	header := []string{
		"StateVoterID", "FName", "LName",
		"RegStNum", "RegStName", "RegStType",
		"RegCity", "RegState", "RegZipCode",
	}

	got := Resolve(header)
	want := map[string]string{
		"StateVoterID": "voter_id",
		"FName":        "first_name",
		"LName":        "last_name",
		"RegStNum":     "address_street_number",
		"RegStName":    "address_street_name",
		"RegStType":    "address_street_type",
		"RegCity":      "city",
		"RegState":     "state",
		"RegZipCode":   "zip_code",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
}

func TestResolveFieldCases(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   map[string]string
	}{
		{
			"exact match beats earlier substring match",
			[]string{"regstate_extra", "state"},
			map[string]string{"state": "state"},
		},
		{
			"first column in header order wins a tie",
			[]string{"Home_City", "Work_City"},
			map[string]string{"Home_City": "city"},
		},
		{
			"unmatched columns are absent from the result",
			[]string{"internal_flag", "batch_number"},
			map[string]string{},
		},
		{
			"underscore variants",
			[]string{"voter_id", "first_name", "date_of_birth", "registration_date"},
			map[string]string{
				"voter_id":          "voter_id",
				"first_name":        "first_name",
				"date_of_birth":     "birth_date",
				"registration_date": "registration_date",
			},
		},
		{
			"mailing columns resolve after residential",
			[]string{"RegStNum", "RegStName", "RegCity", "RegState", "RegZipCode", "Mail1", "MailCity", "MailZip"},
			map[string]string{
				"RegStNum":   "address_street_number",
				"RegStName":  "address_street_name",
				"RegCity":    "city",
				"RegState":   "state",
				"RegZipCode": "zip_code",
				"Mail1":      "mailing_address",
				"MailCity":   "mailing_city",
				"MailZip":    "mailing_zip",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.header)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve(%v) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestResolveClaimedColumnNotReassigned(t *testing.T) {
	// Both columns match the precinct patterns exactly; the first in
	// header order is claimed and the other is never reassigned to a
	// later field.
	header := []string{"Precinct", "District"}
	got := Resolve(header)
	if got["Precinct"] != "precinct" {
		t.Errorf("Precinct resolved to %q, want precinct", got["Precinct"])
	}
	if field, claimed := got["District"]; claimed {
		t.Errorf("District unexpectedly resolved to %q", field)
	}
}

func TestResolveDeterministic(t *testing.T) {
	header := []string{
		"StateVoterID", "FName", "LName", "RegStNum", "RegStName",
		"RegCity", "RegState", "RegZipCode", "CountyCode", "PrecinctCode",
	}
	first := Resolve(header)
	for i := 0; i < 50; i++ {
		if got := Resolve(header); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d produced %v, first run produced %v", i, got, first)
		}
	}
}

func TestResolveDoesNotMutateHeader(t *testing.T) {
	header := []string{"FName", "LName", "RegCity"}
	copyOf := append([]string(nil), header...)
	Resolve(header)
	if !reflect.DeepEqual(header, copyOf) {
		t.Errorf("header mutated: %v", header)
	}
}
