package profile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/civicworks/voterbase/internal/address"
)

func TestUnmarshalCurrentShape(t *testing.T) {
	doc := `{
		"state_code": "wa",
		"file_format": {"type": "text", "delimiter": "|", "encoding": "windows-1252", "has_header": false},
		"column_mappings": {"FName": "first_name"},
		"address_fields": {"address": {"fields": ["RegStNum", "RegStName"], "separator": " "}},
		"column_names": ["FName", "RegStNum", "RegStName"]
	}`

	var p Profile
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.FileFormat.Type != "text" || p.FileFormat.Delimiter != "|" ||
		p.FileFormat.Encoding != "windows-1252" || p.FileFormat.HasHeader {
		t.Errorf("FileFormat = %+v", p.FileFormat)
	}
	if p.ColumnMappings["FName"] != "first_name" {
		t.Errorf("ColumnMappings = %v", p.ColumnMappings)
	}
	if got := p.AddressRule(); len(got.Fields) != 2 {
		t.Errorf("AddressRule() = %+v", got)
	}
}

func TestUnmarshalLegacyBareStringFormat(t *testing.T) {
	doc := `{
		"state_code": "or",
		"file_format": "csv",
		"delimiter": ",",
		"encoding": "utf-8",
		"column_mappings": {"VoterID": "voter_id"}
	}`

	var p Profile
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.FileFormat.Type != "csv" {
		t.Errorf("Type = %q", p.FileFormat.Type)
	}
	if !p.FileFormat.HasHeader {
		t.Error("has_header must default to true in legacy documents")
	}
	if p.VoterIDColumn() != "VoterID" {
		t.Errorf("VoterIDColumn() = %q", p.VoterIDColumn())
	}
}

func TestUnmarshalMissingFormatGetsDefaults(t *testing.T) {
	var p Profile
	if err := json.Unmarshal([]byte(`{"state_code": "tx"}`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.FileFormat.Type != "csv" || p.FileFormat.Delimiter != "," ||
		p.FileFormat.Encoding != "utf-8" || !p.FileFormat.HasHeader {
		t.Errorf("FileFormat = %+v, want defaults", p.FileFormat)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)

	p := &Profile{
		StateCode:      "wa",
		FileFormat:     FileFormat{Type: "csv", Delimiter: ",", Encoding: "utf-8", HasHeader: true},
		ColumnMappings: map[string]string{"StateVoterID": "voter_id", "FName": "first_name"},
		AddressFields: map[string]address.Rule{
			"address": {Fields: []string{"RegStNum", "RegStName"}, Separator: " "},
		},
		ColumnNames: []string{"StateVoterID", "FName", "RegStNum", "RegStName"},
	}
	if err := store.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if p.CreatedAt == "" || p.LastUpdated == "" {
		t.Error("Save must stamp timestamps")
	}

	got, err := store.Load("WA")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.StateCode != "wa" || got.VoterIDColumn() != "StateVoterID" {
		t.Errorf("Load = %+v", got)
	}
	if !store.Exists("wa") {
		t.Error("Exists = false after Save")
	}

	states, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(states) != 1 || states[0] != "WA" {
		t.Errorf("List = %v", states)
	}
}

func TestFileStoreNotFound(t *testing.T) {
	store := NewFileStore(t.TempDir())
	_, err := store.Load("zz")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(zz) err = %v, want ErrNotFound", err)
	}
}

func TestFileStoreYAMLFallback(t *testing.T) {
	dir := t.TempDir()
	legacy := `state_code: mi
file_format: text
delimiter: "|"
encoding: windows-1252
column_mappings:
  VOTER_IDENTIFICATION_NUMBER: voter_id
`
	if err := os.WriteFile(filepath.Join(dir, "mi_config.yaml"), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(dir)
	p, err := store.Load("mi")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.FileFormat.Type != "text" || p.FileFormat.Delimiter != "|" ||
		p.FileFormat.Encoding != "windows-1252" || !p.FileFormat.HasHeader {
		t.Errorf("FileFormat = %+v", p.FileFormat)
	}
	if p.VoterIDColumn() != "VOTER_IDENTIFICATION_NUMBER" {
		t.Errorf("VoterIDColumn() = %q", p.VoterIDColumn())
	}
}

func TestFromHeader(t *testing.T) {
	format := FileFormat{Type: "csv", Delimiter: ",", Encoding: "utf-8", HasHeader: true}
	header := []string{"StateVoterID", "FName", "LName", "RegStNum", "RegStName", "RegCity", "RegState", "RegZipCode"}

	p := FromHeader("WA", format, header)
	if p.StateCode != "wa" {
		t.Errorf("StateCode = %q, want wa", p.StateCode)
	}
	if p.ColumnMappings["StateVoterID"] != "voter_id" {
		t.Errorf("ColumnMappings = %v", p.ColumnMappings)
	}
	rule := p.AddressRule()
	if len(rule.Fields) == 0 {
		t.Fatal("AddressRule() has no fields")
	}
	if rule.Fields[0] != "RegStNum" {
		t.Errorf("address rule starts with %q, want RegStNum", rule.Fields[0])
	}

	// Same header, same profile.
	again := FromHeader("WA", format, header)
	if again.VoterIDColumn() != p.VoterIDColumn() || len(again.ColumnMappings) != len(p.ColumnMappings) {
		t.Error("FromHeader not deterministic")
	}
}
