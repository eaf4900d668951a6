package schema

import (
	"strings"
	"testing"
	"time"
)

func TestTableName(t *testing.T) {
	now := time.Date(2026, 8, 14, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		state string
		path  string
		want  string
	}{
		{"simple", "WA", "wa_voters.csv", "voters_wa_wa_voters_20260814"},
		{"nested path", "or", "/data/exports/OR-2026.txt", "voters_or_or_2026_20260814"},
		{"odd characters sanitized", "TX", "tx voters (aug).csv", "voters_tx_tx_voters__aug__20260814"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TableName(tt.state, tt.path, now); got != tt.want {
				t.Errorf("TableName(%q, %q) = %q, want %q", tt.state, tt.path, got, tt.want)
			}
		})
	}
}

func TestCreateTableSQL(t *testing.T) {
	sql := CreateTableSQL("voters_wa_x_20260814")

	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS voters_wa_x_20260814",
		"id BIGSERIAL PRIMARY KEY",
		"voter_id TEXT UNIQUE",
		"created_at TIMESTAMPTZ",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("CreateTableSQL missing %q:\n%s", want, sql)
		}
	}

	// Every canonical column appears as TEXT.
	for _, name := range FieldNames() {
		if name == FieldVoterID {
			continue
		}
		if !strings.Contains(sql, name+" TEXT") {
			t.Errorf("CreateTableSQL missing column %s", name)
		}
	}
}

func TestCreateAddressIndexSQL(t *testing.T) {
	sql := CreateAddressIndexSQL("voters_wa_x_20260814")
	if !strings.Contains(sql, "(address, city, zip_code)") {
		t.Errorf("index must cover (address, city, zip_code): %s", sql)
	}
}

func TestRequiredFields(t *testing.T) {
	want := map[string]bool{
		FieldFirstName: true, FieldLastName: true,
		FieldBirthDate: true, FieldRegistrationDate: true,
		FieldAddress: true, FieldCity: true, FieldState: true, FieldZipCode: true,
	}
	got := RequiredFields()
	if len(got) != len(want) {
		t.Fatalf("RequiredFields() = %v", got)
	}
	for _, f := range got {
		if !want[f] {
			t.Errorf("unexpected required field %s", f)
		}
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(FieldBirthDate) != KindDate {
		t.Errorf("birth_date kind = %s", KindOf(FieldBirthDate))
	}
	if KindOf(FieldFirstName) != KindString {
		t.Errorf("first_name kind = %s", KindOf(FieldFirstName))
	}
	if IsCanonical("not_a_field") {
		t.Error("not_a_field reported canonical")
	}
}

func TestValidate(t *testing.T) {
	columns := []string{
		FieldFirstName, FieldLastName, FieldBirthDate, FieldRegistrationDate,
		FieldAddress, FieldCity, FieldState, FieldZipCode,
	}

	t.Run("clean rows", func(t *testing.T) {
		rows := []Row{{
			FieldFirstName: "Ada", FieldLastName: "Lovelace",
			FieldState: "WA", FieldZipCode: "98101",
		}}
		v := Validate(columns, rows)
		if !v.Valid || len(v.Errors) != 0 || len(v.Warnings) != 0 {
			t.Errorf("Validate = %+v, want clean", v)
		}
	})

	t.Run("missing required column is an error", func(t *testing.T) {
		v := Validate([]string{FieldFirstName}, nil)
		if v.Valid || len(v.Errors) == 0 {
			t.Errorf("Validate = %+v, want invalid", v)
		}
	})

	t.Run("bad shapes are warnings only", func(t *testing.T) {
		rows := []Row{
			{FieldZipCode: "981", FieldState: "Washington", FieldFirstName: " ", FieldLastName: "L"},
			{FieldZipCode: "98101-1234", FieldState: "WA", FieldFirstName: "A", FieldLastName: "B"},
		}
		v := Validate(columns, rows)
		if !v.Valid {
			t.Errorf("shape problems must not invalidate: %+v", v)
		}
		if len(v.Warnings) != 3 {
			t.Errorf("warnings = %v, want invalid zip, invalid state, empty first_name", v.Warnings)
		}
	})
}
