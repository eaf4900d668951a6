package importer

import "testing"

func TestStateFromKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"wa_voters.csv", "wa"},
		{"exports/or-2026-01.txt", "or"},
		{"mi.csv", "mi"},
		{"watchlist.csv", ""},
		{"2026_extract.csv", ""},
		{"x", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := stateFromKey(tt.key); got != tt.want {
			t.Errorf("stateFromKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
