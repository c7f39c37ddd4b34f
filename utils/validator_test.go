package utils

import "testing"

func TestValidateFileRef(t *testing.T) {
	cases := map[string]bool{
		"manuscripts/abc/v2.pdf":          true,
		"https://files.example.org/a.pdf": true,
		"":                                false,
		"   ":                             false,
		"../etc/passwd":                   false,
		"uploads/../../secret":            false,
		"/":                               false,
	}
	for ref, want := range cases {
		if got := ValidateFileRef(ref); got != want {
			t.Errorf("ValidateFileRef(%q) = %v, want %v", ref, got, want)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := SanitizeInput("  notes\x00 here \n"); got != "notes here" {
		t.Fatalf("unexpected sanitized value %q", got)
	}
}
