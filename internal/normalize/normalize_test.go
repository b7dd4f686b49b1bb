package normalize

import "testing"

func TestName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Brandon Sanderson", "brandon sanderson"},
		{"collapses whitespace", "  Ursula   K.  Le Guin ", "ursula k. le guin"},
		{"strips accents", "José Saramago", "jose saramago"},
		{"handles diaeresis", "Zoë Heller", "zoe heller"},
		{"empty string", "", ""},
		{"only whitespace", "   \t  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Name(tt.input); got != tt.want {
				t.Errorf("Name(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	if !Equal("BRANDON SANDERSON", "brandon  sanderson") {
		t.Error("expected names to match under canonicalization")
	}
	if !Equal("José Saramago", "Jose Saramago") {
		t.Error("expected accented and plain names to match")
	}
	if Equal("Brandon Sanderson", "Branden Sanderson") {
		t.Error("expected different names not to match")
	}
}

func TestTitle(t *testing.T) {
	if got := Title("the way of kings"); got != "The Way Of Kings" {
		t.Errorf("Title = %q", got)
	}
	if got := Title("NPR staff picks"); got != "NPR Staff Picks" {
		t.Errorf("Title should preserve acronyms, got %q", got)
	}
}
