// Package normalize provides canonical forms for catalog names so that
// lookups and uniqueness checks are insensitive to case, accents, and
// incidental whitespace.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

var caseFolder = cases.Fold()

// Name returns the canonical form of a person, book, or series name:
// Unicode case-folded, combining marks removed, and interior whitespace
// collapsed to single spaces.
func Name(s string) string {
	folded := caseFolder.String(s)
	if stripped, _, err := transform.String(stripMarks, folded); err == nil {
		folded = stripped
	}
	return strings.Join(strings.Fields(folded), " ")
}

// Equal reports whether two names are the same under canonicalization.
func Equal(a, b string) bool {
	return Name(a) == Name(b)
}

var titleCaser = cases.Title(language.English, cases.NoLower)

// Title converts a name to display title case without lowering runs of
// capitals, so acronyms survive.
func Title(s string) string {
	return titleCaser.String(s)
}
