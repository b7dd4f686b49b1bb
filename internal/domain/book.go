package domain

import "time"

// BookStatus tracks how much the user wants (or has) a book in a
// particular form. The zero-ish default for new rows is StatusWanted.
type BookStatus string

const (
	StatusWanted  BookStatus = "Wanted"
	StatusHave    BookStatus = "Have"
	StatusIgnored BookStatus = "Ignored"
	StatusDelete  BookStatus = "Delete"
)

// Valid reports whether s is a recognized status value.
func (s BookStatus) Valid() bool {
	switch s {
	case StatusWanted, StatusHave, StatusIgnored, StatusDelete:
		return true
	}
	return false
}

// Edition is provider-supplied edition metadata stored verbatim on a book.
type Edition struct {
	ASIN   string `json:"asin,omitempty"`
	ISBN10 string `json:"isbn_10,omitempty"`
	ISBN13 string `json:"isbn_13,omitempty"`
}

// Book is a catalog book. Books are linked to authors and series through
// join tables (book_authors, book_series); a book created by enrichment
// always has at least one author association.
type Book struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// Status is the overall state; AStatus and PStatus track the audio
	// and print editions independently. Each can be patched on its own.
	Status  BookStatus `json:"status"`
	AStatus BookStatus `json:"a_status"`
	PStatus BookStatus `json:"p_status"`

	Editions     []Edition         `json:"editions,omitempty"`
	ExternalRefs map[string]string `json:"external_refs,omitempty"`
}
