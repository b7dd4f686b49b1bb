package domain

import "time"

// Series is a named sequence of books. Books link to series through the
// book_series join table; deleting a series detaches its books.
type Series struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	ExternalRefs map[string]string `json:"external_refs,omitempty"`
}

// SeriesMembership links a book into a series. Position is the book's
// place in the series order; zero means unknown.
type SeriesMembership struct {
	SeriesID string  `json:"series_id"`
	Position float64 `json:"position,omitempty"`
}
