// Package hardcover provides a client for the Hardcover GraphQL API.
package hardcover

// Author is an author hit from the Hardcover search index.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Bio  string `json:"bio,omitempty"`
}

// Book is a book hit from the Hardcover search index.
type Book struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	AuthorNames []string `json:"author_names,omitempty"`
}

// Series is a series hit from the Hardcover search index.
type Series struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Edition is one published form of a work.
type Edition struct {
	ASIN   string `json:"asin,omitempty"`
	ISBN10 string `json:"isbn_10,omitempty"`
	ISBN13 string `json:"isbn_13,omitempty"`
}

// WorkSeries places a work in a series.
type WorkSeries struct {
	SeriesID string  `json:"series_id"`
	Name     string  `json:"name"`
	Position float64 `json:"position,omitempty"`
}

// Work is a book attributed to an author via contributions.
type Work struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Editions    []Edition    `json:"editions,omitempty"`
	Series      []WorkSeries `json:"series,omitempty"`
}
