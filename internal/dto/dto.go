// Package dto provides Data Transfer Objects for API responses.
//
// DTOs contain denormalized fields for immediate client rendering while
// preserving normalized IDs for relationships.
package dto

import "github.com/inkwellapp/inkwell-server/internal/domain"

// AuthorSummary is the compact author projection embedded in book and
// series responses.
type AuthorSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SeriesInfo is the client-facing representation of a book-series
// relationship, with the series name denormalized for immediate rendering.
type SeriesInfo struct {
	SeriesID string  `json:"series_id"`
	Name     string  `json:"name"`
	Position float64 `json:"position,omitempty"`
}

// BookSummary is the compact book projection embedded in author and
// series responses.
type BookSummary struct {
	ID      string            `json:"id"`
	Title   string            `json:"title"`
	Status  domain.BookStatus `json:"status"`
	AStatus domain.BookStatus `json:"a_status"`
	PStatus domain.BookStatus `json:"p_status"`
}

// Book is the client-facing representation of a book, embedding the
// domain fields plus resolved relationships.
type Book struct {
	*domain.Book

	Authors []AuthorSummary `json:"authors"`
	Series  []SeriesInfo    `json:"series,omitempty"`
	Tags    []string        `json:"tags,omitempty"`
}

// Author is the client-facing representation of an author with its books.
type Author struct {
	*domain.Author

	Books []BookSummary `json:"books"`
}

// Series is the client-facing representation of a series with its books
// in series order.
type Series struct {
	*domain.Series

	Books []BookSummary `json:"books"`
}

// NewAuthorSummary projects a domain author.
func NewAuthorSummary(a *domain.Author) AuthorSummary {
	return AuthorSummary{ID: a.ID, Name: a.Name}
}

// NewBookSummary projects a domain book.
func NewBookSummary(b *domain.Book) BookSummary {
	return BookSummary{
		ID:      b.ID,
		Title:   b.Title,
		Status:  b.Status,
		AStatus: b.AStatus,
		PStatus: b.PStatus,
	}
}

// NewBookSummaries projects a slice of domain books.
func NewBookSummaries(books []*domain.Book) []BookSummary {
	summaries := make([]BookSummary, 0, len(books))
	for _, b := range books {
		summaries = append(summaries, NewBookSummary(b))
	}
	return summaries
}

// NewAuthorSummaries projects a slice of domain authors.
func NewAuthorSummaries(authors []*domain.Author) []AuthorSummary {
	summaries := make([]AuthorSummary, 0, len(authors))
	for _, a := range authors {
		summaries = append(summaries, NewAuthorSummary(a))
	}
	return summaries
}
