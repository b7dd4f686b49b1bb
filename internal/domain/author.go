// Package domain contains the core catalog models shared across the Inkwell server.
package domain

import "time"

// Author is a catalog author. Authors are linked to books through the
// book_authors join table; deleting an author removes the links but
// never the books themselves.
type Author struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name string `json:"name"`
	Bio  string `json:"bio,omitempty"`

	// ExternalRefs maps a provider name (e.g. "hardcover_id") to the
	// provider-specific identifier used to re-fetch this author. It is
	// the only durable link back to the provider record, so updates
	// merge into it rather than replacing it.
	ExternalRefs map[string]string `json:"external_refs,omitempty"`
}
