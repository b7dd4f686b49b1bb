package domain

import "time"

// Tag is a user-defined label. Tags attach to books through the
// book_tags join table; no enrichment flow populates them.
type Tag struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
