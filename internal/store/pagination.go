package store

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// PaginationParams contains pagination request parameters.
type PaginationParams struct {
	Limit  int    // Items per page (defaults to 100, capped at 1000)
	Cursor string // Opaque cursor for the next page (empty for first page)
}

// PaginatedResult contains paginated data and metadata.
type PaginatedResult[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"` // Empty if no more pages
	HasMore    bool   `json:"has_more"`
	Total      int    `json:"total,omitempty"`
}

// Validate checks and corrects pagination parameters.
func (p *PaginationParams) Validate() {
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Limit > 1000 {
		p.Limit = 1000
	}
}

// cursorSep separates the sort key from the row id inside a cursor.
// Row ids come from a URL-safe alphabet and never contain it, so
// decoding splits on the last occurrence and the sort key may contain
// any character.
const cursorSep = "\x00"

// EncodeCursor creates an opaque cursor from a sort key and row id.
func EncodeCursor(key, id string) string {
	return base64.URLEncoding.EncodeToString([]byte(key + cursorSep + id))
}

// DecodeCursor decodes a cursor back to its sort key and row id.
func DecodeCursor(cursor string) (string, string, error) {
	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return "", "", fmt.Errorf("invalid cursor: %w", err)
	}

	i := strings.LastIndex(string(decoded), cursorSep)
	if i < 0 {
		return "", "", fmt.Errorf("invalid cursor format")
	}
	return string(decoded[:i]), string(decoded[i+1:]), nil
}
