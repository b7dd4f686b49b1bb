package hardcover

import (
	"context"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"fmt"
	"strings"
)

// searchQuery hits Hardcover's typesense-backed search. The results field
// is an opaque JSON document mirroring the search index.
const searchQuery = `query Search($query: String!, $queryType: String!) {
  search(query: $query, query_type: $queryType, per_page: 5, page: 1) {
    results
  }
}`

// searchHits navigates data.search.results.hits and returns the raw
// document of each hit.
func (c *Client) searchHits(ctx context.Context, query, queryType string) ([]jsontext.Value, error) {
	data, err := c.doQuery(ctx, searchQuery, map[string]any{
		"query":     query,
		"queryType": queryType,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Search struct {
			Results struct {
				Hits []struct {
					Document jsontext.Value `json:"document"`
				} `json:"hits"`
			} `json:"results"`
		} `json:"search"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	docs := make([]jsontext.Value, 0, len(resp.Search.Results.Hits))
	for _, hit := range resp.Search.Results.Hits {
		docs = append(docs, hit.Document)
	}
	return docs, nil
}

// SearchAuthor searches for an author by name. An exact case-insensitive
// name match wins; otherwise the first hit is returned. No hits at all
// yields ErrNotFound.
func (c *Client) SearchAuthor(ctx context.Context, name string) (*Author, error) {
	docs, err := c.searchHits(ctx, name, "Author")
	if err != nil {
		return nil, wrapError("searchAuthor", name, err)
	}

	var first *Author
	for _, doc := range docs {
		var a Author
		if err := json.Unmarshal(doc, &a); err != nil {
			return nil, wrapError("searchAuthor", name, fmt.Errorf("parse hit: %w", err))
		}
		a.Bio = htmlToMarkdown(a.Bio)
		if strings.EqualFold(a.Name, name) {
			return &a, nil
		}
		if first == nil {
			first = &a
		}
	}
	if first != nil {
		return first, nil
	}
	return nil, wrapError("searchAuthor", name, ErrNotFound)
}

// SearchBook searches for a book by title with the same pick semantics as
// SearchAuthor.
func (c *Client) SearchBook(ctx context.Context, title string) (*Book, error) {
	docs, err := c.searchHits(ctx, title, "Book")
	if err != nil {
		return nil, wrapError("searchBook", title, err)
	}

	var first *Book
	for _, doc := range docs {
		var b Book
		if err := json.Unmarshal(doc, &b); err != nil {
			return nil, wrapError("searchBook", title, fmt.Errorf("parse hit: %w", err))
		}
		b.Description = htmlToMarkdown(b.Description)
		if strings.EqualFold(b.Title, title) {
			return &b, nil
		}
		if first == nil {
			first = &b
		}
	}
	if first != nil {
		return first, nil
	}
	return nil, wrapError("searchBook", title, ErrNotFound)
}

// SearchSeries searches for a series by name with the same pick semantics
// as SearchAuthor.
func (c *Client) SearchSeries(ctx context.Context, name string) (*Series, error) {
	docs, err := c.searchHits(ctx, name, "Series")
	if err != nil {
		return nil, wrapError("searchSeries", name, err)
	}

	var first *Series
	for _, doc := range docs {
		var sr Series
		if err := json.Unmarshal(doc, &sr); err != nil {
			return nil, wrapError("searchSeries", name, fmt.Errorf("parse hit: %w", err))
		}
		if strings.EqualFold(sr.Name, name) {
			return &sr, nil
		}
		if first == nil {
			first = &sr
		}
	}
	if first != nil {
		return first, nil
	}
	return nil, wrapError("searchSeries", name, ErrNotFound)
}
