// Package bookshop provides a client for the Bookshop.org instantsearch
// API, a Meilisearch multi-search endpoint behind the storefront.
package bookshop

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/inkwellapp/inkwell-server/internal/ratelimit"
)

const (
	// DefaultBaseURL is the storefront search endpoint.
	DefaultBaseURL = "https://bookshop.org/api/next/instantsearch/multi-search"

	// The storefront requests 21 hits per page.
	defaultLimit = 21

	// Rate limit: 1 request per second, burst of 2. The endpoint is not a
	// public API, so stay well under anything that looks like scraping.
	defaultRPS   = 1.0
	defaultBurst = 2

	defaultTimeout = 30 * time.Second

	limiterKey = "bookshop"
)

// Sentinel errors for Bookshop API operations.
var (
	ErrRateLimited = errors.New("bookshop: rate limited by server")
	ErrServer      = errors.New("bookshop: server error")
)

// Client is a rate-limited Bookshop search client.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
}

// New creates a new Bookshop client.
func New(logger *slog.Logger) *Client {
	return NewWithBaseURL(DefaultBaseURL, logger)
}

// NewWithBaseURL creates a client against a specific endpoint. Used by
// tests to point at a stub server.
func NewWithBaseURL(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter: ratelimit.New(defaultRPS, defaultBurst),
		logger:  logger,
	}
}

// SetLimits overrides the default request rate and timeout. Call before
// issuing requests.
func (c *Client) SetLimits(rps float64, timeout time.Duration) {
	if rps > 0 {
		c.limiter.Stop()
		c.limiter = ratelimit.New(rps, defaultBurst)
	}
	if timeout > 0 {
		c.http.Timeout = timeout
	}
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// Product is a Bookshop search hit.
type Product struct {
	EAN                string   `json:"ean"`
	Title              string   `json:"title"`
	Subtitle           string   `json:"subtitle,omitempty"`
	PrimaryContributor string   `json:"primary_contributor,omitempty"`
	Contributors       []string `json:"contributors,omitempty"`
	FormatCategory     string   `json:"format_category,omitempty"`
	PublicationDate    string   `json:"publication_date,omitempty"`
	Publisher          string   `json:"publisher,omitempty"`
	CoverURL           string   `json:"cover_url,omitempty"`
}

type searchQuery struct {
	IndexUID              string     `json:"indexUid"`
	Q                     string     `json:"q"`
	Facets                []string   `json:"facets,omitempty"`
	Filter                [][]string `json:"filter,omitempty"`
	AttributesToHighlight []string   `json:"attributesToHighlight"`
	HighlightPreTag       string     `json:"highlightPreTag"`
	HighlightPostTag      string     `json:"highlightPostTag"`
	Limit                 int        `json:"limit"`
	Offset                int        `json:"offset"`
	MatchingStrategy      string     `json:"matchingStrategy"`
	AttributesToSearchOn  []string   `json:"attributesToSearchOn"`
}

// newSearchQuery builds a query the way the storefront issues them.
func newSearchQuery(query string, limit int, facets []string, filter [][]string) searchQuery {
	return searchQuery{
		IndexUID:              "products",
		Q:                     query,
		Facets:                facets,
		Filter:                filter,
		AttributesToHighlight: []string{"*"},
		HighlightPreTag:       "__ais-highlight__",
		HighlightPostTag:      "__/ais-highlight__",
		Limit:                 limit,
		Offset:                0,
		MatchingStrategy:      "frequency",
		AttributesToSearchOn: []string{
			"title", "subtitle", "ean", "primary_contributor", "contributors",
		},
	}
}

// Search searches primary product listings for a free-text query.
func (c *Client) Search(ctx context.Context, query string) ([]Product, error) {
	q := newSearchQuery(query, defaultLimit,
		[]string{"format_category", "is_drm_free", "is_primary"},
		[][]string{{`"is_primary"="true"`}})
	return c.multiSearch(ctx, []searchQuery{q})
}

// SearchFormat searches listings restricted to a format category, for
// example "paperback" or "hardcover".
func (c *Client) SearchFormat(ctx context.Context, query, format string) ([]Product, error) {
	q := newSearchQuery(query, defaultLimit,
		[]string{"format_category", "is_drm_free", "is_primary"},
		[][]string{{fmt.Sprintf(`"format_category"=%s`, format)}})
	facetQ := newSearchQuery(query, 1, []string{"format_category"}, nil)
	return c.multiSearch(ctx, []searchQuery{q, facetQ})
}

func (c *Client) multiSearch(ctx context.Context, queries []searchQuery) ([]Product, error) {
	if err := c.limiter.Wait(ctx, limiterKey); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(struct {
		Queries []searchQuery `json:"queries"`
	}{Queries: queries})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("bookshop request", "query", queries[0].Q)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, ErrServer
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Results []struct {
			Hits []Product `json:"hits"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	// Only the first query carries product hits; the second query of a
	// format search exists for facet counts.
	if len(result.Results) == 0 {
		return nil, nil
	}
	return result.Results[0].Hits, nil
}
