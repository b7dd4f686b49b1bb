// Package googlebooks provides a client for the Google Books volumes API.
package googlebooks

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/inkwellapp/inkwell-server/internal/ratelimit"
)

const (
	// DefaultBaseURL is the production Google Books API base.
	DefaultBaseURL = "https://www.googleapis.com/books/v1"

	// UnknownAuthor stands in for volumes with no listed contributors.
	UnknownAuthor = "Unknown Author"

	// Rate limit: 2 requests per second, burst of 5.
	defaultRPS   = 2.0
	defaultBurst = 5

	defaultTimeout = 30 * time.Second

	limiterKey = "googlebooks"
)

// Sentinel errors for Google Books API operations.
var (
	ErrNotFound    = errors.New("googlebooks: not found")
	ErrRateLimited = errors.New("googlebooks: rate limited by server")
	ErrBadRequest  = errors.New("googlebooks: bad request")
	ErrServer      = errors.New("googlebooks: server error")
)

// Client is a rate-limited Google Books client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
}

// New creates a new Google Books client. The API key is optional; without
// it Google applies anonymous quota.
func New(apiKey string, logger *slog.Logger) *Client {
	return NewWithBaseURL(DefaultBaseURL, apiKey, logger)
}

// NewWithBaseURL creates a client against a specific base URL. Used by
// tests to point at a stub server.
func NewWithBaseURL(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
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

// Volume is a normalized Google Books volume.
type Volume struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Subtitle      string    `json:"subtitle,omitempty"`
	Authors       []string  `json:"authors"`
	Description   string    `json:"description,omitempty"`
	PublishedDate time.Time `json:"published_date,omitempty"`
	Publisher     string    `json:"publisher,omitempty"`
	ISBN10        string    `json:"isbn_10,omitempty"`
	ISBN13        string    `json:"isbn_13,omitempty"`
	PageCount     int       `json:"page_count,omitempty"`
	Categories    []string  `json:"categories,omitempty"`
}

// Search searches volumes by free-text query.
func (c *Client) Search(ctx context.Context, query string) ([]Volume, error) {
	return c.volumes(ctx, query)
}

// SearchAuthor searches volumes attributed to an author, using the
// inauthor: qualifier for exact author scoping.
func (c *Client) SearchAuthor(ctx context.Context, author string) ([]Volume, error) {
	return c.volumes(ctx, fmt.Sprintf("inauthor:%q", author))
}

func (c *Client) volumes(ctx context.Context, query string) ([]Volume, error) {
	if err := c.limiter.Wait(ctx, limiterKey); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	reqURL := c.baseURL + "/volumes?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("googlebooks request", "query", query)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusBadRequest:
		return nil, ErrBadRequest
	default:
		if resp.StatusCode >= 500 {
			return nil, ErrServer
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var raw struct {
		Items []rawVolume `json:"items"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	volumes := make([]Volume, 0, len(raw.Items))
	for _, item := range raw.Items {
		volumes = append(volumes, item.normalize())
	}
	return volumes, nil
}

type rawVolume struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title               string   `json:"title"`
		Subtitle            string   `json:"subtitle"`
		Authors             []string `json:"authors"`
		Publisher           string   `json:"publisher"`
		PublishedDate       string   `json:"publishedDate"`
		Description         string   `json:"description"`
		PageCount           int      `json:"pageCount"`
		Categories          []string `json:"categories"`
		IndustryIdentifiers []struct {
			Type       string `json:"type"`
			Identifier string `json:"identifier"`
		} `json:"industryIdentifiers"`
	} `json:"volumeInfo"`
}

// normalize converts the wire volume into the client-facing shape. Volumes
// without contributors get the Unknown Author placeholder.
func (r rawVolume) normalize() Volume {
	info := r.VolumeInfo

	v := Volume{
		ID:            r.ID,
		Title:         info.Title,
		Subtitle:      info.Subtitle,
		Authors:       info.Authors,
		Description:   info.Description,
		PublishedDate: ParseDate(info.PublishedDate),
		Publisher:     info.Publisher,
		PageCount:     info.PageCount,
		Categories:    info.Categories,
	}

	if len(v.Authors) == 0 {
		v.Authors = []string{UnknownAuthor}
	}

	for _, ident := range info.IndustryIdentifiers {
		switch ident.Type {
		case "ISBN_10":
			v.ISBN10 = ident.Identifier
		case "ISBN_13":
			v.ISBN13 = ident.Identifier
		}
	}

	return v
}

// dateFormats are tried in order; Google Books publishes full dates,
// year-month, or bare years depending on the volume.
var dateFormats = []string{"2006-01-02", "2006-01", "2006"}

// ParseDate parses a Google Books published date. Year-month dates
// resolve to the first of the month and bare years to January 1.
// Absent or unparsable dates yield the zero time.
func ParseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
