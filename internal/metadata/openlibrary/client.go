// Package openlibrary provides a client for the OpenLibrary search and
// edition APIs. OpenLibrary requires no authentication.
package openlibrary

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
	// DefaultBaseURL is the production OpenLibrary host.
	DefaultBaseURL = "https://openlibrary.org"

	// Rate limit: OpenLibrary asks for at most 1 request per second
	// from unauthenticated clients.
	defaultRPS   = 1.0
	defaultBurst = 2

	defaultTimeout = 30 * time.Second

	limiterKey = "openlibrary"
)

// Sentinel errors for OpenLibrary API operations.
var (
	ErrNotFound    = errors.New("openlibrary: not found")
	ErrRateLimited = errors.New("openlibrary: rate limited by server")
	ErrServer      = errors.New("openlibrary: server error")
)

// Client is a rate-limited OpenLibrary client.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
}

// New creates a new OpenLibrary client.
func New(logger *slog.Logger) *Client {
	return NewWithBaseURL(DefaultBaseURL, logger)
}

// NewWithBaseURL creates a client against a specific host. Used by tests
// to point at a stub server.
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

// Author is an OpenLibrary author search result.
type Author struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	BirthDate string `json:"birth_date,omitempty"`
	TopWork   string `json:"top_work,omitempty"`
	WorkCount int    `json:"work_count"`
}

// Book is an OpenLibrary book search result.
type Book struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorNames      []string `json:"author_name,omitempty"`
	FirstPublishYear int      `json:"first_publish_year,omitempty"`
	ISBNs            []string `json:"isbn,omitempty"`
}

// Edition is an OpenLibrary edition record looked up by ISBN.
type Edition struct {
	Key           string   `json:"key"`
	Title         string   `json:"title"`
	Publishers    []string `json:"publishers,omitempty"`
	PublishDate   string   `json:"publish_date,omitempty"`
	ISBN10        []string `json:"isbn_10,omitempty"`
	ISBN13        []string `json:"isbn_13,omitempty"`
	NumberOfPages int      `json:"number_of_pages,omitempty"`
}

// SearchAuthors searches OpenLibrary authors by name.
func (c *Client) SearchAuthors(ctx context.Context, query string) ([]Author, error) {
	body, err := c.get(ctx, "/search/authors.json?q="+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}

	var result struct {
		Docs []Author `json:"docs"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse author search: %w", err)
	}
	return result.Docs, nil
}

// SearchBooks searches OpenLibrary books by title.
func (c *Client) SearchBooks(ctx context.Context, query string) ([]Book, error) {
	body, err := c.get(ctx, "/search/books.json?q="+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}

	var result struct {
		Docs []Book `json:"docs"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse book search: %w", err)
	}
	return result.Docs, nil
}

// GetByISBN fetches the edition record for an ISBN-10 or ISBN-13.
func (c *Client) GetByISBN(ctx context.Context, isbn string) (*Edition, error) {
	body, err := c.get(ctx, "/isbn/"+url.PathEscape(isbn)+".json")
	if err != nil {
		return nil, err
	}

	var edition Edition
	if err := json.Unmarshal(body, &edition); err != nil {
		return nil, fmt.Errorf("parse edition: %w", err)
	}
	return &edition, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx, limiterKey); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("openlibrary request", "path", path)

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
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, ErrServer
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}
