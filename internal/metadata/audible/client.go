package audible

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/inkwellapp/inkwell-server/internal/ratelimit"
)

const (
	// Rate limit: 1 request per second per region, burst of 3.
	defaultRPS   = 1.0
	defaultBurst = 3

	defaultTimeout = 30 * time.Second

	defaultNumResults = 25
	maxNumResults     = 50
)

// ASIN format: 10 alphanumeric characters, typically starting with B.
var asinRegex = regexp.MustCompile(`^[A-Z0-9]{10}$`)

// ValidateASIN checks if an ASIN has valid format.
func ValidateASIN(asin string) bool {
	return asinRegex.MatchString(asin)
}

// Client is a rate-limited Audible catalog client.
type Client struct {
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger

	// baseURL overrides the region host lookup when set. Used by tests.
	baseURL string
}

// New creates a new Audible client.
func New(logger *slog.Logger) *Client {
	return &Client{
		http: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter: ratelimit.New(defaultRPS, defaultBurst),
		logger:  logger,
	}
}

// NewWithBaseURL creates a client that sends every request to a fixed
// base URL regardless of region. Used by tests to point at a stub server.
func NewWithBaseURL(baseURL string, logger *slog.Logger) *Client {
	c := New(logger)
	c.baseURL = baseURL
	return c
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

// SearchParams defines parameters for catalog search.
type SearchParams struct {
	Keywords string
	Title    string
	Author   string
	Limit    int // default 25, max 50
}

// Search searches the Audible catalog and returns normalized products.
func (c *Client) Search(ctx context.Context, region Region, params SearchParams) ([]Product, error) {
	if !region.Valid() {
		return nil, wrapError("search", region, "", ErrBadRequest)
	}

	query := url.Values{}
	if params.Keywords != "" {
		query.Set("keywords", params.Keywords)
	}
	if params.Title != "" {
		query.Set("title", params.Title)
	}
	if params.Author != "" {
		query.Set("author", params.Author)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultNumResults
	}
	if limit > maxNumResults {
		limit = maxNumResults
	}
	query.Set("num_results", strconv.Itoa(limit))
	query.Set("response_groups", responseGroups())
	query.Set("products_sort_by", "Relevance")

	body, err := c.doRequest(ctx, region, "/1.0/catalog/products", query)
	if err != nil {
		return nil, wrapError("search", region, "", err)
	}

	var resp struct {
		Products []rawProduct `json:"products"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapError("search", region, "", fmt.Errorf("parse response: %w", err))
	}

	products := make([]Product, 0, len(resp.Products))
	for i := range resp.Products {
		products = append(products, *resp.Products[i].normalize())
	}
	return products, nil
}

// GetProduct retrieves a single catalog product by ASIN.
func (c *Client) GetProduct(ctx context.Context, region Region, asin string) (*Product, error) {
	if !region.Valid() {
		return nil, wrapError("getProduct", region, asin, ErrBadRequest)
	}
	if !ValidateASIN(asin) {
		return nil, wrapError("getProduct", region, asin, ErrInvalidASIN)
	}

	query := url.Values{}
	query.Set("response_groups", responseGroups())

	body, err := c.doRequest(ctx, region, "/1.0/catalog/products/"+asin, query)
	if err != nil {
		return nil, wrapError("getProduct", region, asin, err)
	}

	var resp struct {
		Product rawProduct `json:"product"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapError("getProduct", region, asin, fmt.Errorf("parse response: %w", err))
	}

	return resp.Product.normalize(), nil
}

// doRequest executes a rate-limited GET against the region's API host.
func (c *Client) doRequest(ctx context.Context, region Region, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx, string(region)); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path + "?" + query.Encode()
	if c.baseURL == "" {
		u := url.URL{
			Scheme:   "https",
			Host:     region.Host(),
			Path:     path,
			RawQuery: query.Encode(),
		}
		reqURL = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Inkwell/1.0")

	c.logger.Debug("audible request",
		"region", region,
		"path", path,
	)

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
		return body, nil
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
}

// responseGroups returns the standard response_groups parameter value.
func responseGroups() string {
	return "contributors,product_desc,product_attrs,product_extended_attrs,series"
}

// Raw API response types.

type rawProduct struct {
	ASIN                 string           `json:"asin"`
	Title                string           `json:"title"`
	Subtitle             string           `json:"subtitle"`
	PublisherName        string           `json:"publisher_name"`
	ReleaseDate          string           `json:"release_date"`
	RuntimeLengthMin     int              `json:"runtime_length_min"`
	MerchandisingSummary string           `json:"merchandising_summary"`
	Authors              []rawContributor `json:"authors"`
	Narrators            []rawContributor `json:"narrators"`
	Series               []rawSeries      `json:"series"`
	Language             string           `json:"language"`
}

type rawContributor struct {
	ASIN string `json:"asin"`
	Name string `json:"name"`
}

type rawSeries struct {
	ASIN     string `json:"asin"`
	Title    string `json:"title"`
	Sequence string `json:"sequence"`
}

// normalize converts a raw catalog product into the client-facing shape.
// Merchandising summaries arrive as HTML and are reduced to plain text.
func (p *rawProduct) normalize() *Product {
	var releaseDate time.Time
	if p.ReleaseDate != "" {
		releaseDate, _ = time.Parse("2006-01-02", p.ReleaseDate)
	}

	var series []SeriesEntry
	for _, s := range p.Series {
		series = append(series, SeriesEntry{
			ASIN:     s.ASIN,
			Name:     s.Title,
			Position: s.Sequence,
		})
	}

	return &Product{
		ASIN:           p.ASIN,
		Title:          p.Title,
		Subtitle:       p.Subtitle,
		Authors:        contributors(p.Authors, "author"),
		Narrators:      contributors(p.Narrators, "narrator"),
		Publisher:      p.PublisherName,
		ReleaseDate:    releaseDate,
		RuntimeMinutes: p.RuntimeLengthMin,
		Description:    stripHTML(p.MerchandisingSummary),
		Series:         series,
		Language:       p.Language,
	}
}

func contributors(raw []rawContributor, role string) []Contributor {
	out := make([]Contributor, 0, len(raw))
	for _, c := range raw {
		out = append(out, Contributor{
			ASIN: c.ASIN,
			Name: c.Name,
			Role: role,
		})
	}
	return out
}
