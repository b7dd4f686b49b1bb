package hardcover

import (
	"bytes"
	"context"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/inkwellapp/inkwell-server/internal/ratelimit"
)

const (
	// DefaultEndpoint is the production Hardcover GraphQL endpoint.
	DefaultEndpoint = "https://api.hardcover.app/v1/graphql"

	// Rate limit: 1 request per second, burst of 3.
	defaultRPS   = 1.0
	defaultBurst = 3

	defaultTimeout = 30 * time.Second

	// limiterKey keys the shared limiter; Hardcover has a single host.
	limiterKey = "hardcover"
)

// Client is a rate-limited Hardcover GraphQL client.
type Client struct {
	endpoint string
	http     *http.Client
	limiter  *ratelimit.KeyedRateLimiter
	logger   *slog.Logger

	mu    sync.RWMutex
	token string
}

// New creates a new Hardcover client authenticating with the given bearer
// token.
func New(token string, logger *slog.Logger) *Client {
	return NewWithEndpoint(DefaultEndpoint, token, logger)
}

// NewWithEndpoint creates a client against a specific endpoint. Used by
// tests to point at a stub server.
func NewWithEndpoint(endpoint, token string, logger *slog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		token:    token,
		http: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter: ratelimit.New(defaultRPS, defaultBurst),
		logger:  logger,
	}
}

// SetToken replaces the bearer token used for subsequent requests.
// Lets a reloaded settings document take effect without a restart.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearerToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
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

// graphqlRequest is the wire shape of a GraphQL POST body.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlError is a single error entry in a GraphQL response.
type graphqlError struct {
	Message string `json:"message"`
}

// doQuery executes a GraphQL query with rate limiting and returns the raw
// data payload.
func (c *Client) doQuery(ctx context.Context, query string, variables map[string]any) (jsontext.Value, error) {
	if err := c.limiter.Wait(ctx, limiterKey); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.bearerToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("hardcover request", "endpoint", c.endpoint)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// Fall through to GraphQL-level error handling.
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusBadRequest:
		return nil, ErrBadRequest
	default:
		if resp.StatusCode >= 500 {
			return nil, ErrServer
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope struct {
		Data   jsontext.Value `json:"data"`
		Errors []graphqlError `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}

	return envelope.Data, nil
}
