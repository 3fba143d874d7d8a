// Package pokeapi retrieves the Pokémon catalog from a PokeAPI-compatible
// REST endpoint and flattens detail responses into records.
package pokeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public PokeAPI v2 endpoint.
const DefaultBaseURL = "https://pokeapi.co/api/v2"

// CatalogLimit is the page size requested for the catalog listing; large
// enough to return the whole catalog in one response.
const CatalogLimit = 10000

// DefaultTimeout bounds a single HTTP request.
const DefaultTimeout = 30 * time.Second

// ErrNetwork is matched by every transport failure and non-success status.
var ErrNetwork = errors.New("network error")

// NetworkError describes a failed request. It matches ErrNetwork with
// errors.Is and unwraps to the transport error, if any.
type NetworkError struct {
	URL        string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network error: GET %s: HTTP status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("network error: GET %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNetwork}
	}
	return []error{ErrNetwork, e.Err}
}

// Client issues catalog and detail requests.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header sent with each request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client for baseURL. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: DefaultTimeout},
		userAgent: "pokelab",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List requests the catalog listing.
func (c *Client) List(ctx context.Context) (*ListResponse, error) {
	var resp ListResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/pokemon?limit=%d", CatalogLimit), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Detail requests one Pokémon by name or numeric ID.
func (c *Client) Detail(ctx context.Context, nameOrID string) (*DetailResponse, error) {
	var resp DetailResponse
	if err := c.getJSON(ctx, "/pokemon/"+url.PathEscape(nameOrID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// getJSON performs a GET and decodes a successful JSON body into v.
func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	target := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Cancellation is the caller's decision, not a network fault.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &NetworkError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &NetworkError{URL: target, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &NetworkError{URL: target, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
