// Package serpapi provides a client for the SerpAPI Google Shopping engine.
package serpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the SerpAPI operations used by the deal engine.
type Client interface {
	// ShoppingSearch runs a Google Shopping search and returns raw results.
	ShoppingSearch(ctx context.Context, query string, opts ...SearchOption) (*ShoppingResponse, error)
}

// ShoppingResponse is the parsed SerpAPI response.
type ShoppingResponse struct {
	SearchMetadata  SearchMetadata   `json:"search_metadata"`
	ShoppingResults []ShoppingResult `json:"shopping_results"`
}

// SearchMetadata holds request bookkeeping from SerpAPI.
type SearchMetadata struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ShoppingResult is a single Google Shopping row.
type ShoppingResult struct {
	Position           int      `json:"position"`
	Title              string   `json:"title"`
	Link               string   `json:"link"`
	ProductLink        string   `json:"product_link"`
	Source             string   `json:"source"`
	Price              string   `json:"price"`
	ExtractedPrice     float64  `json:"extracted_price"`
	OldPrice           string   `json:"old_price,omitempty"`
	ExtractedOldPrice  float64  `json:"extracted_old_price,omitempty"`
	Rating             *float64 `json:"rating,omitempty"`
	Reviews            *int     `json:"reviews,omitempty"`
	Thumbnail          string   `json:"thumbnail,omitempty"`
	Delivery           string   `json:"delivery,omitempty"`
	SecondHandCondition string  `json:"second_hand_condition,omitempty"`
}

// SearchOption configures a shopping search.
type SearchOption func(*searchOpts)

type searchOpts struct {
	country string
	limit   int
}

// WithCountry sets the gl country code for the search.
func WithCountry(code string) SearchOption {
	return func(o *searchOpts) { o.country = code }
}

// WithLimit caps the number of results requested.
func WithLimit(n int) SearchOption {
	return func(o *searchOpts) { o.limit = n }
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a SerpAPI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://serpapi.com",
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) ShoppingSearch(ctx context.Context, query string, opts ...SearchOption) (*ShoppingResponse, error) {
	var so searchOpts
	for _, opt := range opts {
		opt(&so)
	}

	q := url.Values{}
	q.Set("engine", "google_shopping")
	q.Set("q", query)
	q.Set("api_key", c.apiKey)
	if so.country != "" {
		q.Set("gl", so.country)
	}
	if so.limit > 0 {
		q.Set("num", strconv.Itoa(so.limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: create request")
	}
	req.Header.Set("Accept", "application/json")

	body, statusCode, err := retryDo(ctx, c.http, req, "serpapi")
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: request failed")
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("serpapi: unexpected status %d: %s", statusCode, string(body))
	}

	var resp ShoppingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "serpapi: parse response")
	}
	return &resp, nil
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes an HTTP request with exponential backoff on transient
// failures (429, 500, 502, 503). Returns the response body and status code.
func retryDo(ctx context.Context, hc *http.Client, req *http.Request, service string) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retryReq := req.Clone(ctx)

		resp, err := hc.Do(retryReq)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrapf(readErr, "%s: read response body", service)
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("%s: status %d: %s", service, resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}
