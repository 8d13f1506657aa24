// Package ebay provides a client for the eBay Browse API using OAuth2
// client-credentials application tokens.
package ebay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2/clientcredentials"
)

const browseScope = "https://api.ebay.com/oauth/api_scope"

// Client defines the eBay Browse operations used by the deal engine.
type Client interface {
	// SearchItems runs a keyword search against the item summary endpoint.
	SearchItems(ctx context.Context, query string, limit int) (*SearchResponse, error)
}

// SearchResponse is the parsed item_summary/search response.
type SearchResponse struct {
	Total         int           `json:"total"`
	ItemSummaries []ItemSummary `json:"itemSummaries"`
}

// ItemSummary is one item from a Browse search.
type ItemSummary struct {
	ItemID          string           `json:"itemId"`
	Title           string           `json:"title"`
	Price           *Amount          `json:"price,omitempty"`
	MarketingPrice  *MarketingPrice  `json:"marketingPrice,omitempty"`
	Image           *ImageRef        `json:"image,omitempty"`
	ItemWebURL      string           `json:"itemWebUrl"`
	Seller          *Seller          `json:"seller,omitempty"`
	Condition       string           `json:"condition,omitempty"`
	ShippingOptions []ShippingOption `json:"shippingOptions,omitempty"`
}

// Amount is an eBay money value (string-encoded decimal).
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Float parses the string-encoded amount; malformed values yield 0.
func (a *Amount) Float() float64 {
	if a == nil {
		return 0
	}
	v, err := strconv.ParseFloat(a.Value, 64)
	if err != nil {
		return 0
	}
	return v
}

// MarketingPrice carries strike-through pricing.
type MarketingPrice struct {
	OriginalPrice      *Amount `json:"originalPrice,omitempty"`
	DiscountPercentage string  `json:"discountPercentage,omitempty"`
}

// ImageRef points at a hosted item image.
type ImageRef struct {
	ImageURL string `json:"imageUrl"`
}

// Seller identifies the listing seller.
type Seller struct {
	Username           string `json:"username"`
	FeedbackPercentage string `json:"feedbackPercentage,omitempty"`
}

// ShippingOption carries a shipping cost quote.
type ShippingOption struct {
	ShippingCost *Amount `json:"shippingCost,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithTokenURL sets a custom OAuth token URL (for testing).
func WithTokenURL(u string) Option {
	return func(c *httpClient) { c.tokenURL = u }
}

// WithMarketplace sets the X-EBAY-C-MARKETPLACE-ID header value.
func WithMarketplace(id string) Option {
	return func(c *httpClient) { c.marketplace = id }
}

type httpClient struct {
	baseURL     string
	tokenURL    string
	marketplace string
	creds       clientcredentials.Config
	http        *http.Client
}

// NewClient creates an eBay Browse client. The OAuth2 transport fetches and
// caches application tokens on demand; no token survives across processes.
func NewClient(clientID, clientSecret string, opts ...Option) Client {
	c := &httpClient{
		baseURL:     "https://api.ebay.com/buy/browse/v1",
		tokenURL:    "https://api.ebay.com/identity/v1/oauth2/token",
		marketplace: "EBAY_US",
	}
	for _, opt := range opts {
		opt(c)
	}
	c.creds = clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     c.tokenURL,
		Scopes:       []string{browseScope},
	}
	return c
}

func (c *httpClient) SearchItems(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	if limit <= 0 {
		limit = 50
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/item_summary/search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "ebay: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.marketplace)

	// creds.Client caches the application token and refreshes it when expired.
	hc := c.creds.Client(ctx)
	hc.Timeout = 20 * time.Second

	resp, err := hc.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ebay: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ebay: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("ebay: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "ebay: parse response")
	}
	return &out, nil
}
