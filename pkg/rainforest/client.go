// Package rainforest provides a client for the Rainforest Amazon product
// data API (search, offers, deals, product lookups).
package rainforest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the Rainforest operations used by the deal engine.
type Client interface {
	// Search runs a keyword search on the given Amazon domain.
	Search(ctx context.Context, domain, term string) (*SearchResponse, error)
	// Product fetches a single product page, including any coupon block.
	Product(ctx context.Context, domain, asin string) (*ProductResponse, error)
	// Offers lists the offers (including used/warehouse conditions) for an ASIN.
	Offers(ctx context.Context, domain, asin string) (*OffersResponse, error)
	// Deals lists the currently running deals for a category.
	Deals(ctx context.Context, domain, categoryID string) (*DealsResponse, error)
}

// Price is a monetary amount as Rainforest reports it.
type Price struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// SearchResponse is the parsed type=search response.
type SearchResponse struct {
	SearchResults []SearchResult `json:"search_results"`
}

// SearchResult is a single Amazon search row.
type SearchResult struct {
	Position     int      `json:"position"`
	Title        string   `json:"title"`
	ASIN         string   `json:"asin"`
	Link         string   `json:"link"`
	Image        string   `json:"image,omitempty"`
	Rating       *float64 `json:"rating,omitempty"`
	RatingsTotal *int     `json:"ratings_total,omitempty"`
	Price        *Price   `json:"price,omitempty"`
	Prices       []Price  `json:"prices,omitempty"`
}

// ProductResponse is the parsed type=product response.
type ProductResponse struct {
	Product Product `json:"product"`
}

// Product holds the product-page fields the engine reads.
type Product struct {
	ASIN         string      `json:"asin"`
	Title        string      `json:"title"`
	Link         string      `json:"link"`
	MainImage    *Image      `json:"main_image,omitempty"`
	Rating       *float64    `json:"rating,omitempty"`
	RatingsTotal *int        `json:"ratings_total,omitempty"`
	BuyboxWinner *Buybox     `json:"buybox_winner,omitempty"`
	Coupon       *CouponInfo `json:"coupon,omitempty"`
}

// Image is a product image reference.
type Image struct {
	Link string `json:"link"`
}

// Buybox is the winning offer on a product page.
type Buybox struct {
	Price        *Price        `json:"price,omitempty"`
	RRP          *Price        `json:"rrp,omitempty"`
	Availability *Availability `json:"availability,omitempty"`
}

// Availability is the stock state of an offer.
type Availability struct {
	Type string `json:"type"` // "in_stock", "out_of_stock", ...
}

// CouponInfo is the clippable-coupon block on a product page.
type CouponInfo struct {
	Text        string `json:"text,omitempty"`
	Code        string `json:"code,omitempty"`
	IsClippable bool   `json:"is_clippable"`
	ExpiresAt   string `json:"expires_at,omitempty"` // RFC3339 when present
}

// OffersResponse is the parsed type=offers response.
type OffersResponse struct {
	Offers []Offer `json:"offers"`
}

// Offer is one entry from the offer listing page.
type Offer struct {
	Price     *Price         `json:"price,omitempty"`
	Condition OfferCondition `json:"condition"`
	Seller    *OfferSeller   `json:"seller,omitempty"`
}

// OfferCondition describes an offer's condition tier.
type OfferCondition struct {
	Title   string `json:"title"`   // e.g. "Used - Like New"
	Comment string `json:"comment,omitempty"`
	IsNew   bool   `json:"is_new"`
}

// OfferSeller identifies who is selling the offer.
type OfferSeller struct {
	Name string `json:"name"`
}

// DealsResponse is the parsed type=deals response.
type DealsResponse struct {
	DealsResults []DealResult `json:"deals_results"`
}

// DealResult is one row from the deals grid.
type DealResult struct {
	ASIN           string `json:"asin"`
	Title          string `json:"title"`
	Link           string `json:"link"`
	Image          string `json:"image,omitempty"`
	DealPrice      *Price `json:"deal_price,omitempty"`
	ListPrice      *Price `json:"list_price,omitempty"`
	EndsAt         string `json:"ends_at,omitempty"` // RFC3339 when present
	PercentClaimed int    `json:"percent_claimed,omitempty"`
	Type           string `json:"type,omitempty"` // "lightning_deal", "deal_of_the_day", ...
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

// NewClient creates a Rainforest client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.rainforestapi.com",
		http: &http.Client{
			Timeout: 30 * time.Second,
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

func (c *httpClient) Search(ctx context.Context, domain, term string) (*SearchResponse, error) {
	var resp SearchResponse
	err := c.request(ctx, url.Values{
		"type":          {"search"},
		"amazon_domain": {domain},
		"search_term":   {term},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) Product(ctx context.Context, domain, asin string) (*ProductResponse, error) {
	var resp ProductResponse
	err := c.request(ctx, url.Values{
		"type":          {"product"},
		"amazon_domain": {domain},
		"asin":          {asin},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) Offers(ctx context.Context, domain, asin string) (*OffersResponse, error) {
	var resp OffersResponse
	err := c.request(ctx, url.Values{
		"type":          {"offers"},
		"amazon_domain": {domain},
		"asin":          {asin},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) Deals(ctx context.Context, domain, categoryID string) (*DealsResponse, error) {
	var resp DealsResponse
	err := c.request(ctx, url.Values{
		"type":          {"deals"},
		"amazon_domain": {domain},
		"category_id":   {categoryID},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) request(ctx context.Context, q url.Values, out any) error {
	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/request?"+q.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "rainforest: create request")
	}
	req.Header.Set("Accept", "application/json")

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return eris.Wrap(err, "rainforest: request failed")
	}
	if statusCode != http.StatusOK {
		return eris.Errorf("rainforest: unexpected status %d: %s", statusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "rainforest: parse response")
	}
	return nil
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retryReq := req.Clone(ctx)

		resp, err := c.http.Do(retryReq)
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
			return nil, resp.StatusCode, eris.Wrap(readErr, "rainforest: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("rainforest: status %d: %s", resp.StatusCode, string(body))
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
