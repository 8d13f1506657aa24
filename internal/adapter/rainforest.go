package adapter

import (
	"context"
	"time"

	"github.com/sells-group/dealscout/internal/model"
	"github.com/sells-group/dealscout/pkg/rainforest"
)

// RainforestAdapter translates Rainforest Amazon search results.
type RainforestAdapter struct {
	client rainforest.Client
	domain string // e.g. "amazon.com"
}

// NewRainforest creates the Rainforest adapter. A nil client marks it
// unconfigured.
func NewRainforest(client rainforest.Client, domain string) *RainforestAdapter {
	if domain == "" {
		domain = "amazon.com"
	}
	return &RainforestAdapter{client: client, domain: domain}
}

func (a *RainforestAdapter) Name() string { return "rainforest" }

func (a *RainforestAdapter) Configured() bool { return a.client != nil }

func (a *RainforestAdapter) Search(ctx context.Context, query string, opts SearchOptions) ([]model.Listing, error) {
	if !a.Configured() {
		return nil, nil
	}

	resp, err := a.client.Search(ctx, a.domain, query)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	max := opts.MaxResults
	listings := make([]model.Listing, 0, len(resp.SearchResults))
	for _, r := range resp.SearchResults {
		if max > 0 && len(listings) >= max {
			break
		}

		price, currency := resultPrice(r)
		if r.Title == "" || price <= 0 {
			continue
		}

		listings = append(listings, model.Listing{
			Title:             r.Title,
			Price:             price,
			Currency:          currency,
			ImageURL:          r.Image,
			ProductURL:        r.Link,
			Marketplace:       "amazon",
			MarketplaceDomain: a.domain,
			Condition:         model.ConditionNew,
			Rating:            r.Rating,
			ReviewCount:       r.RatingsTotal,
			Availability:      model.AvailabilityUnknown,
			Source:            a.Name(),
			FetchedAt:         now,
		})
	}
	return listings, nil
}

// resultPrice picks the buy price from the primary price block, falling back
// to the first entry of the prices list for sponsored rows.
func resultPrice(r rainforest.SearchResult) (float64, string) {
	if r.Price != nil && r.Price.Value > 0 {
		return r.Price.Value, currencyOr(r.Price.Currency)
	}
	if len(r.Prices) > 0 && r.Prices[0].Value > 0 {
		return r.Prices[0].Value, currencyOr(r.Prices[0].Currency)
	}
	return 0, "USD"
}

func currencyOr(c string) string {
	if c == "" {
		return "USD"
	}
	return c
}
