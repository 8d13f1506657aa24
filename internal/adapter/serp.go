package adapter

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sells-group/dealscout/internal/model"
	"github.com/sells-group/dealscout/pkg/serpapi"
)

// SerpAdapter translates SerpAPI Google Shopping results. It covers many
// marketplaces in one call, which is why it sits in the cheap first tier.
type SerpAdapter struct {
	client  serpapi.Client
	country string
}

// NewSerp creates the SerpAPI adapter. A nil client marks it unconfigured.
func NewSerp(client serpapi.Client, country string) *SerpAdapter {
	return &SerpAdapter{client: client, country: country}
}

func (a *SerpAdapter) Name() string { return "serpapi" }

func (a *SerpAdapter) Configured() bool { return a.client != nil }

func (a *SerpAdapter) Search(ctx context.Context, query string, opts SearchOptions) ([]model.Listing, error) {
	if !a.Configured() {
		return nil, nil
	}

	searchOpts := []serpapi.SearchOption{}
	if a.country != "" {
		searchOpts = append(searchOpts, serpapi.WithCountry(a.country))
	}
	if opts.MaxResults > 0 {
		searchOpts = append(searchOpts, serpapi.WithLimit(opts.MaxResults))
	}

	resp, err := a.client.ShoppingSearch(ctx, query, searchOpts...)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	listings := make([]model.Listing, 0, len(resp.ShoppingResults))
	for _, r := range resp.ShoppingResults {
		if r.Title == "" || r.ExtractedPrice <= 0 {
			continue
		}

		link := r.Link
		if link == "" {
			link = r.ProductLink
		}

		condition := model.ConditionNew
		if r.SecondHandCondition != "" {
			condition = model.ConditionUsed
		}

		listings = append(listings, model.Listing{
			Title:             r.Title,
			Price:             r.ExtractedPrice,
			Currency:          "USD",
			OriginalPrice:     r.ExtractedOldPrice,
			DiscountPercent:   model.DiscountPercent(r.ExtractedPrice, r.ExtractedOldPrice),
			ImageURL:          r.Thumbnail,
			ProductURL:        link,
			Marketplace:       strings.ToLower(r.Source),
			MarketplaceDomain: hostOf(link),
			Seller:            r.Source,
			Condition:         condition,
			Rating:            r.Rating,
			ReviewCount:       r.Reviews,
			Availability:      model.AvailabilityUnknown,
			Source:            a.Name(),
			FetchedAt:         now,
		})
	}
	return listings, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
