package adapter

import (
	"context"
	"strings"
	"time"

	"github.com/sells-group/dealscout/internal/model"
	"github.com/sells-group/dealscout/pkg/ebay"
)

// EbayAdapter translates eBay Browse item summaries. eBay is the official
// partner tier: queried only when the cheap first tier comes back empty.
type EbayAdapter struct {
	client ebay.Client
}

// NewEbay creates the eBay adapter. A nil client marks it unconfigured.
func NewEbay(client ebay.Client) *EbayAdapter {
	return &EbayAdapter{client: client}
}

func (a *EbayAdapter) Name() string { return "ebay" }

func (a *EbayAdapter) Configured() bool { return a.client != nil }

func (a *EbayAdapter) Search(ctx context.Context, query string, opts SearchOptions) ([]model.Listing, error) {
	if !a.Configured() {
		return nil, nil
	}

	resp, err := a.client.SearchItems(ctx, query, opts.MaxResults)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	listings := make([]model.Listing, 0, len(resp.ItemSummaries))
	for _, item := range resp.ItemSummaries {
		price := item.Price.Float()
		if item.Title == "" || price <= 0 {
			continue
		}

		var original float64
		if item.MarketingPrice != nil {
			original = item.MarketingPrice.OriginalPrice.Float()
		}

		l := model.Listing{
			Title:             item.Title,
			Price:             price,
			Currency:          currencyOf(item.Price),
			OriginalPrice:     original,
			DiscountPercent:   model.DiscountPercent(price, original),
			ProductURL:        item.ItemWebURL,
			Marketplace:       "ebay",
			MarketplaceDomain: "ebay.com",
			Condition:         ebayCondition(item.Condition),
			Availability:      model.AvailabilityInStock,
			Source:            a.Name(),
			FetchedAt:         now,
		}
		if item.Image != nil {
			l.ImageURL = item.Image.ImageURL
		}
		if item.Seller != nil {
			l.Seller = item.Seller.Username
		}
		if len(item.ShippingOptions) > 0 && item.ShippingOptions[0].ShippingCost != nil {
			cost := item.ShippingOptions[0].ShippingCost.Float()
			l.ShippingCost = &cost
		}

		listings = append(listings, l)
	}
	return listings, nil
}

func currencyOf(a *ebay.Amount) string {
	if a == nil || a.Currency == "" {
		return "USD"
	}
	return a.Currency
}

// ebayCondition maps eBay's display condition strings onto the canonical
// condition enum. Unrecognized refurbished/open-box tiers land on used.
func ebayCondition(c string) model.Condition {
	switch strings.ToLower(c) {
	case "new", "brand new", "new with tags", "new without tags":
		return model.ConditionNew
	case "like new", "open box":
		return model.ConditionLikeNew
	case "very good":
		return model.ConditionVeryGood
	case "good":
		return model.ConditionGood
	case "acceptable":
		return model.ConditionAcceptable
	case "":
		return model.ConditionNew
	default:
		return model.ConditionUsed
	}
}
