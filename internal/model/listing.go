// Package model defines the core data types shared across the deal engine.
package model

import "time"

// Condition classifies the physical state of a listed item.
type Condition string

const (
	ConditionNew        Condition = "new"
	ConditionUsed       Condition = "used"
	ConditionLikeNew    Condition = "like_new"
	ConditionVeryGood   Condition = "very_good"
	ConditionGood       Condition = "good"
	ConditionAcceptable Condition = "acceptable"
)

// Availability reports whether a listing can currently be purchased.
type Availability string

const (
	AvailabilityInStock    Availability = "in_stock"
	AvailabilityOutOfStock Availability = "out_of_stock"
	AvailabilityUnknown    Availability = "unknown"
)

// Listing is the canonical normalized product record produced by every
// source adapter. Provider-specific field names never leave the adapter
// that translated them.
type Listing struct {
	Title             string       `json:"title"`
	Price             float64      `json:"price"`
	Currency          string       `json:"currency"`
	OriginalPrice     float64      `json:"original_price,omitempty"`
	DiscountPercent   int          `json:"discount_percent"`
	ImageURL          string       `json:"image_url,omitempty"`
	ProductURL        string       `json:"product_url"`
	Marketplace       string       `json:"marketplace"`
	MarketplaceDomain string       `json:"marketplace_domain,omitempty"`
	Seller            string       `json:"seller,omitempty"`
	Condition         Condition    `json:"condition"`
	Rating            *float64     `json:"rating,omitempty"`
	ReviewCount       *int         `json:"review_count,omitempty"`
	Availability      Availability `json:"availability"`
	ShippingCost      *float64     `json:"shipping_cost,omitempty"`
	Source            string       `json:"source"`
	FetchedAt         time.Time    `json:"fetched_at"`
}

// DiscountPercent derives the percent saved from a strike-through price.
// Provider-supplied discounts are never trusted: anything without a real
// markdown (original <= current) yields 0. The result is clamped to [0, 100].
func DiscountPercent(price, originalPrice float64) int {
	if originalPrice <= price || originalPrice <= 0 {
		return 0
	}
	pct := int((originalPrice - price) / originalPrice * 100)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// SearchFilters narrows an interactive search request.
type SearchFilters struct {
	MinPrice     *float64  `json:"min_price,omitempty"`
	MaxPrice     *float64  `json:"max_price,omitempty"`
	Condition    Condition `json:"condition,omitempty"`
	SortBy       string    `json:"sort_by,omitempty"`
	MaxResults   int       `json:"max_results,omitempty"`
	Marketplaces []string  `json:"marketplaces,omitempty"`
}
