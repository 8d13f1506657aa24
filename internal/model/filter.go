package model

// Criteria holds the predicates of a saved filter rule. Every empty field
// means "no constraint" and auto-passes for that predicate.
type Criteria struct {
	PriceMin     *float64 `json:"price_min,omitempty"`
	PriceMax     *float64 `json:"price_max,omitempty"`
	DiscountMin  *int     `json:"discount_min,omitempty"`
	DiscountMax  *int     `json:"discount_max,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	DealTypes    []string `json:"deal_types,omitempty"`
	Conditions   []string `json:"conditions,omitempty"`
	Marketplaces []string `json:"marketplaces,omitempty"`
}

// FilterRule is a user-defined deal filter. An isolated rule is a priority
// rule: once matched it suppresses evaluation of all remaining rules for
// that deal.
type FilterRule struct {
	ID         string   `json:"id"`
	UserID     string   `json:"user_id"`
	Name       string   `json:"name,omitempty"`
	Criteria   Criteria `json:"criteria"`
	IsActive   bool     `json:"is_active"`
	IsIsolated bool     `json:"is_isolated"`
}
