package model

import "time"

// Alert notifies a user that a detected deal matched one of their filter
// rules or watchlist items. Immutable after creation except IsRead.
type Alert struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	WatchlistID     string    `json:"watchlist_id,omitempty"`
	DealType        DealType  `json:"deal_type"`
	Product         Deal      `json:"product"`
	CurrentPrice    float64   `json:"current_price"`
	OriginalPrice   float64   `json:"original_price"`
	DiscountPercent int       `json:"discount_percent"`
	QualityScore    int       `json:"quality_score"`
	IsRead          bool      `json:"is_read"`
	CreatedAt       time.Time `json:"created_at"`
}
