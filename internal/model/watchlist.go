package model

import "time"

// WatchlistItem is a user-saved product re-checked periodically for price
// drops. The scan orchestrator only ever touches LastCheckedAt; rows are
// created and deleted by the surrounding application, never by the engine.
type WatchlistItem struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	ProductName   string     `json:"product_name"`
	ProductURL    string     `json:"product_url"`
	Marketplace   string     `json:"marketplace"`
	TargetPrice   float64    `json:"target_price"`
	InitialPrice  float64    `json:"initial_price"`
	NotifyOnDrop  bool       `json:"notify_on_drop"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
}
