package model

import (
	"encoding/json"
	"time"
)

// CacheEntry is a memoized aggregator result. Entries are read-only until
// ExpiresAt and treated as absent afterwards (lazy expiry, no background
// eviction).
type CacheEntry struct {
	QueryKey  string          `json:"query_key"`
	Filters   SearchFilters   `json:"filters"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Expired reports whether the entry should be treated as absent at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
