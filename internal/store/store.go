// Package store persists the deal engine's state: memoized searches,
// detected deals, watchlists, filter rules, alerts, and scan logs.
package store

import (
	"context"
	"time"

	"github.com/sells-group/dealscout/internal/model"
)

// Store defines the persistence interface for the deal engine. Every write
// is independently idempotent (pure insert or identity-keyed upsert), so
// overlapping scans never need multi-statement transactions.
type Store interface {
	// Search cache
	GetCachedSearch(ctx context.Context, queryKey string) (*model.CacheEntry, error)
	SetCachedSearch(ctx context.Context, entry *model.CacheEntry) error
	DeleteExpiredSearches(ctx context.Context) (int, error)

	// Deals (one table per type, keyed by provider identity)
	UpsertDeal(ctx context.Context, deal *model.Deal) error

	// Watchlists
	ListWatchlistItems(ctx context.Context) ([]model.WatchlistItem, error)
	TouchWatchlistItem(ctx context.Context, id string, checkedAt time.Time) error

	// Filter rules
	ListActiveFilterRules(ctx context.Context, userID string) ([]model.FilterRule, error)
	ListFilterUserIDs(ctx context.Context) ([]string, error)

	// Alerts
	CreateAlert(ctx context.Context, alert *model.Alert) error
	RecentAlertExists(ctx context.Context, userID, dealKey string, since time.Time) (bool, error)

	// Scan log
	CreateScanRun(ctx context.Context, run *model.ScanRun) error
	CompleteScanRun(ctx context.Context, run *model.ScanRun) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// dealTable routes a deal to its per-type table; regular price-drop deals
// have no table of their own (they exist only as alerts).
func dealTable(t model.DealType) string {
	switch t {
	case model.DealWarehouse:
		return "warehouse_deals"
	case model.DealLightning:
		return "lightning_deals"
	case model.DealCoupon:
		return "coupon_deals"
	default:
		return ""
	}
}
