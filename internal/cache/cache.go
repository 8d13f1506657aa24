// Package cache memoizes aggregator runs in the relational store, keyed by
// the normalized query plus filters, with lazy TTL expiry.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dealscout/internal/adapter"
	"github.com/sells-group/dealscout/internal/aggregate"
	"github.com/sells-group/dealscout/internal/model"
)

// Store is the slice of persistence the cache needs.
type Store interface {
	GetCachedSearch(ctx context.Context, queryKey string) (*model.CacheEntry, error)
	SetCachedSearch(ctx context.Context, entry *model.CacheEntry) error
}

// Aggregator runs a fresh search on cache miss.
type Aggregator interface {
	Aggregate(ctx context.Context, query string, opts adapter.SearchOptions) (*aggregate.Result, error)
}

// ResultCache serves memoized search results, falling back to the
// aggregator on miss or expiry.
type ResultCache struct {
	store Store
	agg   Aggregator
	ttl   time.Duration
	now   func() time.Time // injectable for testing
}

// New creates a ResultCache with the given TTL (default 1 hour).
func New(store Store, agg Aggregator, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResultCache{store: store, agg: agg, ttl: ttl, now: time.Now}
}

// WithNow sets a fixed clock for testing.
func (c *ResultCache) WithNow(now func() time.Time) *ResultCache {
	c.now = now
	return c
}

// Key derives the stable cache key for a query and filter set.
func Key(query string, filters model.SearchFilters) string {
	normalized := strings.ToLower(strings.TrimSpace(query))

	// Marshal order is fixed by the struct definition; sort the one slice
	// field so equivalent filter sets key identically.
	f := filters
	if len(f.Marketplaces) > 0 {
		f.Marketplaces = append([]string(nil), f.Marketplaces...)
		sort.Strings(f.Marketplaces)
	}
	filterJSON, _ := json.Marshal(f)

	sum := sha256.Sum256([]byte(normalized + "|" + string(filterJSON)))
	return hex.EncodeToString(sum[:])
}

// GetOrFetch returns the cached result when fresh, otherwise runs the
// aggregator and stores the outcome. A failed cache write never fails the
// request: the fresh result is returned regardless.
func (c *ResultCache) GetOrFetch(ctx context.Context, query string, filters model.SearchFilters) (*aggregate.Result, error) {
	key := Key(query, filters)
	now := c.now().UTC()

	entry, err := c.store.GetCachedSearch(ctx, key)
	if err != nil {
		zap.L().Warn("cache: read failed, fetching fresh", zap.Error(err))
	} else if entry != nil && !entry.Expired(now) {
		var cached aggregate.Result
		if err := json.Unmarshal(entry.Payload, &cached); err != nil {
			zap.L().Warn("cache: corrupt payload, fetching fresh", zap.Error(err))
		} else {
			cached.FromCache = true
			return &cached, nil
		}
	}

	opts := adapter.SearchOptions{
		MaxResults:   filters.MaxResults,
		Marketplaces: filters.Marketplaces,
	}
	result, err := c.agg.Aggregate(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	result.Listings = ApplyFilters(result.Listings, filters)

	payload, err := json.Marshal(result)
	if err == nil {
		writeErr := c.store.SetCachedSearch(ctx, &model.CacheEntry{
			QueryKey:  key,
			Filters:   filters,
			Payload:   payload,
			CreatedAt: now,
			ExpiresAt: now.Add(c.ttl),
		})
		if writeErr != nil {
			zap.L().Warn("cache: write failed, returning fresh result anyway",
				zap.Error(writeErr))
		}
	}

	return result, nil
}

// ApplyFilters narrows an aggregated listing set by the caller's filters and
// applies the requested sort. Sorting is an explicit caller request; raw
// aggregator order is otherwise unspecified.
func ApplyFilters(listings []model.Listing, filters model.SearchFilters) []model.Listing {
	out := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		if filters.MinPrice != nil && l.Price < *filters.MinPrice {
			continue
		}
		if filters.MaxPrice != nil && l.Price > *filters.MaxPrice {
			continue
		}
		if filters.Condition != "" && l.Condition != filters.Condition {
			continue
		}
		if len(filters.Marketplaces) > 0 && !containsFold(filters.Marketplaces, l.Marketplace) {
			continue
		}
		out = append(out, l)
	}

	switch filters.SortBy {
	case "price_asc":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	case "price_desc":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	case "discount":
		sort.SliceStable(out, func(i, j int) bool { return out[i].DiscountPercent > out[j].DiscountPercent })
	}

	if filters.MaxResults > 0 && len(out) > filters.MaxResults {
		out = out[:filters.MaxResults]
	}
	return out
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
