// Package aggregate fans a search query out across tiered source adapters
// and collapses the survivors into one deduplicated result set.
package aggregate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dealscout/internal/adapter"
	"github.com/sells-group/dealscout/internal/dedupe"
	"github.com/sells-group/dealscout/internal/health"
	"github.com/sells-group/dealscout/internal/model"
)

// Reason explains an empty result set.
type Reason string

const (
	// ReasonNoMatches means at least one source answered and the query
	// simply has no results.
	ReasonNoMatches Reason = "no_matches"
	// ReasonAllSourcesFailed means every configured source errored or none
	// were configured at all.
	ReasonAllSourcesFailed Reason = "all_sources_failed"
)

// Result is the outcome of one aggregation run.
type Result struct {
	Listings    []model.Listing `json:"listings"`
	SourcesUsed []string        `json:"sources_used"`
	Partial     bool            `json:"partial"`
	Reason      Reason          `json:"reason,omitempty"`
	FromCache   bool            `json:"from_cache"`
}

// Aggregator walks the tier chain: the first tier that yields at least one
// listing wins and lower-priority tiers are never consulted.
type Aggregator struct {
	registry *adapter.Registry
	cfg      *TierConfig
	breakers *health.BreakerSet
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithBreakers installs per-source circuit breakers. A source whose breaker
// is open is skipped for that run and counts as a failure.
func WithBreakers(set *health.BreakerSet) Option {
	return func(a *Aggregator) { a.breakers = set }
}

// New creates an Aggregator over the given adapter registry and tier chain.
func New(registry *adapter.Registry, cfg *TierConfig, opts ...Option) *Aggregator {
	if cfg == nil {
		cfg = DefaultTierConfig()
	}
	a := &Aggregator{registry: registry, cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// tierRun accumulates adapter outcomes for one tier. Guarded by mu so a
// budget timeout can snapshot whatever has completed so far.
type tierRun struct {
	mu        sync.Mutex
	listings  []model.Listing
	succeeded []string
	errored   int
}

func (t *tierRun) snapshot() ([]model.Listing, []string, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.Listing(nil), t.listings...),
		append([]string(nil), t.succeeded...),
		t.errored
}

// Aggregate runs the tier chain for a query. Adapter failures never
// propagate: they are logged, counted, and surface only as an empty result
// with ReasonAllSourcesFailed when nothing else answered.
func (a *Aggregator) Aggregate(ctx context.Context, query string, opts adapter.SearchOptions) (*Result, error) {
	result := &Result{}
	anySucceeded := false

	for i, tier := range a.cfg.Tiers {
		adapters := a.configuredAdapters(tier)
		if len(adapters) == 0 {
			continue
		}

		lastTier := i == len(a.cfg.Tiers)-1

		var (
			listings  []model.Listing
			succeeded []string
			errored   int
			timedOut  bool
		)
		if lastTier {
			listings, succeeded, errored, timedOut = a.runTierBudgeted(ctx, adapters, query, opts)
		} else {
			listings, succeeded, errored = a.runTier(ctx, adapters, query, opts)
		}

		if len(succeeded) > 0 {
			anySucceeded = true
		}
		if timedOut {
			result.Partial = true
		}
		if errored > 0 && !lastTier {
			zap.L().Debug("aggregate: tier had source failures",
				zap.String("tier", tier.Name),
				zap.Int("errored", errored),
			)
		}

		if len(listings) > 0 {
			result.Listings = dedupe.Dedupe(listings)
			result.SourcesUsed = succeeded
			return result, nil
		}
	}

	// Every tier came back empty: distinguish an honest miss from a chain
	// where nothing was able to answer.
	if anySucceeded {
		result.Reason = ReasonNoMatches
	} else {
		result.Reason = ReasonAllSourcesFailed
	}
	result.Listings = []model.Listing{}
	return result, nil
}

// configuredAdapters resolves a tier's adapter names, skipping unknown and
// credential-less entries (absent credentials are absence-of-data, not an
// error).
func (a *Aggregator) configuredAdapters(tier Tier) []adapter.Adapter {
	var out []adapter.Adapter
	for _, name := range tier.Adapters {
		ad := a.registry.Get(name)
		if ad == nil {
			zap.L().Warn("aggregate: tier references unknown adapter",
				zap.String("tier", tier.Name),
				zap.String("adapter", name),
			)
			continue
		}
		if !ad.Configured() {
			continue
		}
		out = append(out, ad)
	}
	return out
}

// runTier invokes a tier's adapters concurrently and waits for all of them.
func (a *Aggregator) runTier(ctx context.Context, adapters []adapter.Adapter, query string, opts adapter.SearchOptions) ([]model.Listing, []string, int) {
	run := &tierRun{}
	g := a.fanOut(ctx, run, adapters, query, opts)
	_ = g.Wait()
	return run.snapshot()
}

// runTierBudgeted races the tier against the wall-clock scrape budget.
// On timeout it returns whatever completed; the in-flight adapters keep
// their cancelled context and are abandoned, their eventual results
// discarded.
func (a *Aggregator) runTierBudgeted(ctx context.Context, adapters []adapter.Adapter, query string, opts adapter.SearchOptions) ([]model.Listing, []string, int, bool) {
	budget := a.cfg.ScrapeBudget()
	budgetCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	run := &tierRun{}
	g := a.fanOut(budgetCtx, run, adapters, query, opts)

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		listings, succeeded, errored := run.snapshot()
		return listings, succeeded, errored, false
	case <-budgetCtx.Done():
		zap.L().Warn("aggregate: scrape tier exceeded budget, returning partial results",
			zap.Duration("budget", budget),
		)
		listings, succeeded, errored := run.snapshot()
		return listings, succeeded, errored, true
	}
}

func (a *Aggregator) fanOut(ctx context.Context, run *tierRun, adapters []adapter.Adapter, query string, opts adapter.SearchOptions) *errgroup.Group {
	g := &errgroup.Group{}
	for _, ad := range adapters {
		g.Go(func() error {
			var breaker *health.Breaker
			if a.breakers != nil {
				breaker = a.breakers.For(ad.Name())
				if !breaker.Allow() {
					run.mu.Lock()
					run.errored++
					run.mu.Unlock()
					zap.L().Debug("aggregate: source breaker open, skipping",
						zap.String("source", ad.Name()),
					)
					return nil
				}
			}

			start := time.Now()
			listings, err := ad.Search(ctx, query, opts)
			if breaker != nil {
				breaker.Record(err)
			}

			run.mu.Lock()
			defer run.mu.Unlock()
			if err != nil {
				run.errored++
				zap.L().Warn("aggregate: source failed",
					zap.String("source", ad.Name()),
					zap.Duration("elapsed", time.Since(start)),
					zap.Error(err),
				)
				return nil
			}
			run.succeeded = append(run.succeeded, ad.Name())
			run.listings = append(run.listings, listings...)
			return nil
		})
	}
	return g
}
