// Package scan runs periodic deal scans over watchlists and categories,
// persists discovered deals, and creates alerts for matching filter rules.
package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/dealscout/internal/aggregate"
	"github.com/sells-group/dealscout/internal/detect"
	"github.com/sells-group/dealscout/internal/match"
	"github.com/sells-group/dealscout/internal/model"
	"github.com/sells-group/dealscout/internal/store"
)

// WarehouseDetector finds open-box condition deals for a single product.
type WarehouseDetector interface {
	Detect(ctx context.Context, productRef string) (*model.Deal, error)
}

// LightningDetector scans a category for time-boxed deals.
type LightningDetector interface {
	DetectCategory(ctx context.Context, categoryID string) ([]model.Deal, error)
}

// CouponDetector finds clippable coupon deals for a single product.
type CouponDetector interface {
	Detect(ctx context.Context, productRef string) (*model.Deal, error)
}

// Searcher is the cached aggregate search used by the regular phase.
type Searcher interface {
	GetOrFetch(ctx context.Context, query string, filters model.SearchFilters) (*aggregate.Result, error)
}

// Options tunes orchestrator behavior.
type Options struct {
	// Categories scanned during the lightning phase.
	Categories []string
	// AlertWindow suppresses duplicate (user, deal) alerts created within
	// the window. Zero disables suppression.
	AlertWindow time.Duration
	// UserRate/UserBurst configure the per-user token bucket applied in the
	// regular phase.
	UserRate  rate.Limit
	UserBurst int
	// MaxItems caps how many watchlist items a single run processes per
	// phase. Zero means no cap.
	MaxItems int
}

// Orchestrator executes one scan run at a time. Phases run sequentially and
// items within a phase are processed in a loop with per-item failure
// isolation; this bounds load on upstream sites.
type Orchestrator struct {
	store     store.Store
	searcher  Searcher
	warehouse WarehouseDetector
	lightning LightningDetector
	coupon    CouponDetector
	opts      Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	now func() time.Time
}

// New creates an Orchestrator. Any detector may be nil, in which case its
// phase is skipped.
func New(st store.Store, searcher Searcher, wh WarehouseDetector, ln LightningDetector, cp CouponDetector, opts Options) *Orchestrator {
	if opts.UserRate <= 0 {
		opts.UserRate = rate.Every(2 * time.Second)
	}
	if opts.UserBurst <= 0 {
		opts.UserBurst = 1
	}
	return &Orchestrator{
		store:     st,
		searcher:  searcher,
		warehouse: wh,
		lightning: ln,
		coupon:    cp,
		opts:      opts,
		limiters:  make(map[string]*rate.Limiter),
		now:       time.Now,
	}
}

// WithNow overrides the clock. Test use only.
func (o *Orchestrator) WithNow(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Run executes a single scan pass. Per-item failures are recorded in the
// run's error list and never abort the phase; a failure outside the item
// loop (e.g. the watchlist table cannot be read) marks the run failed with
// whatever partial stats were accumulated.
func (o *Orchestrator) Run(ctx context.Context, scanType model.ScanType) (*model.ScanRun, error) {
	if !model.ValidScanType(scanType) {
		return nil, fmt.Errorf("scan: unknown scan type %q", scanType)
	}

	run := &model.ScanRun{Type: scanType, StartedAt: o.now().UTC()}
	if err := o.store.CreateScanRun(ctx, run); err != nil {
		return nil, err
	}
	zap.L().Info("scan started", zap.String("scan_id", run.ID), zap.String("type", string(scanType)))

	err := o.runPhases(ctx, run)

	done := o.now().UTC()
	run.CompletedAt = &done
	if err != nil {
		run.Status = model.ScanStatusFailed
		run.Errors = append(run.Errors, err.Error())
	} else {
		run.Status = model.ScanStatusCompleted
	}
	if cerr := o.store.CompleteScanRun(ctx, run); cerr != nil {
		zap.L().Error("scan: record completion", zap.String("scan_id", run.ID), zap.Error(cerr))
	}

	zap.L().Info("scan finished",
		zap.String("scan_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("products_scanned", run.Stats.ProductsScanned),
		zap.Int("deals_found", run.Stats.DealsFound),
		zap.Int("alerts_created", run.Stats.AlertsCreated),
		zap.Int("errors", len(run.Errors)))
	return run, err
}

func (o *Orchestrator) runPhases(ctx context.Context, run *model.ScanRun) error {
	phases := []struct {
		typ model.ScanType
		fn  func(context.Context, *model.ScanRun) error
	}{
		{model.ScanWarehouse, o.warehousePhase},
		{model.ScanLightning, o.lightningPhase},
		{model.ScanCoupon, o.couponPhase},
		{model.ScanRegular, o.regularPhase},
	}
	for _, p := range phases {
		if run.Type != model.ScanAll && run.Type != p.typ {
			continue
		}
		if err := p.fn(ctx, run); err != nil {
			return fmt.Errorf("scan: %s phase: %w", p.typ, err)
		}
	}
	return nil
}

func (o *Orchestrator) warehousePhase(ctx context.Context, run *model.ScanRun) error {
	if o.warehouse == nil {
		return nil
	}
	items, err := o.watchlist(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		run.Stats.ProductsScanned++
		deal, err := o.warehouse.Detect(ctx, item.ProductURL)
		o.touch(ctx, item.ID)
		if err != nil {
			o.itemError(run, "warehouse", item.ID, err)
			continue
		}
		if deal == nil {
			continue
		}
		o.recordDeal(ctx, run, *deal, item.UserID, &item)
	}
	return nil
}

func (o *Orchestrator) lightningPhase(ctx context.Context, run *model.ScanRun) error {
	if o.lightning == nil {
		return nil
	}
	userIDs, err := o.store.ListFilterUserIDs(ctx)
	if err != nil {
		return err
	}
	for _, category := range o.opts.Categories {
		run.Stats.ProductsScanned++
		deals, err := o.lightning.DetectCategory(ctx, category)
		if err != nil {
			o.itemError(run, "lightning", category, err)
			continue
		}
		for _, deal := range deals {
			deal.Category = category
			if err := o.store.UpsertDeal(ctx, &deal); err != nil {
				o.itemError(run, "lightning", deal.Identity(), err)
				continue
			}
			run.Stats.DealsFound++
			// Lightning deals are not user-owned; fan alerts out to every
			// user whose active rules match.
			for _, userID := range userIDs {
				o.alertMatches(ctx, run, deal, userID, nil)
			}
		}
	}
	return nil
}

func (o *Orchestrator) couponPhase(ctx context.Context, run *model.ScanRun) error {
	if o.coupon == nil {
		return nil
	}
	items, err := o.watchlist(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		run.Stats.ProductsScanned++
		deal, err := o.coupon.Detect(ctx, item.ProductURL)
		o.touch(ctx, item.ID)
		if err != nil {
			o.itemError(run, "coupon", item.ID, err)
			continue
		}
		if deal == nil {
			continue
		}
		o.recordDeal(ctx, run, *deal, item.UserID, &item)
	}
	return nil
}

// regularPhase re-checks watchlist prices through the cached aggregate
// search. Each user's items draw from that user's token bucket so a large
// watchlist cannot starve upstream rate limits.
func (o *Orchestrator) regularPhase(ctx context.Context, run *model.ScanRun) error {
	if o.searcher == nil {
		return nil
	}
	items, err := o.watchlist(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := o.userLimiter(item.UserID).Wait(ctx); err != nil {
			return err
		}
		run.Stats.ProductsScanned++
		res, err := o.searcher.GetOrFetch(ctx, item.ProductName, model.SearchFilters{
			SortBy:     "price_asc",
			MaxResults: 5,
		})
		o.touch(ctx, item.ID)
		if err != nil {
			o.itemError(run, "regular", item.ID, err)
			continue
		}
		deal, ok := priceDropDeal(item, res.Listings, o.now().UTC())
		if !ok {
			continue
		}
		run.Stats.DealsFound++
		if item.NotifyOnDrop {
			o.alertMatches(ctx, run, deal, item.UserID, watchlistTarget(item))
		}
	}
	return nil
}

// priceDropDeal reports whether the cheapest current listing undercuts the
// item's target price and builds the regular deal for it.
func priceDropDeal(item model.WatchlistItem, listings []model.Listing, now time.Time) (model.Deal, bool) {
	best, ok := cheapest(listings)
	if !ok {
		return model.Deal{}, false
	}
	if item.TargetPrice <= 0 || best.Price > item.TargetPrice {
		return model.Deal{}, false
	}
	original := item.InitialPrice
	if best.OriginalPrice > original {
		original = best.OriginalPrice
	}
	asin, resolved := detect.ResolveASIN(item.ProductURL)
	if !resolved {
		asin = ""
	}
	return model.Deal{
		Type:          model.DealRegular,
		ASIN:          asin,
		ProductID:     item.ID,
		Title:         item.ProductName,
		URL:           best.ProductURL,
		Price:         best.Price,
		OriginalPrice: original,
		PercentOff:    model.DiscountPercent(best.Price, original),
		Marketplace:   best.Marketplace,
		DetectedAt:    now,
	}, true
}

func cheapest(listings []model.Listing) (model.Listing, bool) {
	var best model.Listing
	found := false
	for _, l := range listings {
		if l.Price <= 0 {
			continue
		}
		if !found || l.Price < best.Price {
			best = l
			found = true
		}
	}
	return best, found
}

// watchlistTarget is the synthetic default rule for watchlist-driven deals:
// a watched item always alerts even when no saved filter matches.
func watchlistTarget(item model.WatchlistItem) *model.FilterRule {
	return &model.FilterRule{
		ID:       item.ID,
		UserID:   item.UserID,
		Name:     "watchlist",
		IsActive: true,
	}
}

// recordDeal upserts a detected deal and creates the owner's alert.
func (o *Orchestrator) recordDeal(ctx context.Context, run *model.ScanRun, deal model.Deal, userID string, item *model.WatchlistItem) {
	if err := o.store.UpsertDeal(ctx, &deal); err != nil {
		o.itemError(run, string(deal.Type), deal.Identity(), err)
		return
	}
	run.Stats.DealsFound++
	var target *model.FilterRule
	if item != nil {
		target = watchlistTarget(*item)
	}
	o.alertMatches(ctx, run, deal, userID, target)
}

// alertMatches runs the deal through the user's filter rules and creates at
// most one alert per (user, deal) pass, suppressed inside the dedup window.
func (o *Orchestrator) alertMatches(ctx context.Context, run *model.ScanRun, deal model.Deal, userID string, defaultTarget *model.FilterRule) {
	rules, err := o.store.ListActiveFilterRules(ctx, userID)
	if err != nil {
		o.itemError(run, "filters", userID, err)
		return
	}
	results := match.Match(deal, rules, defaultTarget)
	if len(results) == 0 {
		return
	}

	if o.opts.AlertWindow > 0 {
		since := o.now().UTC().Add(-o.opts.AlertWindow)
		exists, err := o.store.RecentAlertExists(ctx, userID, deal.Identity(), since)
		if err != nil {
			o.itemError(run, "alerts", deal.Identity(), err)
			return
		}
		if exists {
			return
		}
	}

	alert := &model.Alert{
		UserID:          userID,
		DealType:        deal.Type,
		Product:         deal,
		CurrentPrice:    deal.Price,
		OriginalPrice:   deal.OriginalPrice,
		DiscountPercent: deal.PercentOff,
		QualityScore:    detect.QualityScore(deal),
		CreatedAt:       o.now().UTC(),
	}
	if results[0].IsDefault && defaultTarget != nil && defaultTarget.Name == "watchlist" {
		alert.WatchlistID = defaultTarget.ID
	}
	if err := o.store.CreateAlert(ctx, alert); err != nil {
		o.itemError(run, "alerts", deal.Identity(), err)
		return
	}
	run.Stats.AlertsCreated++
}

func (o *Orchestrator) watchlist(ctx context.Context) ([]model.WatchlistItem, error) {
	items, err := o.store.ListWatchlistItems(ctx)
	if err != nil {
		return nil, err
	}
	if o.opts.MaxItems > 0 && len(items) > o.opts.MaxItems {
		items = items[:o.opts.MaxItems]
	}
	return items, nil
}

func (o *Orchestrator) touch(ctx context.Context, itemID string) {
	if err := o.store.TouchWatchlistItem(ctx, itemID, o.now().UTC()); err != nil {
		zap.L().Warn("scan: touch watchlist item", zap.String("item_id", itemID), zap.Error(err))
	}
}

func (o *Orchestrator) itemError(run *model.ScanRun, phase, ref string, err error) {
	run.Errors = append(run.Errors, fmt.Sprintf("%s %s: %v", phase, ref, err))
	zap.L().Warn("scan: item failed", zap.String("phase", phase), zap.String("ref", ref), zap.Error(err))
}

func (o *Orchestrator) userLimiter(userID string) *rate.Limiter {
	o.mu.Lock()
	defer o.mu.Unlock()
	lim, ok := o.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(o.opts.UserRate, o.opts.UserBurst)
		o.limiters[userID] = lim
	}
	return lim
}
