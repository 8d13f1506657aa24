package detect

import (
	"context"
	"time"

	"github.com/sells-group/dealscout/internal/model"
	"github.com/sells-group/dealscout/pkg/rainforest"
)

// LightningDetector scans a deals category for time-boxed deals. Unlike the
// other detectors it works per category, not per item, and returns a list.
type LightningDetector struct {
	client rainforest.Client
	domain string
	now    func() time.Time
}

// NewLightning creates a lightning deal detector.
func NewLightning(client rainforest.Client, domain string) *LightningDetector {
	if domain == "" {
		domain = "amazon.com"
	}
	return &LightningDetector{client: client, domain: domain, now: time.Now}
}

// WithNow sets a fixed clock for testing.
func (d *LightningDetector) WithNow(now func() time.Time) *LightningDetector {
	d.now = now
	return d
}

// DetectCategory returns every valid lightning deal currently running in a
// category. Rows without a real discount or without both prices are
// dropped, never returned as zero deals.
func (d *LightningDetector) DetectCategory(ctx context.Context, categoryID string) ([]model.Deal, error) {
	if d.client == nil {
		return nil, nil
	}
	resp, err := d.client.Deals(ctx, d.domain, categoryID)
	if err != nil {
		return nil, err
	}

	now := d.now().UTC()
	var deals []model.Deal
	for _, r := range resp.DealsResults {
		if r.ASIN == "" || r.DealPrice == nil || r.ListPrice == nil {
			continue
		}
		price := r.DealPrice.Value
		list := r.ListPrice.Value
		if price <= 0 || list <= price {
			continue
		}

		info := &model.LightningInfo{PercentClaimed: r.PercentClaimed}
		if r.EndsAt != "" {
			if endsAt, perr := time.Parse(time.RFC3339, r.EndsAt); perr == nil {
				info.EndsAt = endsAt.UTC()
				if remaining := endsAt.Sub(now); remaining > 0 {
					info.TimeRemainingMin = int(remaining.Minutes())
				}
			}
		}

		deals = append(deals, model.Deal{
			Type:          model.DealLightning,
			ASIN:          r.ASIN,
			Title:         r.Title,
			URL:           r.Link,
			Price:         price,
			OriginalPrice: list,
			PercentOff:    model.DiscountPercent(price, list),
			Marketplace:   "amazon",
			Category:      categoryID,
			DetectedAt:    now,
			Lightning:     info,
		})
	}
	return deals, nil
}
