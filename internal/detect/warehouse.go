package detect

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dealscout/internal/model"
	"github.com/sells-group/dealscout/pkg/rainforest"
)

// WarehouseDetector finds clearance/open-box condition deals: a used offer
// priced below the product's new price.
type WarehouseDetector struct {
	client rainforest.Client
	domain string
}

// NewWarehouse creates a warehouse deal detector.
func NewWarehouse(client rainforest.Client, domain string) *WarehouseDetector {
	if domain == "" {
		domain = "amazon.com"
	}
	return &WarehouseDetector{client: client, domain: domain}
}

// Detect resolves productRef, fetches the offer listing, and returns the
// cheapest used offer as a warehouse deal — or nil when no used offer
// undercuts the new price. A nil deal with nil error means "no deal here",
// not a failure.
func (d *WarehouseDetector) Detect(ctx context.Context, productRef string) (*model.Deal, error) {
	if d.client == nil {
		return nil, nil
	}
	asin, ok := ResolveASIN(productRef)
	if !ok {
		zap.L().Debug("detect: unresolvable product ref", zap.String("ref", productRef))
		return nil, nil
	}

	product, err := d.client.Product(ctx, d.domain, asin)
	if err != nil {
		return nil, err
	}
	newPrice := buyboxPrice(product.Product.BuyboxWinner)
	if newPrice <= 0 {
		return nil, nil
	}

	offers, err := d.client.Offers(ctx, d.domain, asin)
	if err != nil {
		return nil, err
	}

	var best *rainforest.Offer
	for i := range offers.Offers {
		o := &offers.Offers[i]
		if o.Condition.IsNew || o.Price == nil || o.Price.Value <= 0 {
			continue
		}
		if best == nil || o.Price.Value < best.Price.Value {
			best = o
		}
	}
	if best == nil {
		return nil, nil
	}

	price := best.Price.Value
	// No real discount, no deal.
	if newPrice <= price {
		return nil, nil
	}

	return &model.Deal{
		Type:          model.DealWarehouse,
		ASIN:          asin,
		Title:         product.Product.Title,
		URL:           product.Product.Link,
		Price:         price,
		OriginalPrice: newPrice,
		PercentOff:    model.DiscountPercent(price, newPrice),
		Marketplace:   "amazon",
		DetectedAt:    time.Now().UTC(),
		Warehouse: &model.WarehouseInfo{
			Condition:     offerCondition(best.Condition.Title),
			ConditionNote: best.Condition.Comment,
		},
	}, nil
}

func buyboxPrice(b *rainforest.Buybox) float64 {
	if b == nil {
		return 0
	}
	if b.Price != nil && b.Price.Value > 0 {
		return b.Price.Value
	}
	if b.RRP != nil {
		return b.RRP.Value
	}
	return 0
}

// offerCondition maps Amazon offer condition titles ("Used - Like New")
// onto the canonical enum.
func offerCondition(title string) model.Condition {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "like new"):
		return model.ConditionLikeNew
	case strings.Contains(t, "very good"):
		return model.ConditionVeryGood
	case strings.Contains(t, "good"):
		return model.ConditionGood
	case strings.Contains(t, "acceptable"):
		return model.ConditionAcceptable
	default:
		return model.ConditionUsed
	}
}
