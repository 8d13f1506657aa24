package detect

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dealscout/internal/model"
	"github.com/sells-group/dealscout/pkg/rainforest"
)

var (
	couponPercentRe = regexp.MustCompile(`(\d{1,3})\s*%`)
	couponAmountRe  = regexp.MustCompile(`\$\s*(\d+(?:\.\d{1,2})?)`)
)

// CouponDetector finds products carrying a clippable or code coupon that
// produces a real price reduction.
type CouponDetector struct {
	client rainforest.Client
	domain string
}

// NewCoupon creates a coupon deal detector.
func NewCoupon(client rainforest.Client, domain string) *CouponDetector {
	if domain == "" {
		domain = "amazon.com"
	}
	return &CouponDetector{client: client, domain: domain}
}

// Detect resolves productRef and returns a coupon deal when the product page
// carries a coupon whose value actually lowers the price. Returns nil when
// there is no coupon, the coupon text is unparseable, or the discount does
// not hold up.
func (d *CouponDetector) Detect(ctx context.Context, productRef string) (*model.Deal, error) {
	if d.client == nil {
		return nil, nil
	}
	asin, ok := ResolveASIN(productRef)
	if !ok {
		zap.L().Debug("detect: unresolvable product ref", zap.String("ref", productRef))
		return nil, nil
	}

	resp, err := d.client.Product(ctx, d.domain, asin)
	if err != nil {
		return nil, err
	}
	product := resp.Product
	if product.Coupon == nil {
		return nil, nil
	}

	listPrice := buyboxPrice(product.BuyboxWinner)
	if listPrice <= 0 {
		return nil, nil
	}

	discounted, ok := applyCoupon(listPrice, product.Coupon.Text)
	if !ok || discounted >= listPrice {
		return nil, nil
	}

	info := &model.CouponInfo{
		Code:      product.Coupon.Code,
		Clippable: product.Coupon.IsClippable,
	}
	if product.Coupon.ExpiresAt != "" {
		if exp, perr := time.Parse(time.RFC3339, product.Coupon.ExpiresAt); perr == nil {
			expUTC := exp.UTC()
			info.ExpiresAt = &expUTC
		}
	}

	return &model.Deal{
		Type:          model.DealCoupon,
		ASIN:          asin,
		Title:         product.Title,
		URL:           product.Link,
		Price:         discounted,
		OriginalPrice: listPrice,
		PercentOff:    model.DiscountPercent(discounted, listPrice),
		Marketplace:   "amazon",
		DetectedAt:    time.Now().UTC(),
		Coupon:        info,
	}, nil
}

// applyCoupon computes the price after a coupon described by display text
// like "Save 20%" or "$5.00 off". Unparseable text yields no deal.
func applyCoupon(price float64, text string) (float64, bool) {
	if m := couponPercentRe.FindStringSubmatch(text); m != nil {
		pct, err := strconv.Atoi(m[1])
		if err != nil || pct <= 0 || pct > 100 {
			return 0, false
		}
		return price * (1 - float64(pct)/100), true
	}
	if m := couponAmountRe.FindStringSubmatch(text); m != nil {
		amount, err := strconv.ParseFloat(m[1], 64)
		if err != nil || amount <= 0 || amount >= price {
			return 0, false
		}
		return price - amount, true
	}
	return 0, false
}
