package model

import "time"

// DealType discriminates the deal union.
type DealType string

const (
	DealRegular   DealType = "regular"
	DealWarehouse DealType = "warehouse"
	DealLightning DealType = "lightning"
	DealCoupon    DealType = "coupon"
)

// Deal is a listing classified as a discount opportunity. Exactly one of the
// variant payloads (Warehouse, Lightning, Coupon) is set, matching Type;
// regular price-drop deals carry none.
type Deal struct {
	Type          DealType  `json:"deal_type"`
	ASIN          string    `json:"asin,omitempty"`
	ProductID     string    `json:"product_id,omitempty"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Price         float64   `json:"price"`
	OriginalPrice float64   `json:"original_price"`
	PercentOff    int       `json:"percent_off"`
	Marketplace   string    `json:"marketplace,omitempty"`
	Category      string    `json:"category,omitempty"`
	DetectedAt    time.Time `json:"detected_at"`

	Warehouse *WarehouseInfo `json:"warehouse,omitempty"`
	Lightning *LightningInfo `json:"lightning,omitempty"`
	Coupon    *CouponInfo    `json:"coupon,omitempty"`
}

// WarehouseInfo describes a clearance/open-box condition deal.
type WarehouseInfo struct {
	Condition     Condition `json:"condition"`
	ConditionNote string    `json:"condition_note,omitempty"`
}

// LightningInfo describes a time-boxed deal.
type LightningInfo struct {
	EndsAt           time.Time `json:"ends_at"`
	TimeRemainingMin int       `json:"time_remaining_minutes"`
	PercentClaimed   int       `json:"percent_claimed"`
}

// CouponInfo describes a coupon-based discount.
type CouponInfo struct {
	Code      string     `json:"code,omitempty"`
	Clippable bool       `json:"clippable"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Identity returns the stable key used for idempotent deal upserts:
// the ASIN for Amazon-keyed deals, the raw product ID otherwise.
func (d *Deal) Identity() string {
	if d.ASIN != "" {
		return d.ASIN
	}
	return d.ProductID
}
