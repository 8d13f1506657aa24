package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealscout/internal/model"
	"github.com/sells-group/dealscout/pkg/browserless"
	"github.com/sells-group/dealscout/pkg/ebay"
	"github.com/sells-group/dealscout/pkg/serpapi"
)

// fixedSerp implements serpapi.Client with a canned response.
type fixedSerp struct {
	resp *serpapi.ShoppingResponse
}

func (f *fixedSerp) ShoppingSearch(ctx context.Context, query string, opts ...serpapi.SearchOption) (*serpapi.ShoppingResponse, error) {
	return f.resp, nil
}

// fixedEbay implements ebay.Client with a canned response.
type fixedEbay struct {
	resp *ebay.SearchResponse
}

func (f *fixedEbay) SearchItems(ctx context.Context, query string, limit int) (*ebay.SearchResponse, error) {
	return f.resp, nil
}

// fixedBrowser implements browserless.Client by writing canned rows.
type fixedBrowser struct {
	rows []browserRow
}

func (f *fixedBrowser) Extract(ctx context.Context, pageURL, waitSelector, script string, out any) error {
	*out.(*[]browserRow) = f.rows
	return nil
}

func strPtr(s string) *string { return &s }

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	assert.Nil(t, r.Get("serpapi"))
	assert.Empty(t, r.List())

	r.Register(NewSerp(&fixedSerp{}, "us"))
	r.Register(NewEbay(nil))

	assert.NotNil(t, r.Get("serpapi"))
	assert.NotNil(t, r.Get("ebay"))
	assert.Len(t, r.List(), 2)
}

func TestSerpAdapter_Translate(t *testing.T) {
	t.Parallel()

	rating := 4.4
	reviews := 812
	client := &fixedSerp{resp: &serpapi.ShoppingResponse{
		ShoppingResults: []serpapi.ShoppingResult{
			{
				Title:             "Lego Star Wars X-Wing",
				Link:              "https://www.target.com/p/lego-x-wing",
				Source:            "Target",
				ExtractedPrice:    44.99,
				ExtractedOldPrice: 59.99,
				Rating:            &rating,
				Reviews:           &reviews,
				Thumbnail:         "https://img.example.com/xwing.jpg",
			},
			{Title: "", ExtractedPrice: 10},     // no title: dropped
			{Title: "Freebie", ExtractedPrice: 0}, // no price: dropped
			{
				Title:               "Lego X-Wing (used)",
				ProductLink:         "https://shopping.google.com/p/1",
				Source:              "eBay",
				ExtractedPrice:      30,
				SecondHandCondition: "pre-owned",
			},
		},
	}}

	listings, err := NewSerp(client, "us").Search(context.Background(), "lego x-wing", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, listings, 2)

	first := listings[0]
	assert.Equal(t, "Lego Star Wars X-Wing", first.Title)
	assert.Equal(t, 44.99, first.Price)
	assert.Equal(t, 59.99, first.OriginalPrice)
	assert.Equal(t, 25, first.DiscountPercent)
	assert.Equal(t, "target", first.Marketplace)
	assert.Equal(t, "target.com", first.MarketplaceDomain)
	assert.Equal(t, model.ConditionNew, first.Condition)
	assert.Equal(t, "serpapi", first.Source)
	require.NotNil(t, first.Rating)
	assert.Equal(t, 4.4, *first.Rating)

	// product_link fallback and second-hand condition.
	second := listings[1]
	assert.Equal(t, "https://shopping.google.com/p/1", second.ProductURL)
	assert.Equal(t, model.ConditionUsed, second.Condition)
}

func TestSerpAdapter_Unconfigured(t *testing.T) {
	t.Parallel()

	a := NewSerp(nil, "us")
	assert.False(t, a.Configured())

	listings, err := a.Search(context.Background(), "anything", SearchOptions{})
	assert.NoError(t, err)
	assert.Nil(t, listings)
}

func TestEbayAdapter_Translate(t *testing.T) {
	t.Parallel()

	client := &fixedEbay{resp: &ebay.SearchResponse{
		Total: 2,
		ItemSummaries: []ebay.ItemSummary{
			{
				ItemID:     "v1|123|0",
				Title:      "DeWalt Drill 20V",
				Price:      &ebay.Amount{Value: "89.00", Currency: "USD"},
				MarketingPrice: &ebay.MarketingPrice{
					OriginalPrice: &ebay.Amount{Value: "129.00", Currency: "USD"},
				},
				ItemWebURL: "https://www.ebay.com/itm/123",
				Condition:  "Open box",
				Seller:     &ebay.Seller{Username: "toolseller"},
				ShippingOptions: []ebay.ShippingOption{
					{ShippingCost: &ebay.Amount{Value: "0.00", Currency: "USD"}},
				},
			},
			{Title: "No price item"},
		},
	}}

	listings, err := NewEbay(client).Search(context.Background(), "dewalt drill", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, listings, 1)

	l := listings[0]
	assert.Equal(t, 89.0, l.Price)
	assert.Equal(t, 129.0, l.OriginalPrice)
	assert.Equal(t, 31, l.DiscountPercent)
	assert.Equal(t, "ebay", l.Marketplace)
	assert.Equal(t, model.ConditionLikeNew, l.Condition)
	assert.Equal(t, "toolseller", l.Seller)
}

func TestEbayCondition(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.ConditionNew, ebayCondition("Brand New"))
	assert.Equal(t, model.ConditionNew, ebayCondition(""))
	assert.Equal(t, model.ConditionLikeNew, ebayCondition("Like New"))
	assert.Equal(t, model.ConditionAcceptable, ebayCondition("Acceptable"))
	assert.Equal(t, model.ConditionUsed, ebayCondition("Seller refurbished"))
}

func TestBrowserAdapter_SelectorDrift(t *testing.T) {
	t.Parallel()

	var b browserless.Client = &fixedBrowser{rows: []browserRow{
		{
			ASIN:          "B0GOODROW01",
			Title:         strPtr("Instant Pot Duo 7-in-1"),
			Price:         strPtr("$79.99"),
			OriginalPrice: strPtr("$99.95"),
			URL:           strPtr("/dp/B0GOODROW01"),
			Rating:        strPtr("4.7 out of 5 stars"),
			Reviews:       strPtr("152,203"),
		},
		// Price selector drifted but title survived: kept with zero price.
		{ASIN: "B0DRIFTED01", Title: strPtr("Mystery Gadget")},
		// Both title and price gone: dropped.
		{ASIN: "B0DROPPED01", Image: strPtr("https://img.example.com/x.jpg")},
	}}

	listings, err := NewBrowser(b, "amazon.com").Search(context.Background(), "instant pot", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, listings, 2)

	l := listings[0]
	assert.Equal(t, 79.99, l.Price)
	assert.Equal(t, 99.95, l.OriginalPrice)
	assert.Equal(t, "https://www.amazon.com/dp/B0GOODROW01", l.ProductURL)
	require.NotNil(t, l.Rating)
	assert.Equal(t, 4.7, *l.Rating)
	require.NotNil(t, l.ReviewCount)
	assert.Equal(t, 152203, *l.ReviewCount)

	assert.Equal(t, "Mystery Gadget", listings[1].Title)
	assert.Zero(t, listings[1].Price)
}

func TestBrowserAdapter_Unconfigured(t *testing.T) {
	t.Parallel()

	listings, err := NewBrowser(nil, "").Search(context.Background(), "anything", SearchOptions{})
	assert.NoError(t, err)
	assert.Nil(t, listings)
}

func TestParsePrice(t *testing.T) {
	t.Parallel()

	v, ok := parsePrice("$1,299.99")
	require.True(t, ok)
	assert.Equal(t, 1299.99, v)

	_, ok = parsePrice("")
	assert.False(t, ok)
	_, ok = parsePrice("N/A")
	assert.False(t, ok)
}
