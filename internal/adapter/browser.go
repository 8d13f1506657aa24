package adapter

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/dealscout/internal/model"
	"github.com/sells-group/dealscout/pkg/browserless"
)

// resultSelector is the container the rendered search page must produce
// before extraction runs.
const resultSelector = "div.s-main-slot"

// extractScript pulls the search result grid out of the rendered DOM.
// Selector drift yields nulls per field, never a page-level failure.
const extractScript = `
(function() {
	const rows = [];
	document.querySelectorAll("div.s-main-slot div[data-asin]").forEach(el => {
		const asin = el.getAttribute("data-asin");
		if (!asin) return;
		const pick = sel => { const n = el.querySelector(sel); return n ? n.textContent.trim() : null; };
		const attr = (sel, a) => { const n = el.querySelector(sel); return n ? n.getAttribute(a) : null; };
		rows.push({
			asin: asin,
			title: pick("h2 span"),
			price: pick("span.a-price > span.a-offscreen"),
			original_price: pick("span.a-price.a-text-price > span.a-offscreen"),
			image: attr("img.s-image", "src"),
			url: attr("h2 a", "href") || attr("a.a-link-normal", "href"),
			rating: pick("span.a-icon-alt"),
			reviews: pick("span.s-underline-text")
		});
	});
	return rows;
})()
`

// browserRow mirrors the extraction script's output.
type browserRow struct {
	ASIN          string  `json:"asin"`
	Title         *string `json:"title"`
	Price         *string `json:"price"`
	OriginalPrice *string `json:"original_price"`
	Image         *string `json:"image"`
	URL           *string `json:"url"`
	Rating        *string `json:"rating"`
	Reviews       *string `json:"reviews"`
}

// BrowserAdapter scrapes a rendered marketplace search page through the
// headless-browser service. It is the slowest and most fragile tier, tried
// only when every API-backed tier came back empty, and rate limited so
// repeated fallthroughs cannot hammer the target site.
type BrowserAdapter struct {
	client  browserless.Client
	domain  string // e.g. "amazon.com"
	limiter *rate.Limiter
}

// NewBrowser creates the scrape adapter. A nil client marks it unconfigured.
func NewBrowser(client browserless.Client, domain string) *BrowserAdapter {
	if domain == "" {
		domain = "amazon.com"
	}
	return &BrowserAdapter{
		client:  client,
		domain:  domain,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

func (a *BrowserAdapter) Name() string { return "browser" }

func (a *BrowserAdapter) Configured() bool { return a.client != nil }

func (a *BrowserAdapter) Search(ctx context.Context, query string, opts SearchOptions) ([]model.Listing, error) {
	if !a.Configured() {
		return nil, nil
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	searchURL := "https://www." + a.domain + "/s?k=" + url.QueryEscape(query)

	var rows []browserRow
	if err := a.client.Extract(ctx, searchURL, resultSelector, extractScript, &rows); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	max := opts.MaxResults
	listings := make([]model.Listing, 0, len(rows))
	for _, row := range rows {
		if max > 0 && len(listings) >= max {
			break
		}

		title := deref(row.Title)
		price, priceOK := parsePrice(deref(row.Price))
		// A row is only unusable when both title and price are gone.
		if title == "" && !priceOK {
			continue
		}

		original, _ := parsePrice(deref(row.OriginalPrice))

		l := model.Listing{
			Title:             title,
			Price:             price,
			Currency:          "USD",
			OriginalPrice:     original,
			DiscountPercent:   model.DiscountPercent(price, original),
			ImageURL:          deref(row.Image),
			ProductURL:        absoluteURL(a.domain, deref(row.URL)),
			Marketplace:       "amazon",
			MarketplaceDomain: a.domain,
			Condition:         model.ConditionNew,
			Availability:      model.AvailabilityUnknown,
			Source:            a.Name(),
			FetchedAt:         now,
		}
		if r, ok := parseRating(deref(row.Rating)); ok {
			l.Rating = &r
		}
		if n, ok := parseCount(deref(row.Reviews)); ok {
			l.ReviewCount = &n
		}

		listings = append(listings, l)
	}
	return listings, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var priceCleaner = regexp.MustCompile(`[^0-9.]`)

// parsePrice turns display prices like "$1,299.99" into a float.
func parsePrice(s string) (float64, bool) {
	cleaned := priceCleaner.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// parseRating reads "4.5 out of 5 stars" style strings.
func parseRating(s string) (float64, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || v < 0 || v > 5 {
		return 0, false
	}
	return v, true
}

// parseCount reads review counts like "1,204".
func parseCount(s string) (int, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return 0, false
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func absoluteURL(domain, path string) string {
	if path == "" || strings.HasPrefix(path, "http") {
		return path
	}
	return "https://www." + domain + path
}
