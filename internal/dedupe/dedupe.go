// Package dedupe collapses near-duplicate listings from different providers
// into one canonical record per real-world item.
package dedupe

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/dealscout/internal/model"
)

const maxKeyTitleLen = 50

// stripMarks removes diacritics so "Pokémon" and "Pokemon" key identically.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Key derives the dedup key for a listing: the title lowercased, stripped of
// non-alphanumerics, truncated to 50 characters, plus the price rounded to
// the nearest whole unit. Two listings sharing a key are treated as the same
// item.
func Key(l model.Listing) string {
	title := l.Title
	if stripped, _, err := transform.String(stripMarks, title); err == nil {
		title = stripped
	}

	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if b.Len() >= maxKeyTitleLen {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return fmt.Sprintf("%s:%d", b.String(), int64(math.Round(l.Price)))
}

// richness counts populated optional fields, used to pick the canonical
// record when two listings collide on the same key.
func richness(l model.Listing) int {
	n := 0
	if l.OriginalPrice > 0 {
		n++
	}
	if l.ImageURL != "" {
		n++
	}
	if l.Seller != "" {
		n++
	}
	if l.MarketplaceDomain != "" {
		n++
	}
	if l.Rating != nil {
		n++
	}
	if l.ReviewCount != nil {
		n++
	}
	if l.ShippingCost != nil {
		n++
	}
	if l.Availability != "" && l.Availability != model.AvailabilityUnknown {
		n++
	}
	return n
}

// Dedupe returns listings with key collisions collapsed. On collision the
// kept record is replaced only if the incoming one is strictly richer;
// equal richness keeps the first-seen. For a fixed listing set with one
// richest candidate per key, the surviving record does not depend on input
// order.
func Dedupe(listings []model.Listing) []model.Listing {
	if len(listings) <= 1 {
		return listings
	}

	index := make(map[string]int, len(listings))
	out := make([]model.Listing, 0, len(listings))

	for _, l := range listings {
		key := Key(l)
		at, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, l)
			continue
		}
		if richness(l) > richness(out[at]) {
			out[at] = l
		}
	}
	return out
}
