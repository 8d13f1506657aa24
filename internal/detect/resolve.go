// Package detect classifies products into typed deals (warehouse,
// lightning, coupon) using upstream product-data providers.
package detect

import (
	"regexp"
	"strings"
)

// asinPatterns covers the accepted Amazon URL shapes, in match order:
//
//	/dp/B0XXXXXXXX             canonical product page
//	/gp/product/B0XXXXXXXX     legacy product page
//	/gp/aw/d/B0XXXXXXXX        mobile product page
//	/product/B0XXXXXXXX        shortened share links
//	?asin=B0XXXXXXXX           query-parameter form
var asinPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/dp/([A-Z0-9]{10})(?:[/?]|$)`),
	regexp.MustCompile(`(?i)/gp/product/([A-Z0-9]{10})(?:[/?]|$)`),
	regexp.MustCompile(`(?i)/gp/aw/d/([A-Z0-9]{10})(?:[/?]|$)`),
	regexp.MustCompile(`(?i)/product/([A-Z0-9]{10})(?:[/?]|$)`),
	regexp.MustCompile(`(?i)[?&]asin=([A-Z0-9]{10})(?:[&]|$)`),
}

var rawASIN = regexp.MustCompile(`^(?i)[A-Z0-9]{10}$`)

// ResolveASIN extracts a canonical ASIN from a product URL or a raw ID.
func ResolveASIN(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	if rawASIN.MatchString(ref) {
		return strings.ToUpper(ref), true
	}
	for _, p := range asinPatterns {
		if m := p.FindStringSubmatch(ref); m != nil {
			return strings.ToUpper(m[1]), true
		}
	}
	return "", false
}
