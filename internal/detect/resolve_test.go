package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveASIN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ref  string
		want string
		ok   bool
	}{
		{"raw asin", "B0ABCDEF12", "B0ABCDEF12", true},
		{"raw asin lowercase", "b0abcdef12", "B0ABCDEF12", true},
		{"dp url", "https://www.amazon.com/Some-Product/dp/B0ABCDEF12", "B0ABCDEF12", true},
		{"dp url trailing slash", "https://amazon.com/dp/B0ABCDEF12/", "B0ABCDEF12", true},
		{"dp url with query", "https://amazon.com/dp/B0ABCDEF12?th=1", "B0ABCDEF12", true},
		{"gp product url", "https://www.amazon.com/gp/product/B0ABCDEF12", "B0ABCDEF12", true},
		{"mobile url", "https://www.amazon.com/gp/aw/d/B0ABCDEF12", "B0ABCDEF12", true},
		{"share url", "https://a.co/product/B0ABCDEF12", "B0ABCDEF12", true},
		{"query param", "https://amazon.com/deal?asin=B0ABCDEF12&ref=x", "B0ABCDEF12", true},
		{"empty", "", "", false},
		{"whitespace", "   ", "", false},
		{"not amazon", "https://www.ebay.com/itm/123456789012", "", false},
		{"asin too short", "https://amazon.com/dp/B0ABC", "", false},
		{"asin too long", "B0ABCDEF12345", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveASIN(tt.ref)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
