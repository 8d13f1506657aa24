package rainforest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Success(t *testing.T) {
	t.Parallel()

	want := SearchResponse{
		SearchResults: []SearchResult{
			{
				Position: 1,
				Title:    "Anker USB-C Charger 65W",
				ASIN:     "B0B2KPB1QZ",
				Link:     "https://www.amazon.com/dp/B0B2KPB1QZ",
				Price:    &Price{Value: 34.99, Currency: "USD"},
			},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/request", r.URL.Path)
		assert.Equal(t, "search", r.URL.Query().Get("type"))
		assert.Equal(t, "amazon.com", r.URL.Query().Get("amazon_domain"))
		assert.Equal(t, "usb-c charger", r.URL.Query().Get("search_term"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.Search(context.Background(), "amazon.com", "usb-c charger")

	require.NoError(t, err)
	require.Len(t, got.SearchResults, 1)
	assert.Equal(t, "B0B2KPB1QZ", got.SearchResults[0].ASIN)
	assert.Equal(t, 34.99, got.SearchResults[0].Price.Value)
}

func TestProduct_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "product", r.URL.Query().Get("type"))
		assert.Equal(t, "B0B2KPB1QZ", r.URL.Query().Get("asin"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"product": {
				"asin": "B0B2KPB1QZ",
				"title": "Anker USB-C Charger 65W",
				"buybox_winner": {
					"price": {"value": 34.99, "currency": "USD"},
					"rrp": {"value": 49.99, "currency": "USD"}
				},
				"coupon": {"text": "Save 20% with coupon", "is_clippable": true}
			}
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.Product(context.Background(), "amazon.com", "B0B2KPB1QZ")

	require.NoError(t, err)
	assert.Equal(t, "B0B2KPB1QZ", got.Product.ASIN)
	require.NotNil(t, got.Product.BuyboxWinner)
	assert.Equal(t, 49.99, got.Product.BuyboxWinner.RRP.Value)
	require.NotNil(t, got.Product.Coupon)
	assert.True(t, got.Product.Coupon.IsClippable)
}

func TestOffers_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "offers", r.URL.Query().Get("type"))
		assert.Equal(t, "B0B2KPB1QZ", r.URL.Query().Get("asin"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"offers": [
				{
					"price": {"value": 27.99, "currency": "USD"},
					"condition": {"title": "Used - Like New", "is_new": false},
					"seller": {"name": "Amazon Warehouse"}
				},
				{
					"price": {"value": 34.99, "currency": "USD"},
					"condition": {"title": "New", "is_new": true}
				}
			]
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.Offers(context.Background(), "amazon.com", "B0B2KPB1QZ")

	require.NoError(t, err)
	require.Len(t, got.Offers, 2)
	assert.False(t, got.Offers[0].Condition.IsNew)
	assert.Equal(t, "Amazon Warehouse", got.Offers[0].Seller.Name)
	assert.True(t, got.Offers[1].Condition.IsNew)
}

func TestDeals_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "deals", r.URL.Query().Get("type"))
		assert.Equal(t, "electronics", r.URL.Query().Get("category_id"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"deals_results": [
				{
					"asin": "B0ABCDEFGH",
					"title": "Echo Dot (5th Gen)",
					"link": "https://www.amazon.com/dp/B0ABCDEFGH",
					"deal_price": {"value": 29.99, "currency": "USD"},
					"list_price": {"value": 49.99, "currency": "USD"},
					"ends_at": "2026-08-28T23:59:00Z",
					"type": "lightning_deal"
				}
			]
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.Deals(context.Background(), "amazon.com", "electronics")

	require.NoError(t, err)
	require.Len(t, got.DealsResults, 1)
	assert.Equal(t, "B0ABCDEFGH", got.DealsResults[0].ASIN)
	assert.Equal(t, 29.99, got.DealsResults[0].DealPrice.Value)
	assert.Equal(t, "lightning_deal", got.DealsResults[0].Type)
}

func TestRequest_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"request_info":{"success":false,"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "amazon.com", "anything")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestRequest_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Product(context.Background(), "amazon.com", "B0B2KPB1QZ")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
}

func TestRequest_ContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Offers(ctx, "amazon.com", "B0B2KPB1QZ")

	require.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	c := NewClient("my-key")
	hc := c.(*httpClient)
	assert.Equal(t, "my-key", hc.apiKey)
	assert.Equal(t, "https://api.rainforestapi.com", hc.baseURL)
	assert.NotNil(t, hc.http)
}
