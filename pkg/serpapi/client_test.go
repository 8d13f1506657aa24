package serpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShoppingSearch_Success(t *testing.T) {
	t.Parallel()

	rating := 4.5
	reviews := 1287
	want := ShoppingResponse{
		SearchMetadata: SearchMetadata{ID: "abc123", Status: "Success"},
		ShoppingResults: []ShoppingResult{
			{
				Position:          1,
				Title:             "Sony WH-1000XM5 Wireless Headphones",
				ProductLink:       "https://www.google.com/shopping/product/123",
				Source:            "Best Buy",
				Price:             "$279.99",
				ExtractedPrice:    279.99,
				OldPrice:          "$399.99",
				ExtractedOldPrice: 399.99,
				Rating:            &rating,
				Reviews:           &reviews,
			},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "google_shopping", r.URL.Query().Get("engine"))
		assert.Equal(t, "sony headphones", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "us", r.URL.Query().Get("gl"))
		assert.Equal(t, "20", r.URL.Query().Get("num"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.ShoppingSearch(context.Background(), "sony headphones",
		WithCountry("us"), WithLimit(20))

	require.NoError(t, err)
	assert.Equal(t, "abc123", got.SearchMetadata.ID)
	require.Len(t, got.ShoppingResults, 1)
	assert.Equal(t, want.ShoppingResults[0].Title, got.ShoppingResults[0].Title)
	assert.Equal(t, 279.99, got.ShoppingResults[0].ExtractedPrice)
	assert.Equal(t, 399.99, got.ShoppingResults[0].ExtractedOldPrice)
}

func TestShoppingSearch_OmitsUnsetParams(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("gl"))
		assert.False(t, r.URL.Query().Has("num"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"search_metadata":{"status":"Success"},"shopping_results":[]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.ShoppingSearch(context.Background(), "anything")

	require.NoError(t, err)
	assert.Empty(t, got.ShoppingResults)
}

func TestShoppingSearch_RetriesTransientFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"search_metadata":{"id":"retry-ok","status":"Success"},"shopping_results":[]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.ShoppingSearch(context.Background(), "retry me")

	require.NoError(t, err)
	assert.Equal(t, "retry-ok", got.SearchMetadata.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestShoppingSearch_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := client.ShoppingSearch(context.Background(), "anything")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestShoppingSearch_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.ShoppingSearch(context.Background(), "anything")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
}

func TestShoppingSearch_ContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.ShoppingSearch(ctx, "anything")

	require.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	c := NewClient("my-key")
	hc := c.(*httpClient)
	assert.Equal(t, "my-key", hc.apiKey)
	assert.Equal(t, "https://serpapi.com", hc.baseURL)
	assert.NotNil(t, hc.http)
	assert.Equal(t, 20*time.Second, hc.http.Timeout)
}

func TestWithHTTPClient(t *testing.T) {
	t.Parallel()
	customClient := &http.Client{}
	c := NewClient("my-key", WithHTTPClient(customClient))
	hc := c.(*httpClient)
	assert.Equal(t, customClient, hc.http)
}
