package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealscout/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_SearchCache_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	payload, _ := json.Marshal(map[string]any{"listings": []any{}})
	now := time.Now().UTC().Truncate(time.Second)
	entry := &model.CacheEntry{
		QueryKey:  "abc123",
		Filters:   model.SearchFilters{MaxResults: 5},
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, st.SetCachedSearch(ctx, entry))

	got, err := st.GetCachedSearch(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "abc123", got.QueryKey)
	assert.Equal(t, 5, got.Filters.MaxResults)
	assert.JSONEq(t, string(payload), string(got.Payload))
}

func TestSQLite_SearchCache_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetCachedSearch(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_SearchCache_ExpiredInvisible(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	entry := &model.CacheEntry{
		QueryKey:  "stale",
		Payload:   json.RawMessage(`{}`),
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	require.NoError(t, st.SetCachedSearch(ctx, entry))

	got, err := st.GetCachedSearch(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := st.DeleteExpiredSearches(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_SearchCache_UpsertOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	entry := &model.CacheEntry{
		QueryKey:  "k1",
		Payload:   json.RawMessage(`{"v":1}`),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, st.SetCachedSearch(ctx, entry))

	entry.Payload = json.RawMessage(`{"v":2}`)
	require.NoError(t, st.SetCachedSearch(ctx, entry))

	got, err := st.GetCachedSearch(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"v":2}`, string(got.Payload))
}

func TestSQLite_UpsertDeal(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	deal := &model.Deal{
		Type:          model.DealWarehouse,
		ASIN:          "B0ABCDEF12",
		Title:         "Bose QuietComfort Ultra",
		Price:         219,
		OriginalPrice: 329,
		PercentOff:    33,
		DetectedAt:    time.Now().UTC(),
		Warehouse:     &model.WarehouseInfo{Condition: model.ConditionLikeNew},
	}
	require.NoError(t, st.UpsertDeal(ctx, deal))

	// Conflicting write overwrites instead of duplicating.
	deal.Price = 199
	require.NoError(t, st.UpsertDeal(ctx, deal))

	var count int
	var price float64
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*), MIN(price) FROM warehouse_deals`).Scan(&count, &price))
	assert.Equal(t, 1, count)
	assert.Equal(t, 199.0, price)
}

func TestSQLite_UpsertDeal_Invalid(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Regular deals have no table.
	err := st.UpsertDeal(ctx, &model.Deal{Type: model.DealRegular, ProductID: "x"})
	assert.Error(t, err)

	// No identity key.
	err = st.UpsertDeal(ctx, &model.Deal{Type: model.DealCoupon})
	assert.Error(t, err)
}

func TestSQLite_Watchlist(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.db.Exec(
		`INSERT INTO watchlist_items (id, user_id, product_name, product_url, marketplace, target_price, initial_price, notify_on_drop)
		 VALUES ('w1', 'u1', 'Instant Pot', 'https://amazon.com/dp/B0ABCDEF12', 'amazon', 60, 99.99, 1)`)
	require.NoError(t, err)

	items, err := st.ListWatchlistItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Instant Pot", items[0].ProductName)
	assert.Nil(t, items[0].LastCheckedAt)

	checked := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.TouchWatchlistItem(ctx, "w1", checked))

	items, err = st.ListWatchlistItems(ctx)
	require.NoError(t, err)
	require.NotNil(t, items[0].LastCheckedAt)
	assert.WithinDuration(t, checked, *items[0].LastCheckedAt, time.Second)
}

func TestSQLite_FilterRules(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	criteria, _ := json.Marshal(model.Criteria{DealTypes: []string{"warehouse"}})
	_, err := st.db.Exec(
		`INSERT INTO deal_filters (id, user_id, name, criteria, is_active, is_isolated) VALUES
		 ('f1', 'u1', 'warehouse only', ?, 1, 1),
		 ('f2', 'u1', 'disabled', '{}', 0, 0),
		 ('f3', 'u2', 'everything', '{}', 1, 0)`, string(criteria))
	require.NoError(t, err)

	rules, err := st.ListActiveFilterRules(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "f1", rules[0].ID)
	assert.True(t, rules[0].IsIsolated)
	assert.Equal(t, []string{"warehouse"}, rules[0].Criteria.DealTypes)

	ids, err := st.ListFilterUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids)
}

func TestSQLite_Alerts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	alert := &model.Alert{
		UserID:   "u1",
		DealType: model.DealWarehouse,
		Product: model.Deal{
			Type: model.DealWarehouse, ASIN: "B0ABCDEF12",
			Title: "Bose QC Ultra", Price: 219, OriginalPrice: 329,
		},
		CurrentPrice:    219,
		OriginalPrice:   329,
		DiscountPercent: 33,
		QualityScore:    80,
	}
	require.NoError(t, st.CreateAlert(ctx, alert))
	assert.NotEmpty(t, alert.ID)

	exists, err := st.RecentAlertExists(ctx, "u1", "B0ABCDEF12", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, exists)

	// Outside the window, different user, different deal: all absent.
	exists, err = st.RecentAlertExists(ctx, "u1", "B0ABCDEF12", time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = st.RecentAlertExists(ctx, "u2", "B0ABCDEF12", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLite_ScanRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := &model.ScanRun{Type: model.ScanAll}
	require.NoError(t, st.CreateScanRun(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.ScanStatusRunning, run.Status)

	done := time.Now().UTC().Truncate(time.Second)
	run.Status = model.ScanStatusCompleted
	run.CompletedAt = &done
	run.Stats = model.ScanStats{ProductsScanned: 12, DealsFound: 3, AlertsCreated: 2}
	run.Errors = []string{"warehouse item-4: offers endpoint 500"}
	require.NoError(t, st.CompleteScanRun(ctx, run))

	var status string
	var scanned int
	var errorsJSON string
	require.NoError(t, st.db.QueryRow(
		`SELECT status, products_scanned, errors FROM deal_scan_log WHERE id = ?`, run.ID).
		Scan(&status, &scanned, &errorsJSON))
	assert.Equal(t, "completed", status)
	assert.Equal(t, 12, scanned)
	assert.Contains(t, errorsJSON, "offers endpoint 500")
}
