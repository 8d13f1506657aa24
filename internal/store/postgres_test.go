package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealscout/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgres_GetCachedSearch_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT query_key, filters, payload, created_at, expires_at FROM search_cache`).
		WithArgs("missing-key").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetCachedSearch(context.Background(), "missing-key")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetCachedSearch_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	filters, _ := json.Marshal(model.SearchFilters{MaxResults: 5})
	payload := []byte(`{"listings":[]}`)

	mock.ExpectQuery(`SELECT query_key, filters, payload, created_at, expires_at FROM search_cache`).
		WithArgs("k1").
		WillReturnRows(pgxmock.NewRows([]string{"query_key", "filters", "payload", "created_at", "expires_at"}).
			AddRow("k1", filters, payload, now, now.Add(time.Hour)))

	got, err := s.GetCachedSearch(context.Background(), "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 5, got.Filters.MaxResults)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetCachedSearch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	entry := &model.CacheEntry{
		QueryKey:  "k1",
		Payload:   json.RawMessage(`{}`),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	mock.ExpectExec(`INSERT INTO "search_cache"`).
		WithArgs("k1", pgxmock.AnyArg(), []byte(`{}`), now, now.Add(time.Hour)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SetCachedSearch(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertDeal_RoutesByType(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	deal := &model.Deal{
		Type:       model.DealLightning,
		ASIN:       "B0ABCDEF12",
		Title:      "Anker Power Bank",
		Price:      29.99,
		DetectedAt: time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO "lightning_deals"`).
		WithArgs("B0ABCDEF12", pgxmock.AnyArg(), 29.99, 0, deal.DetectedAt, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.UpsertDeal(context.Background(), deal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertDeal_Invalid(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	err := s.UpsertDeal(context.Background(), &model.Deal{Type: model.DealRegular, ProductID: "x"})
	assert.Error(t, err)

	err = s.UpsertDeal(context.Background(), &model.Deal{Type: model.DealWarehouse})
	assert.Error(t, err)
}

func TestPostgres_ListActiveFilterRules(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	criteria, _ := json.Marshal(model.Criteria{DealTypes: []string{"warehouse"}})
	mock.ExpectQuery(`SELECT id, user_id, name, criteria, is_active, is_isolated FROM deal_filters`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "name", "criteria", "is_active", "is_isolated"}).
			AddRow("f1", "u1", "warehouse only", criteria, true, true))

	rules, err := s.ListActiveFilterRules(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.True(t, rules[0].IsIsolated)
	assert.Equal(t, []string{"warehouse"}, rules[0].Criteria.DealTypes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecentAlertExists(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	since := time.Now().UTC().Add(-time.Hour)
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM deal_alerts`).
		WithArgs("u1", "B0ABCDEF12", since).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.RecentAlertExists(context.Background(), "u1", "B0ABCDEF12", since)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateAlert_AssignsID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO deal_alerts`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	alert := &model.Alert{
		UserID:   "u1",
		DealType: model.DealCoupon,
		Product:  model.Deal{Type: model.DealCoupon, ASIN: "B0ABCDEF12"},
	}
	require.NoError(t, s.CreateAlert(context.Background(), alert))
	assert.NotEmpty(t, alert.ID)
	assert.False(t, alert.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ScanRunLifecycle(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO deal_scan_log`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run := &model.ScanRun{Type: model.ScanWarehouse}
	require.NoError(t, s.CreateScanRun(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.ScanStatusRunning, run.Status)

	done := time.Now().UTC()
	run.Status = model.ScanStatusFailed
	run.CompletedAt = &done
	run.Errors = []string{"watchlist unreadable"}

	mock.ExpectExec(`UPDATE deal_scan_log SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.CompleteScanRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}
