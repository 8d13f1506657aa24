package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dealscout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for local
// development and single-process deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS search_cache (
	query_key  TEXT PRIMARY KEY,
	filters    TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_cache_expires_at ON search_cache(expires_at);

CREATE TABLE IF NOT EXISTS warehouse_deals (
	asin            TEXT PRIMARY KEY,
	data            TEXT NOT NULL,
	price           REAL NOT NULL,
	percent_off     INTEGER NOT NULL,
	detected_at     DATETIME NOT NULL,
	last_checked_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS lightning_deals (
	asin            TEXT PRIMARY KEY,
	data            TEXT NOT NULL,
	price           REAL NOT NULL,
	percent_off     INTEGER NOT NULL,
	detected_at     DATETIME NOT NULL,
	last_checked_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS coupon_deals (
	asin            TEXT PRIMARY KEY,
	data            TEXT NOT NULL,
	price           REAL NOT NULL,
	percent_off     INTEGER NOT NULL,
	detected_at     DATETIME NOT NULL,
	last_checked_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS watchlist_items (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	product_name    TEXT NOT NULL,
	product_url     TEXT NOT NULL,
	marketplace     TEXT NOT NULL DEFAULT 'amazon',
	target_price    REAL NOT NULL DEFAULT 0,
	initial_price   REAL NOT NULL DEFAULT 0,
	notify_on_drop  INTEGER NOT NULL DEFAULT 1,
	last_checked_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_watchlist_items_user_id ON watchlist_items(user_id);

CREATE TABLE IF NOT EXISTS deal_filters (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	criteria    TEXT NOT NULL,
	is_active   INTEGER NOT NULL DEFAULT 1,
	is_isolated INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_deal_filters_user_id ON deal_filters(user_id);

CREATE TABLE IF NOT EXISTS deal_alerts (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	watchlist_id     TEXT,
	deal_type        TEXT NOT NULL,
	deal_key         TEXT NOT NULL,
	product          TEXT NOT NULL,
	current_price    REAL NOT NULL,
	original_price   REAL NOT NULL,
	discount_percent INTEGER NOT NULL,
	quality_score    INTEGER NOT NULL,
	is_read          INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deal_alerts_user_id ON deal_alerts(user_id);
CREATE INDEX IF NOT EXISTS idx_deal_alerts_user_key_created ON deal_alerts(user_id, deal_key, created_at);

CREATE TABLE IF NOT EXISTS deal_scan_log (
	id               TEXT PRIMARY KEY,
	scan_type        TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'running',
	started_at       DATETIME NOT NULL,
	completed_at     DATETIME,
	products_scanned INTEGER NOT NULL DEFAULT 0,
	deals_found      INTEGER NOT NULL DEFAULT 0,
	alerts_created   INTEGER NOT NULL DEFAULT 0,
	errors           TEXT
);

CREATE INDEX IF NOT EXISTS idx_deal_scan_log_started_at ON deal_scan_log(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetCachedSearch(ctx context.Context, queryKey string) (*model.CacheEntry, error) {
	var entry model.CacheEntry
	var filtersJSON, payload string

	err := s.db.QueryRowContext(ctx,
		`SELECT query_key, filters, payload, created_at, expires_at FROM search_cache WHERE query_key = ? AND expires_at > ?`,
		queryKey, time.Now().UTC(),
	).Scan(&entry.QueryKey, &filtersJSON, &payload, &entry.CreatedAt, &entry.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get cached search %s", queryKey)
	}

	if err := json.Unmarshal([]byte(filtersJSON), &entry.Filters); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached filters")
	}
	entry.Payload = []byte(payload)
	return &entry, nil
}

func (s *SQLiteStore) SetCachedSearch(ctx context.Context, entry *model.CacheEntry) error {
	filtersJSON, err := json.Marshal(entry.Filters)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal cached filters")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO search_cache (query_key, filters, payload, created_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(query_key) DO UPDATE SET filters = excluded.filters, payload = excluded.payload, created_at = excluded.created_at, expires_at = excluded.expires_at`,
		entry.QueryKey, string(filtersJSON), string(entry.Payload), entry.CreatedAt, entry.ExpiresAt,
	)
	return eris.Wrapf(err, "sqlite: set cached search %s", entry.QueryKey)
}

func (s *SQLiteStore) DeleteExpiredSearches(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM search_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired searches")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired searches")
	}
	return int(n), nil
}

func (s *SQLiteStore) UpsertDeal(ctx context.Context, deal *model.Deal) error {
	table := dealTable(deal.Type)
	if table == "" {
		return eris.Errorf("store: no table for deal type %q", deal.Type)
	}
	identity := deal.Identity()
	if identity == "" {
		return eris.New("store: deal has no identity key")
	}

	data, err := json.Marshal(deal)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal deal")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (asin, data, price, percent_off, detected_at, last_checked_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(asin) DO UPDATE SET data = excluded.data, price = excluded.price, percent_off = excluded.percent_off, last_checked_at = excluded.last_checked_at`,
		identity, string(data), deal.Price, deal.PercentOff, deal.DetectedAt, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert %s %s", table, identity)
}

func (s *SQLiteStore) ListWatchlistItems(ctx context.Context) ([]model.WatchlistItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, product_name, product_url, marketplace, target_price, initial_price, notify_on_drop, last_checked_at FROM watchlist_items ORDER BY user_id, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list watchlist items")
	}
	defer rows.Close()

	var items []model.WatchlistItem
	for rows.Next() {
		var item model.WatchlistItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductName, &item.ProductURL,
			&item.Marketplace, &item.TargetPrice, &item.InitialPrice, &item.NotifyOnDrop,
			&item.LastCheckedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan watchlist item")
		}
		items = append(items, item)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list watchlist items")
}

func (s *SQLiteStore) TouchWatchlistItem(ctx context.Context, id string, checkedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE watchlist_items SET last_checked_at = ? WHERE id = ?`, checkedAt, id)
	return eris.Wrapf(err, "sqlite: touch watchlist item %s", id)
}

func (s *SQLiteStore) ListActiveFilterRules(ctx context.Context, userID string) ([]model.FilterRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, criteria, is_active, is_isolated FROM deal_filters WHERE user_id = ? AND is_active = 1 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list filter rules for %s", userID)
	}
	defer rows.Close()

	var rules []model.FilterRule
	for rows.Next() {
		var rule model.FilterRule
		var criteriaJSON string
		if err := rows.Scan(&rule.ID, &rule.UserID, &rule.Name, &criteriaJSON,
			&rule.IsActive, &rule.IsIsolated); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan filter rule")
		}
		if err := json.Unmarshal([]byte(criteriaJSON), &rule.Criteria); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal criteria for rule %s", rule.ID)
		}
		rules = append(rules, rule)
	}
	return rules, eris.Wrap(rows.Err(), "sqlite: list filter rules")
}

func (s *SQLiteStore) ListFilterUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM deal_filters WHERE is_active = 1 ORDER BY user_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list filter user ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan filter user id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list filter user ids")
}

func (s *SQLiteStore) CreateAlert(ctx context.Context, alert *model.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	productJSON, err := json.Marshal(alert.Product)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal alert product")
	}

	var watchlistID any
	if alert.WatchlistID != "" {
		watchlistID = alert.WatchlistID
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deal_alerts (id, user_id, watchlist_id, deal_type, deal_key, product, current_price, original_price, discount_percent, quality_score, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		alert.ID, alert.UserID, watchlistID, string(alert.DealType), alert.Product.Identity(),
		string(productJSON), alert.CurrentPrice, alert.OriginalPrice, alert.DiscountPercent,
		alert.QualityScore, alert.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: create alert for %s", alert.UserID)
}

func (s *SQLiteStore) RecentAlertExists(ctx context.Context, userID, dealKey string, since time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM deal_alerts WHERE user_id = ? AND deal_key = ? AND created_at > ?)`,
		userID, dealKey, since,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: recent alert exists for %s", userID)
	}
	return exists, nil
}

func (s *SQLiteStore) CreateScanRun(ctx context.Context, run *model.ScanRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = model.ScanStatusRunning

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deal_scan_log (id, scan_type, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(run.Type), string(run.Status), run.StartedAt,
	)
	return eris.Wrap(err, "sqlite: create scan run")
}

func (s *SQLiteStore) CompleteScanRun(ctx context.Context, run *model.ScanRun) error {
	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal scan errors")
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE deal_scan_log SET status = ?, completed_at = ?, products_scanned = ?, deals_found = ?, alerts_created = ?, errors = ? WHERE id = ?`,
		string(run.Status), run.CompletedAt, run.Stats.ProductsScanned, run.Stats.DealsFound,
		run.Stats.AlertsCreated, string(errorsJSON), run.ID,
	)
	return eris.Wrapf(err, "sqlite: complete scan run %s", run.ID)
}
