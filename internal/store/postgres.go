package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealscout/internal/db"
	"github.com/sells-group/dealscout/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_cached_search":     `SELECT query_key, filters, payload, created_at, expires_at FROM search_cache WHERE query_key = $1 AND expires_at > now()`,
	"list_watchlist":        `SELECT id, user_id, product_name, product_url, marketplace, target_price, initial_price, notify_on_drop, last_checked_at FROM watchlist_items ORDER BY user_id, id`,
	"touch_watchlist":       `UPDATE watchlist_items SET last_checked_at = $1 WHERE id = $2`,
	"list_active_filters":   `SELECT id, user_id, name, criteria, is_active, is_isolated FROM deal_filters WHERE user_id = $1 AND is_active ORDER BY id`,
	"recent_alert_exists":   `SELECT EXISTS(SELECT 1 FROM deal_alerts WHERE user_id = $1 AND deal_key = $2 AND created_at > $3)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS search_cache (
	query_key  TEXT PRIMARY KEY,
	filters    JSONB NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_cache_expires_at ON search_cache(expires_at);

CREATE TABLE IF NOT EXISTS warehouse_deals (
	asin            TEXT PRIMARY KEY,
	data            JSONB NOT NULL,
	price           DOUBLE PRECISION NOT NULL,
	percent_off     INTEGER NOT NULL,
	detected_at     TIMESTAMPTZ NOT NULL,
	last_checked_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS lightning_deals (
	asin            TEXT PRIMARY KEY,
	data            JSONB NOT NULL,
	price           DOUBLE PRECISION NOT NULL,
	percent_off     INTEGER NOT NULL,
	detected_at     TIMESTAMPTZ NOT NULL,
	last_checked_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS coupon_deals (
	asin            TEXT PRIMARY KEY,
	data            JSONB NOT NULL,
	price           DOUBLE PRECISION NOT NULL,
	percent_off     INTEGER NOT NULL,
	detected_at     TIMESTAMPTZ NOT NULL,
	last_checked_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS watchlist_items (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id         TEXT NOT NULL,
	product_name    TEXT NOT NULL,
	product_url     TEXT NOT NULL,
	marketplace     TEXT NOT NULL DEFAULT 'amazon',
	target_price    DOUBLE PRECISION NOT NULL DEFAULT 0,
	initial_price   DOUBLE PRECISION NOT NULL DEFAULT 0,
	notify_on_drop  BOOLEAN NOT NULL DEFAULT true,
	last_checked_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_watchlist_items_user_id ON watchlist_items(user_id);

CREATE TABLE IF NOT EXISTS deal_filters (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id     TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	criteria    JSONB NOT NULL,
	is_active   BOOLEAN NOT NULL DEFAULT true,
	is_isolated BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_deal_filters_user_id ON deal_filters(user_id);

CREATE TABLE IF NOT EXISTS deal_alerts (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	watchlist_id     TEXT,
	deal_type        TEXT NOT NULL,
	deal_key         TEXT NOT NULL,
	product          JSONB NOT NULL,
	current_price    DOUBLE PRECISION NOT NULL,
	original_price   DOUBLE PRECISION NOT NULL,
	discount_percent INTEGER NOT NULL,
	quality_score    INTEGER NOT NULL,
	is_read          BOOLEAN NOT NULL DEFAULT false,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_deal_alerts_user_id ON deal_alerts(user_id);
CREATE INDEX IF NOT EXISTS idx_deal_alerts_user_key_created ON deal_alerts(user_id, deal_key, created_at DESC);

CREATE TABLE IF NOT EXISTS deal_scan_log (
	id               TEXT PRIMARY KEY,
	scan_type        TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'running',
	started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at     TIMESTAMPTZ,
	products_scanned INTEGER NOT NULL DEFAULT 0,
	deals_found      INTEGER NOT NULL DEFAULT 0,
	alerts_created   INTEGER NOT NULL DEFAULT 0,
	errors           JSONB
);

CREATE INDEX IF NOT EXISTS idx_deal_scan_log_started_at ON deal_scan_log(started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetCachedSearch(ctx context.Context, queryKey string) (*model.CacheEntry, error) {
	var entry model.CacheEntry
	var filtersJSON, payload []byte

	err := s.pool.QueryRow(ctx,
		`SELECT query_key, filters, payload, created_at, expires_at FROM search_cache WHERE query_key = $1 AND expires_at > now()`,
		queryKey,
	).Scan(&entry.QueryKey, &filtersJSON, &payload, &entry.CreatedAt, &entry.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get cached search %s", queryKey)
	}

	if err := json.Unmarshal(filtersJSON, &entry.Filters); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached filters")
	}
	entry.Payload = payload
	return &entry, nil
}

func (s *PostgresStore) SetCachedSearch(ctx context.Context, entry *model.CacheEntry) error {
	filtersJSON, err := json.Marshal(entry.Filters)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal cached filters")
	}

	_, err = s.pool.Exec(ctx,
		db.UpsertSQL("search_cache",
			[]string{"query_key", "filters", "payload", "created_at", "expires_at"},
			[]string{"query_key"}),
		entry.QueryKey, filtersJSON, []byte(entry.Payload), entry.CreatedAt, entry.ExpiresAt,
	)
	return eris.Wrapf(err, "postgres: set cached search %s", entry.QueryKey)
}

func (s *PostgresStore) DeleteExpiredSearches(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM search_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired searches")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) UpsertDeal(ctx context.Context, deal *model.Deal) error {
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
		return eris.Wrap(err, "postgres: marshal deal")
	}

	_, err = s.pool.Exec(ctx,
		db.UpsertSQL(table,
			[]string{"asin", "data", "price", "percent_off", "detected_at", "last_checked_at"},
			[]string{"asin"}),
		identity, data, deal.Price, deal.PercentOff, deal.DetectedAt, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert %s %s", table, identity)
}

func (s *PostgresStore) ListWatchlistItems(ctx context.Context) ([]model.WatchlistItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, product_name, product_url, marketplace, target_price, initial_price, notify_on_drop, last_checked_at FROM watchlist_items ORDER BY user_id, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list watchlist items")
	}
	defer rows.Close()

	var items []model.WatchlistItem
	for rows.Next() {
		var item model.WatchlistItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductName, &item.ProductURL,
			&item.Marketplace, &item.TargetPrice, &item.InitialPrice, &item.NotifyOnDrop,
			&item.LastCheckedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan watchlist item")
		}
		items = append(items, item)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list watchlist items")
}

func (s *PostgresStore) TouchWatchlistItem(ctx context.Context, id string, checkedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE watchlist_items SET last_checked_at = $1 WHERE id = $2`,
		checkedAt, id,
	)
	return eris.Wrapf(err, "postgres: touch watchlist item %s", id)
}

func (s *PostgresStore) ListActiveFilterRules(ctx context.Context, userID string) ([]model.FilterRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, criteria, is_active, is_isolated FROM deal_filters WHERE user_id = $1 AND is_active ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list filter rules for %s", userID)
	}
	defer rows.Close()

	var rules []model.FilterRule
	for rows.Next() {
		var rule model.FilterRule
		var criteriaJSON []byte
		if err := rows.Scan(&rule.ID, &rule.UserID, &rule.Name, &criteriaJSON,
			&rule.IsActive, &rule.IsIsolated); err != nil {
			return nil, eris.Wrap(err, "postgres: scan filter rule")
		}
		if err := json.Unmarshal(criteriaJSON, &rule.Criteria); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal criteria for rule %s", rule.ID)
		}
		rules = append(rules, rule)
	}
	return rules, eris.Wrap(rows.Err(), "postgres: list filter rules")
}

func (s *PostgresStore) ListFilterUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT user_id FROM deal_filters WHERE is_active ORDER BY user_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list filter user ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan filter user id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list filter user ids")
}

func (s *PostgresStore) CreateAlert(ctx context.Context, alert *model.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	productJSON, err := json.Marshal(alert.Product)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal alert product")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO deal_alerts (id, user_id, watchlist_id, deal_type, deal_key, product, current_price, original_price, discount_percent, quality_score, is_read, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, false, $11)`,
		alert.ID, alert.UserID, alert.WatchlistID, string(alert.DealType), alert.Product.Identity(),
		productJSON, alert.CurrentPrice, alert.OriginalPrice, alert.DiscountPercent,
		alert.QualityScore, alert.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: create alert for %s", alert.UserID)
}

func (s *PostgresStore) RecentAlertExists(ctx context.Context, userID, dealKey string, since time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM deal_alerts WHERE user_id = $1 AND deal_key = $2 AND created_at > $3)`,
		userID, dealKey, since,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: recent alert exists for %s", userID)
	}
	return exists, nil
}

func (s *PostgresStore) CreateScanRun(ctx context.Context, run *model.ScanRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = model.ScanStatusRunning

	_, err := s.pool.Exec(ctx,
		`INSERT INTO deal_scan_log (id, scan_type, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, string(run.Type), string(run.Status), run.StartedAt,
	)
	return eris.Wrap(err, "postgres: create scan run")
}

func (s *PostgresStore) CompleteScanRun(ctx context.Context, run *model.ScanRun) error {
	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal scan errors")
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE deal_scan_log SET status = $1, completed_at = $2, products_scanned = $3, deals_found = $4, alerts_created = $5, errors = $6 WHERE id = $7`,
		string(run.Status), run.CompletedAt, run.Stats.ProductsScanned, run.Stats.DealsFound,
		run.Stats.AlertsCreated, errorsJSON, run.ID,
	)
	return eris.Wrapf(err, "postgres: complete scan run %s", run.ID)
}
