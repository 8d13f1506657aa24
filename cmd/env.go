package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/dealscout/internal/adapter"
	"github.com/sells-group/dealscout/internal/aggregate"
	"github.com/sells-group/dealscout/internal/cache"
	"github.com/sells-group/dealscout/internal/detect"
	"github.com/sells-group/dealscout/internal/health"
	"github.com/sells-group/dealscout/internal/scan"
	"github.com/sells-group/dealscout/internal/store"
	"github.com/sells-group/dealscout/pkg/browserless"
	"github.com/sells-group/dealscout/pkg/ebay"
	"github.com/sells-group/dealscout/pkg/rainforest"
	"github.com/sells-group/dealscout/pkg/serpapi"
)

// engineEnv holds the initialized store, search path, and scan orchestrator
// shared by the serve/scan/search commands.
type engineEnv struct {
	Store        store.Store
	Aggregator   *aggregate.Aggregator
	Cache        *cache.ResultCache
	Orchestrator *scan.Orchestrator
}

// Close releases resources held by the environment.
func (e *engineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "dealscout.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEngine sets up the store, provider clients, adapter registry,
// aggregator, cache, and orchestrator. Callers should defer env.Close().
func initEngine(ctx context.Context) (*engineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	// Absent credentials leave the client nil so the adapter reports
	// unconfigured instead of firing doomed requests.
	var serpClient serpapi.Client
	if cfg.Serp.Key != "" {
		serpClient = serpapi.NewClient(cfg.Serp.Key, serpapi.WithBaseURL(cfg.Serp.BaseURL))
	} else {
		zap.L().Debug("DEALSCOUT_SERPAPI_KEY not set, serpapi source disabled")
	}

	var rfClient rainforest.Client
	if cfg.Rainforest.Key != "" {
		rfClient = rainforest.NewClient(cfg.Rainforest.Key, rainforest.WithBaseURL(cfg.Rainforest.BaseURL))
	} else {
		zap.L().Debug("DEALSCOUT_RAINFOREST_KEY not set, rainforest source and deal detectors disabled")
	}

	var ebayClient ebay.Client
	if cfg.Ebay.ClientID != "" && cfg.Ebay.ClientSecret != "" {
		var ebayOpts []ebay.Option
		if cfg.Ebay.Marketplace != "" {
			ebayOpts = append(ebayOpts, ebay.WithMarketplace(cfg.Ebay.Marketplace))
		}
		if cfg.Ebay.Sandbox {
			ebayOpts = append(ebayOpts,
				ebay.WithBaseURL("https://api.sandbox.ebay.com"),
				ebay.WithTokenURL("https://api.sandbox.ebay.com/identity/v1/oauth2/token"))
		}
		ebayClient = ebay.NewClient(cfg.Ebay.ClientID, cfg.Ebay.ClientSecret, ebayOpts...)
	} else {
		zap.L().Debug("DEALSCOUT_EBAY_CLIENT_ID/CLIENT_SECRET not set, ebay source disabled")
	}

	var browserClient browserless.Client
	if cfg.Browser.WebsocketURL != "" {
		browserClient = browserless.NewClient(cfg.Browser.WebsocketURL,
			browserless.WithTimeout(time.Duration(cfg.Browser.TimeoutSecs)*time.Second))
	} else {
		zap.L().Debug("DEALSCOUT_BROWSER_WEBSOCKET_URL not set, scrape tier disabled")
	}

	registry := adapter.NewRegistry()
	registry.Register(adapter.NewSerp(serpClient, "us"))
	registry.Register(adapter.NewRainforest(rfClient, cfg.Rainforest.Domain))
	registry.Register(adapter.NewEbay(ebayClient))
	registry.Register(adapter.NewBrowser(browserClient, cfg.Rainforest.Domain))

	tierCfg := aggregate.DefaultTierConfig()
	if cfg.Aggregate.TiersFile != "" {
		tierCfg, err = aggregate.LoadTierConfig(cfg.Aggregate.TiersFile)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load tier config")
		}
	}
	if cfg.Aggregate.ScrapeBudgetSecs > 0 {
		tierCfg.ScrapeBudgetSecs = cfg.Aggregate.ScrapeBudgetSecs
	}

	agg := aggregate.New(registry, tierCfg,
		aggregate.WithBreakers(health.NewBreakerSet(health.DefaultBreakerConfig())))
	resultCache := cache.New(st, agg, time.Duration(cfg.Cache.TTLMinutes)*time.Minute)

	orch := scan.New(st, resultCache,
		detect.NewWarehouse(rfClient, cfg.Rainforest.Domain),
		detect.NewLightning(rfClient, cfg.Rainforest.Domain),
		detect.NewCoupon(rfClient, cfg.Rainforest.Domain),
		scan.Options{
			Categories:  cfg.Scan.DealCategories,
			AlertWindow: time.Duration(cfg.Scan.AlertWindowMins) * time.Minute,
			UserRate:    rate.Limit(cfg.Scan.UserRatePerMin / 60.0),
			UserBurst:   cfg.Scan.UserBurst,
			MaxItems:    cfg.Scan.MaxItemsPerScan,
		})

	return &engineEnv{
		Store:        st,
		Aggregator:   agg,
		Cache:        resultCache,
		Orchestrator: orch,
	}, nil
}
