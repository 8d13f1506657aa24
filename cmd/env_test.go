package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealscout/internal/adapter"
	"github.com/sells-group/dealscout/internal/aggregate"
	"github.com/sells-group/dealscout/internal/config"
)

// Not parallel: initEngine reads the package-level cfg.
func TestInitEngine_NoCredentialsDisablesAllSources(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "dealscout.db"),
		},
	}

	env, err := initEngine(context.Background())
	require.NoError(t, err)
	defer env.Close()

	// Every provider is credential-less, so no adapter may be consulted:
	// the aggregation resolves locally instead of firing doomed requests.
	res, err := env.Aggregator.Aggregate(context.Background(), "widget", adapter.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Listings)
	assert.Empty(t, res.SourcesUsed)
	assert.Equal(t, aggregate.ReasonAllSourcesFailed, res.Reason)
}
