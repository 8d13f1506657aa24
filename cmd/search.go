package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/dealscout/internal/adapter"
	"github.com/sells-group/dealscout/internal/aggregate"
	"github.com/sells-group/dealscout/internal/cache"
	"github.com/sells-group/dealscout/internal/model"
)

var (
	searchMaxResults int
	searchSortBy     string
	searchNoCache    bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a one-shot aggregated product search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		req := searchRequest{
			Query: args[0],
			Filters: model.SearchFilters{
				SortBy:     searchSortBy,
				MaxResults: searchMaxResults,
			},
		}
		result, err := runSearch(ctx, env, req, !searchNoCache)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// runSearch is the shared search path for the CLI command and the HTTP
// handler. With useCache false it bypasses the result cache entirely and
// the response is not memoized.
func runSearch(ctx context.Context, env *engineEnv, req searchRequest, useCache bool) (*aggregate.Result, error) {
	if useCache {
		return env.Cache.GetOrFetch(ctx, req.Query, req.Filters)
	}

	result, err := env.Aggregator.Aggregate(ctx, req.Query, adapter.SearchOptions{
		MaxResults:   req.Filters.MaxResults,
		Marketplaces: req.Filters.Marketplaces,
	})
	if err != nil {
		return nil, err
	}
	result.Listings = cache.ApplyFilters(result.Listings, req.Filters)
	return result, nil
}

func init() {
	searchCmd.Flags().IntVar(&searchMaxResults, "max", 20, "maximum results")
	searchCmd.Flags().StringVar(&searchSortBy, "sort", "", "sort order (price_asc, price_desc, discount)")
	searchCmd.Flags().BoolVar(&searchNoCache, "no-cache", false, "bypass the result cache")
	rootCmd.AddCommand(searchCmd)
}
