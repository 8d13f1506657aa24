package aggregate

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Tier is a priority group of adapters tried together before falling back
// to the next group.
type Tier struct {
	Name     string   `yaml:"name"`
	Adapters []string `yaml:"adapters"`
}

// TierConfig is the provider priority chain configuration.
type TierConfig struct {
	Tiers            []Tier `yaml:"tiers"`
	ScrapeBudgetSecs int    `yaml:"scrape_budget_secs"`
}

// ScrapeBudget returns the wall-clock budget applied to the final tier.
func (c *TierConfig) ScrapeBudget() time.Duration {
	if c.ScrapeBudgetSecs <= 0 {
		return 25 * time.Second
	}
	return time.Duration(c.ScrapeBudgetSecs) * time.Second
}

// DefaultTierConfig returns the built-in chain: broad search providers
// first, the official partner API second, the page scrape last.
func DefaultTierConfig() *TierConfig {
	return &TierConfig{
		Tiers: []Tier{
			{Name: "search", Adapters: []string{"serpapi", "rainforest"}},
			{Name: "partner", Adapters: []string{"ebay"}},
			{Name: "scrape", Adapters: []string{"browser"}},
		},
		ScrapeBudgetSecs: 25,
	}
}

// LoadTierConfig reads a tier chain from a YAML file.
func LoadTierConfig(path string) (*TierConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "aggregate: read tier config %s", path)
	}

	var wrapper struct {
		Aggregate TierConfig `yaml:"aggregate"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "aggregate: parse tier config")
	}

	cfg := &wrapper.Aggregate
	if len(cfg.Tiers) == 0 {
		return nil, eris.Errorf("aggregate: tier config %s defines no tiers", path)
	}
	return cfg, nil
}
