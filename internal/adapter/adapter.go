// Package adapter defines the source adapter contract and one adapter per
// external listing provider. Adapters are pure translation layers: each one
// turns a provider-specific response into []model.Listing and keeps the
// provider's field names behind its own boundary.
package adapter

import (
	"context"
	"sync"

	"github.com/sells-group/dealscout/internal/model"
)

// SearchOptions tunes a provider search.
type SearchOptions struct {
	MaxResults   int
	Marketplaces []string
}

// Adapter fetches listings from one external provider. Search returns
// (nil, nil) when the adapter has no credentials configured; provider
// failures surface as errors and are absorbed by the aggregator, never by
// the caller.
type Adapter interface {
	Name() string
	Configured() bool
	Search(ctx context.Context, query string, opts SearchOptions) ([]model.Listing, error)
}

// Registry manages available source adapters by name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns an adapter by name, or nil if not found.
func (r *Registry) Get(name string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[name]
}

// List returns all registered adapter names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
