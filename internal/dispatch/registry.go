// Package dispatch routes products to the extraction strategy registered
// for their site.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/IshaanNene/pricetracker/internal/config"
	"github.com/IshaanNene/pricetracker/internal/types"
	"github.com/IshaanNene/pricetracker/internal/vendor"
)

// Registry maps site identifiers to strategies.
type Registry struct {
	strategies map[string]vendor.Strategy
	logger     *slog.Logger
	mu         sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		strategies: make(map[string]vendor.Strategy),
		logger:     logger.With("component", "dispatcher"),
	}
}

// FromConfig registers a strategy for every configured vendor.
func FromConfig(cfg *config.Config, deps vendor.Deps, logger *slog.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	sites := make([]string, 0, len(cfg.Vendors))
	for site := range cfg.Vendors {
		sites = append(sites, site)
	}
	sort.Strings(sites)

	for _, site := range sites {
		s, err := vendor.New(site, cfg.Vendors[site], deps)
		if err != nil {
			return nil, err
		}
		if err := r.Register(site, s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds the strategy for site. Registering a site twice is an error.
func (r *Registry) Register(site string, s vendor.Strategy) error {
	key := normalizeSite(site)
	if key == "" {
		return fmt.Errorf("empty site identifier")
	}
	if s == nil {
		return fmt.Errorf("nil strategy for %q", site)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[key]; exists {
		return fmt.Errorf("strategy for %q already registered", key)
	}
	r.strategies[key] = s
	r.logger.Debug("strategy registered", "site", key, "type", fmt.Sprintf("%T", s))
	return nil
}

// Get returns the strategy registered for site.
func (r *Registry) Get(site string) (vendor.Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[normalizeSite(site)]
	return s, ok
}

// Sites lists registered site identifiers in sorted order.
func (r *Registry) Sites() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.strategies))
	for site := range r.strategies {
		out = append(out, site)
	}
	sort.Strings(out)
	return out
}

// Dispatch scrapes p with the strategy registered for its site.
func (r *Registry) Dispatch(ctx context.Context, p *types.Product) types.Outcome {
	return r.DispatchTarget(ctx, types.TargetOf(p))
}

// DispatchTarget is Dispatch for a bare target.
func (r *Registry) DispatchTarget(ctx context.Context, t types.Target) types.Outcome {
	s, ok := r.Get(t.Site)
	if !ok {
		err := types.NewScrapeError(types.ErrUnsupportedSite, t.Site, t.URL, "")
		r.logger.Warn("no strategy for site", "product_id", t.ProductID, "site", t.Site)
		return types.Failure(err)
	}
	return s.Scrape(ctx, t)
}

// normalizeSite lower-cases a site identifier and drops a leading "www.".
func normalizeSite(site string) string {
	site = strings.ToLower(strings.TrimSpace(site))
	return strings.TrimPrefix(site, "www.")
}
