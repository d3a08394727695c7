package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/IshaanNene/pricetracker/internal/config"
	"github.com/IshaanNene/pricetracker/internal/dispatch"
	"github.com/IshaanNene/pricetracker/internal/extract"
	"github.com/IshaanNene/pricetracker/internal/fetcher"
	"github.com/IshaanNene/pricetracker/internal/guard"
	"github.com/IshaanNene/pricetracker/internal/logging"
	"github.com/IshaanNene/pricetracker/internal/observability"
	"github.com/IshaanNene/pricetracker/internal/parser"
	"github.com/IshaanNene/pricetracker/internal/storage"
	"github.com/IshaanNene/pricetracker/internal/vendor"
)

// app holds the wired collaborators of one invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	flush    func()
	provider fetcher.Provider
	registry *dispatch.Registry
	store    *storage.MultiStore
	guard    guard.Guard
	metrics  *observability.Metrics
	server   *http.Server
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, flush, err := logging.New(cfg.Logging, verbose)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, flush: flush}

	a.provider, err = fetcher.New(cfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create render provider: %w", err)
	}

	a.registry, err = newRegistry(cfg, a.provider, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.store, err = storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open history store: %w", err)
	}

	a.guard, err = guard.New(cfg.Guard, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create guard: %w", err)
	}

	a.metrics = observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		a.server = a.metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}
	return a, nil
}

// Close releases everything newApp acquired, in reverse order.
func (a *app) Close() {
	if a.metrics != nil {
		if a.cfg.Metrics.Textfile != "" {
			if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
				a.logger.Error("metrics textfile", "error", err)
			}
		}
		a.metrics.Shutdown(a.server)
	}
	if a.guard != nil {
		if err := a.guard.Close(); err != nil {
			a.logger.Warn("guard close", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("history store close", "error", err)
		}
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.logger.Warn("render provider close", "error", err)
		}
	}
	a.flush()
}

// newRegistry registers a strategy for every configured vendor, all sharing
// one provider and one extraction runner.
func newRegistry(cfg *config.Config, provider fetcher.Provider, logger *slog.Logger) (*dispatch.Registry, error) {
	scanner, err := parser.NewScanner(128, logger)
	if err != nil {
		return nil, fmt.Errorf("create pattern scanner: %w", err)
	}
	r, err := dispatch.FromConfig(cfg, vendor.Deps{
		Provider:    provider,
		Runner:      extract.NewRunner(scanner, logger),
		Diagnostics: extract.NewDiagnostics(cfg.Run.DiagnosticsDir, logger),
		Browser:     cfg.Browser,
		Logger:      logger,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("register vendors: %w", err)
	}
	return r, nil
}

func sortedSites(cfg *config.Config) []string {
	sites := make([]string, 0, len(cfg.Vendors))
	for site := range cfg.Vendors {
		sites = append(sites, site)
	}
	sort.Strings(sites)
	return sites
}
