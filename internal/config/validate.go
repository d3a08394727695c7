package config

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/IshaanNene/pricetracker/internal/types"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Run.CatalogPath == "" {
		return fmt.Errorf("run.catalog_path must not be empty")
	}
	if cfg.Run.JitterMin < 0 || cfg.Run.JitterMax < 0 {
		return fmt.Errorf("run.jitter_min and run.jitter_max must be >= 0")
	}
	if cfg.Run.JitterMin > cfg.Run.JitterMax {
		return fmt.Errorf("run.jitter_min (%s) must be <= run.jitter_max (%s)", cfg.Run.JitterMin, cfg.Run.JitterMax)
	}

	switch cfg.Browser.Engine {
	case "rod", "chromedp", "http":
	default:
		return fmt.Errorf("browser.engine must be 'rod', 'chromedp' or 'http', got %q", cfg.Browser.Engine)
	}
	if cfg.Browser.DefaultTimeout <= 0 {
		return fmt.Errorf("browser.default_timeout must be > 0")
	}
	if cfg.Browser.MaxBodySize <= 0 {
		return fmt.Errorf("browser.max_body_size must be > 0")
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rotation != "round_robin" && cfg.Proxy.Rotation != "random" {
			return fmt.Errorf("proxy.rotation must be 'round_robin' or 'random', got %q", cfg.Proxy.Rotation)
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
		}
	}

	sites := make([]string, 0, len(cfg.Vendors))
	for site := range cfg.Vendors {
		sites = append(sites, site)
	}
	sort.Strings(sites)
	for _, site := range sites {
		if err := validateVendor(site, cfg.Vendors[site]); err != nil {
			return err
		}
	}

	if cfg.Storage.PricesDir == "" {
		return fmt.Errorf("storage.prices_dir must not be empty")
	}
	if cfg.Storage.RetentionDays < 1 {
		return fmt.Errorf("storage.retention_days must be >= 1, got %d", cfg.Storage.RetentionDays)
	}
	if cfg.Storage.Mongo.Enabled && cfg.Storage.Mongo.URI == "" {
		return fmt.Errorf("storage.mongo.uri is required when mongo is enabled")
	}
	if cfg.Storage.Postgres.Enabled && cfg.Storage.Postgres.DSN == "" {
		return fmt.Errorf("storage.postgres.dsn is required when postgres is enabled")
	}

	switch cfg.Guard.Backend {
	case "none", "":
	case "redis":
		if cfg.Guard.Redis.Addr == "" {
			return fmt.Errorf("guard.redis.addr is required for the redis guard")
		}
	case "memcache":
		if len(cfg.Guard.Memcache.Servers) == 0 {
			return fmt.Errorf("guard.memcache.servers is required for the memcache guard")
		}
	default:
		return fmt.Errorf("guard.backend must be 'none', 'redis' or 'memcache', got %q", cfg.Guard.Backend)
	}
	if cfg.Guard.Backend != "none" && cfg.Guard.Backend != "" && cfg.Guard.MinInterval <= 0 {
		return fmt.Errorf("guard.min_interval must be > 0")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

func validateVendor(site string, v VendorConfig) error {
	if v.Kind != KindRetail && v.Kind != KindLodging {
		return fmt.Errorf("vendors.%s.kind must be %q or %q, got %q", site, KindRetail, KindLodging, v.Kind)
	}
	ranges := []struct {
		name string
		r    types.PriceRange
	}{
		{"selector", v.Ranges.Selector},
		{"heuristic", v.Ranges.Heuristic},
		{"pattern", v.Ranges.Pattern},
		{"bare", v.Ranges.Bare},
	}
	for _, rr := range ranges {
		if !rr.r.Valid() {
			return fmt.Errorf("vendors.%s.ranges.%s must satisfy 0 < min < max, got %s", site, rr.name, rr.r)
		}
	}
	// The pattern scan reads the whole page, so it gets the tightest window.
	if !v.Ranges.Pattern.Within(v.Ranges.Heuristic) || !v.Ranges.Pattern.Within(v.Ranges.Selector) {
		return fmt.Errorf("vendors.%s.ranges.pattern %s must lie within the selector and heuristic ranges", site, v.Ranges.Pattern)
	}
	if !v.Ranges.Bare.Within(v.Ranges.Pattern) {
		return fmt.Errorf("vendors.%s.ranges.bare %s must lie within the pattern range %s", site, v.Ranges.Bare, v.Ranges.Pattern)
	}
	switch v.Render.Wait {
	case "load", "stable", "idle":
	default:
		return fmt.Errorf("vendors.%s.render.wait must be load, stable or idle, got %q", site, v.Render.Wait)
	}
	if v.Render.Timeout <= 0 {
		return fmt.Errorf("vendors.%s.render.timeout must be > 0", site)
	}
	if v.Kind == KindLodging {
		if v.CheckInOffsetDays < 0 {
			return fmt.Errorf("vendors.%s.check_in_offset_days must be >= 0", site)
		}
		if v.Nights < 1 {
			return fmt.Errorf("vendors.%s.nights must be >= 1", site)
		}
		if v.MaxAncestorDepth < 1 {
			return fmt.Errorf("vendors.%s.max_ancestor_depth must be >= 1", site)
		}
	}
	return nil
}

// ValidateURL checks if a URL string is valid for scraping.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
