package config

import (
	"time"

	"github.com/IshaanNene/pricetracker/internal/types"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for the price tracker.
type Config struct {
	Run     RunConfig               `mapstructure:"run"     yaml:"run"`
	Browser BrowserConfig           `mapstructure:"browser" yaml:"browser"`
	Proxy   ProxyConfig             `mapstructure:"proxy"   yaml:"proxy"`
	Vendors map[string]VendorConfig `mapstructure:"vendors" yaml:"vendors"`
	Storage StorageConfig           `mapstructure:"storage" yaml:"storage"`
	Guard   GuardConfig             `mapstructure:"guard"   yaml:"guard"`
	Logging LoggingConfig           `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig           `mapstructure:"metrics" yaml:"metrics"`
}

// RunConfig controls one pass over the catalog.
type RunConfig struct {
	CatalogPath    string        `mapstructure:"catalog_path"    yaml:"catalog_path"`
	JitterMin      time.Duration `mapstructure:"jitter_min"      yaml:"jitter_min"`
	JitterMax      time.Duration `mapstructure:"jitter_max"      yaml:"jitter_max"`
	DiagnosticsDir string        `mapstructure:"diagnostics_dir" yaml:"diagnostics_dir"`
	Only           []string      `mapstructure:"only"            yaml:"only"`
}

// BrowserConfig controls the render engine shared by all vendors.
type BrowserConfig struct {
	Engine         string        `mapstructure:"engine"          yaml:"engine"` // rod, chromedp, http
	Headless       bool          `mapstructure:"headless"        yaml:"headless"`
	Stealth        bool          `mapstructure:"stealth"         yaml:"stealth"`
	NoSandbox      bool          `mapstructure:"no_sandbox"      yaml:"no_sandbox"`
	BinPath        string        `mapstructure:"bin_path"        yaml:"bin_path"`
	UserDataDir    string        `mapstructure:"user_data_dir"   yaml:"user_data_dir"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	UserAgent      string        `mapstructure:"user_agent"      yaml:"user_agent"`
	MaxBodySize    int64         `mapstructure:"max_body_size"   yaml:"max_body_size"`
}

// ProxyConfig controls proxy rotation for browser launches and HTTP loads.
type ProxyConfig struct {
	Enabled  bool     `mapstructure:"enabled"  yaml:"enabled"`
	Rotation string   `mapstructure:"rotation" yaml:"rotation"`
	URLs     []string `mapstructure:"urls"     yaml:"urls"`
}

// RenderConfig is the per-vendor page load profile.
type RenderConfig struct {
	UserAgent      string            `mapstructure:"user_agent"      yaml:"user_agent"`
	ViewportWidth  int               `mapstructure:"viewport_width"  yaml:"viewport_width"`
	ViewportHeight int               `mapstructure:"viewport_height" yaml:"viewport_height"`
	Mobile         bool              `mapstructure:"mobile"          yaml:"mobile"`
	Headers        map[string]string `mapstructure:"headers"         yaml:"headers"`
	Wait           string            `mapstructure:"wait"            yaml:"wait"` // load, stable, idle
	Timeout        time.Duration     `mapstructure:"timeout"         yaml:"timeout"`
	Settle         time.Duration     `mapstructure:"settle"          yaml:"settle"`
}

// RangeSet holds the plausibility window used by each extraction tier.
type RangeSet struct {
	Selector  types.PriceRange `mapstructure:"selector"  yaml:"selector"`
	Heuristic types.PriceRange `mapstructure:"heuristic" yaml:"heuristic"`
	Pattern   types.PriceRange `mapstructure:"pattern"   yaml:"pattern"`
	Bare      types.PriceRange `mapstructure:"bare"      yaml:"bare"`
}

// RewriteRule replaces From with To in the product URL before loading.
type RewriteRule struct {
	From string `mapstructure:"from" yaml:"from"`
	To   string `mapstructure:"to"   yaml:"to"`
}

// VendorConfig is the extraction profile for one site identifier.
type VendorConfig struct {
	Kind     string        `mapstructure:"kind"     yaml:"kind"` // retail, lodging
	Currency string        `mapstructure:"currency" yaml:"currency"`
	Render   RenderConfig  `mapstructure:"render"   yaml:"render"`
	Rewrites []RewriteRule `mapstructure:"rewrites" yaml:"rewrites"`

	PriceSelectors     []string `mapstructure:"price_selectors"     yaml:"price_selectors"`
	HeuristicSelectors []string `mapstructure:"heuristic_selectors" yaml:"heuristic_selectors"`
	Patterns           []string `mapstructure:"patterns"            yaml:"patterns"`
	Ranges             RangeSet `mapstructure:"ranges"              yaml:"ranges"`
	BlockTitleMarkers  []string `mapstructure:"block_title_markers" yaml:"block_title_markers"`
	BlockURLMarkers    []string `mapstructure:"block_url_markers"   yaml:"block_url_markers"`

	// Retail only.
	NameSelectors []string `mapstructure:"name_selectors"  yaml:"name_selectors"`
	MinNameLength int      `mapstructure:"min_name_length" yaml:"min_name_length"`
	DefaultName   string   `mapstructure:"default_name"    yaml:"default_name"`

	// Lodging only.
	RowSelectors      []string `mapstructure:"row_selectors"       yaml:"row_selectors"`
	RoomNameSelectors []string `mapstructure:"room_name_selectors" yaml:"room_name_selectors"`
	DefaultRoomType   string   `mapstructure:"default_room_type"   yaml:"default_room_type"`
	CheckInOffsetDays int      `mapstructure:"check_in_offset_days" yaml:"check_in_offset_days"`
	Nights            int      `mapstructure:"nights"              yaml:"nights"`
	MaxAncestorDepth  int      `mapstructure:"max_ancestor_depth"  yaml:"max_ancestor_depth"`
}

// StorageConfig controls history persistence.
type StorageConfig struct {
	PricesDir     string         `mapstructure:"prices_dir"     yaml:"prices_dir"`
	RetentionDays int            `mapstructure:"retention_days" yaml:"retention_days"`
	Mongo         MongoConfig    `mapstructure:"mongo"          yaml:"mongo"`
	Postgres      PostgresConfig `mapstructure:"postgres"       yaml:"postgres"`
}

// MongoConfig controls the optional MongoDB history mirror.
type MongoConfig struct {
	Enabled    bool   `mapstructure:"enabled"    yaml:"enabled"`
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// PostgresConfig controls the optional PostgreSQL history mirror.
type PostgresConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN     string `mapstructure:"dsn"     yaml:"dsn"`
	Table   string `mapstructure:"table"   yaml:"table"`
}

// GuardConfig controls the recently-scraped guard.
type GuardConfig struct {
	Backend     string         `mapstructure:"backend"      yaml:"backend"` // none, redis, memcache
	MinInterval time.Duration  `mapstructure:"min_interval" yaml:"min_interval"`
	KeyPrefix   string         `mapstructure:"key_prefix"   yaml:"key_prefix"`
	Redis       RedisConfig    `mapstructure:"redis"        yaml:"redis"`
	Memcache    MemcacheConfig `mapstructure:"memcache"     yaml:"memcache"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"     yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db"       yaml:"db"`
}

// MemcacheConfig holds memcached server addresses.
type MemcacheConfig struct {
	Servers []string `mapstructure:"servers" yaml:"servers"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"  yaml:"enabled"`
	Port     int    `mapstructure:"port"     yaml:"port"`
	Path     string `mapstructure:"path"     yaml:"path"`
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	cfg := &Config{
		Run: RunConfig{
			CatalogPath:    "./data/products.json",
			JitterMin:      2 * time.Second,
			JitterMax:      5 * time.Second,
			DiagnosticsDir: "/tmp",
		},
		Browser: BrowserConfig{
			Engine:         "rod",
			Headless:       true,
			Stealth:        true,
			NoSandbox:      true,
			DefaultTimeout: 30 * time.Second,
			UserAgent:      desktopUA,
			MaxBodySize:    10 * 1024 * 1024, // 10MB
		},
		Proxy: ProxyConfig{
			Enabled:  false,
			Rotation: "round_robin",
		},
		Vendors: DefaultVendors(),
		Storage: StorageConfig{
			PricesDir:     "./data/prices",
			RetentionDays: 60,
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "pricetracker",
				Collection: "price_history",
			},
			Postgres: PostgresConfig{
				Table: "price_history",
			},
		},
		Guard: GuardConfig{
			Backend:     "none",
			MinInterval: 6 * time.Hour,
			KeyPrefix:   "pricetracker:scraped:",
			Redis:       RedisConfig{Addr: "localhost:6379"},
			Memcache:    MemcacheConfig{Servers: []string{"localhost:11211"}},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
	normalizeVendors(cfg)
	return cfg
}

// Vendor returns the profile configured for site.
func (c *Config) Vendor(site string) (VendorConfig, bool) {
	v, ok := c.Vendors[site]
	return v, ok
}
