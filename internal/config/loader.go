package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
// A .env file in the working directory is loaded into the environment first.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := DefaultConfig()

	// Vendor keys are host names, so "." cannot be the key delimiter.
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelim))
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("PRICETRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelim, "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("pricetracker")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".pricetracker"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	normalizeVendors(cfg)

	return cfg, nil
}

const keyDelim = "::"

// setDefaults registers default values in viper so env overrides resolve.
func setDefaults(v *viper.Viper, cfg *Config) {
	set := func(key string, value any) {
		v.SetDefault(strings.ReplaceAll(key, ".", keyDelim), value)
	}
	set("run.catalog_path", cfg.Run.CatalogPath)
	set("run.jitter_min", cfg.Run.JitterMin)
	set("run.jitter_max", cfg.Run.JitterMax)
	set("run.diagnostics_dir", cfg.Run.DiagnosticsDir)

	set("browser.engine", cfg.Browser.Engine)
	set("browser.headless", cfg.Browser.Headless)
	set("browser.stealth", cfg.Browser.Stealth)
	set("browser.no_sandbox", cfg.Browser.NoSandbox)
	set("browser.bin_path", cfg.Browser.BinPath)
	set("browser.user_data_dir", cfg.Browser.UserDataDir)
	set("browser.default_timeout", cfg.Browser.DefaultTimeout)
	set("browser.user_agent", cfg.Browser.UserAgent)
	set("browser.max_body_size", cfg.Browser.MaxBodySize)

	set("proxy.enabled", cfg.Proxy.Enabled)
	set("proxy.rotation", cfg.Proxy.Rotation)

	set("storage.prices_dir", cfg.Storage.PricesDir)
	set("storage.retention_days", cfg.Storage.RetentionDays)
	set("storage.mongo.enabled", cfg.Storage.Mongo.Enabled)
	set("storage.mongo.uri", cfg.Storage.Mongo.URI)
	set("storage.mongo.database", cfg.Storage.Mongo.Database)
	set("storage.mongo.collection", cfg.Storage.Mongo.Collection)
	set("storage.postgres.enabled", cfg.Storage.Postgres.Enabled)
	set("storage.postgres.dsn", cfg.Storage.Postgres.DSN)
	set("storage.postgres.table", cfg.Storage.Postgres.Table)

	set("guard.backend", cfg.Guard.Backend)
	set("guard.min_interval", cfg.Guard.MinInterval)
	set("guard.key_prefix", cfg.Guard.KeyPrefix)
	set("guard.redis.addr", cfg.Guard.Redis.Addr)
	set("guard.redis.password", cfg.Guard.Redis.Password)
	set("guard.redis.db", cfg.Guard.Redis.DB)
	set("guard.memcache.servers", cfg.Guard.Memcache.Servers)

	set("logging.level", cfg.Logging.Level)
	set("logging.format", cfg.Logging.Format)
	set("logging.output", cfg.Logging.Output)

	set("metrics.enabled", cfg.Metrics.Enabled)
	set("metrics.port", cfg.Metrics.Port)
	set("metrics.path", cfg.Metrics.Path)
	set("metrics.textfile", cfg.Metrics.Textfile)
}
