package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/pricetracker/internal/config"
	"github.com/IshaanNene/pricetracker/internal/engine"
)

var (
	cfgFile   string
	verbose   bool
	catalog   string
	pricesDir string
	renderer  string
	noJitter  bool
	only      []string
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
			os.Exit(2)
		}
	}()

	rootCmd := &cobra.Command{
		Use:   "pricetracker",
		Short: "Track retail and hotel prices",
		Long: `pricetracker renders each product page in the catalog, extracts the
current price and appends it to a per-product history that keeps the
last 60 days.

Supported sites: amazon.in, flipkart.com, argoswatch.in, agoda.com.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runCmd creates the "run" subcommand.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape every product in the catalog once",
		Args:  cobra.NoArgs,
		RunE:  runTracker,
	}

	cmd.Flags().StringVar(&catalog, "catalog", "", "product catalog path (default from config)")
	cmd.Flags().StringVar(&pricesDir, "prices-dir", "", "price history directory (default from config)")
	cmd.Flags().StringVar(&renderer, "engine", "", "render engine: rod, chromedp, http")
	cmd.Flags().BoolVar(&noJitter, "no-jitter", false, "do not pause between products")
	cmd.Flags().StringSliceVar(&only, "only", nil, "comma-separated product ids to scrape")

	return cmd
}

// runTracker executes the run command.
func runTracker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := []engine.Option{engine.WithGuard(a.guard), engine.WithMetrics(a.metrics)}
	if noJitter {
		opts = append(opts, engine.WithoutJitter())
	}
	runner := engine.New(cfg.Run, a.registry, a.store, a.logger, opts...)

	summary, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	fmt.Printf("\nRun complete in %s: %s", summary.Elapsed.Round(time.Millisecond), summary)
	if summary.Skipped > 0 {
		fmt.Printf(", %d skipped", summary.Skipped)
	}
	fmt.Println()
	for _, c := range summary.Changes {
		fmt.Printf("   %s\n", c)
	}
	return nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pricetracker %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Run:\n")
			fmt.Printf("  Catalog:           %s\n", cfg.Run.CatalogPath)
			fmt.Printf("  Jitter:            %s - %s\n", cfg.Run.JitterMin, cfg.Run.JitterMax)
			fmt.Printf("  Diagnostics Dir:   %s\n", cfg.Run.DiagnosticsDir)
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Engine:            %s\n", cfg.Browser.Engine)
			fmt.Printf("  Headless:          %v\n", cfg.Browser.Headless)
			fmt.Printf("  Stealth:           %v\n", cfg.Browser.Stealth)
			fmt.Printf("  Default Timeout:   %s\n", cfg.Browser.DefaultTimeout)
			fmt.Printf("\nVendors:\n")
			for _, site := range sortedSites(cfg) {
				v := cfg.Vendors[site]
				fmt.Printf("  %-18s %s, selector range %s, %d price selectors\n",
					site+":", v.Kind, v.Ranges.Selector, len(v.PriceSelectors))
			}
			fmt.Printf("\nProxy:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Proxy.Enabled)
			fmt.Printf("  Rotation:          %s\n", cfg.Proxy.Rotation)
			fmt.Printf("  Count:             %d\n", len(cfg.Proxy.URLs))
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Prices Dir:        %s\n", cfg.Storage.PricesDir)
			fmt.Printf("  Retention:         %d days\n", cfg.Storage.RetentionDays)
			fmt.Printf("  MongoDB Mirror:    %v\n", cfg.Storage.Mongo.Enabled)
			fmt.Printf("  Postgres Mirror:   %v\n", cfg.Storage.Postgres.Enabled)
			fmt.Printf("\nGuard:\n")
			fmt.Printf("  Backend:           %s\n", cfg.Guard.Backend)
			fmt.Printf("  Min Interval:      %s\n", cfg.Guard.MinInterval)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			fmt.Printf("  Textfile:          %s\n", cfg.Metrics.Textfile)
			return nil
		},
	}
}

// loadConfig loads, overrides and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if catalog != "" {
		cfg.Run.CatalogPath = catalog
	}
	if pricesDir != "" {
		cfg.Storage.PricesDir = pricesDir
	}
	if renderer != "" {
		cfg.Browser.Engine = strings.ToLower(renderer)
	}
	if len(only) > 0 {
		cfg.Run.Only = only
	}
}
