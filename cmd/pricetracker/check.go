package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/pricetracker/internal/config"
	"github.com/IshaanNene/pricetracker/internal/fetcher"
	"github.com/IshaanNene/pricetracker/internal/logging"
	"github.com/IshaanNene/pricetracker/internal/storage"
	"github.com/IshaanNene/pricetracker/internal/types"
)

var roomType string

// checkCmd creates the "check" subcommand: one extraction, nothing recorded.
func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <site> <url>",
		Short: "Extract the price from one page without recording it",
		Example: `  pricetracker check amazon.in https://www.amazon.in/dp/B0XXXXXXX
  pricetracker check agoda.com https://www.agoda.com/... --room "Deluxe King Pool View"`,
		Args: cobra.ExactArgs(2),
		RunE: runCheck,
	}
	cmd.Flags().StringVar(&renderer, "engine", "", "render engine: rod, chromedp, http")
	cmd.Flags().StringVar(&roomType, "room", "", "room type to match on lodging sites")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	site, rawURL := args[0], args[1]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.ValidateURL(rawURL); err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	logger, flush, err := logging.New(cfg.Logging, verbose)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer flush()

	provider, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create render provider: %w", err)
	}
	defer provider.Close()

	registry, err := newRegistry(cfg, provider, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := registry.DispatchTarget(ctx, types.Target{ProductID: "check", Site: site, URL: rawURL, RoomType: roomType})
	if !out.OK {
		fmt.Printf("FAILED  %s (%s)\n", out.Reason, types.Kind(out.Err))
		return nil
	}
	fmt.Printf("OK      %s %.2f\n", out.Currency, out.Price)
	fmt.Printf("        tier %s, %s confidence\n", out.Tier, out.Confidence)
	if out.Label != "" {
		fmt.Printf("        label: %s\n", out.Label)
	}
	if out.Name != "" {
		fmt.Printf("        name:  %s\n", out.Name)
	}
	fmt.Printf("        raw:   %s\n", out.RawText)
	return nil
}

// historyCmd creates the "history" subcommand.
func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <product-id>",
		Short: "Print the stored price history of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, flush, err := logging.New(cfg.Logging, verbose)
			if err != nil {
				return fmt.Errorf("setup logging: %w", err)
			}
			defer flush()

			store, err := storage.NewFileStore(cfg.Storage.PricesDir, cfg.Storage.RetentionDays, logger)
			if err != nil {
				return err
			}
			h, err := store.Load(args[0])
			if err != nil {
				return err
			}
			if len(h.Prices) == 0 {
				fmt.Printf("No history for product %s\n", args[0])
				return nil
			}
			for _, e := range h.Prices {
				if e.Status == types.EntrySuccess && e.Price != nil {
					currency := types.DefaultCurrency
					if e.Currency != nil {
						currency = *e.Currency
					}
					fmt.Printf("%s  %-7s %s %12.2f  %s\n", e.Date, e.Status, currency, *e.Price, e.Label)
					continue
				}
				fmt.Printf("%s  %-7s %s\n", e.Date, e.Status, e.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pricesDir, "prices-dir", "", "price history directory (default from config)")
	return cmd
}
