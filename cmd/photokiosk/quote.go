package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/goodtune/photokiosk/internal/config"
	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/pricing"
	"github.com/goodtune/photokiosk/internal/storage/memory"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var quoteMax int

var quoteCmd = &cobra.Command{
	Use:   "quote PRODUCT",
	Short: "Show upsell prices for a product",
	Long:  `Show the extra-copy price table and the cross-sell offer the kiosk would present for a product.`,
	Example: `  photokiosk -c config.yaml quote strip
  photokiosk quote postcard --max 6`,
	Args: cobra.ExactArgs(1),
	RunE: runQuote,
}

func init() {
	quoteCmd.Flags().IntVar(&quoteMax, "max", 0, "Largest quantity to quote (defaults to upsell.max_quantity)")
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	productType := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for quote mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	// Quotes come from the configured catalogue, not live storage
	ctx := context.Background()
	catalog := memory.New().Settings()
	if err := seedCatalog(ctx, catalog, cfg.Kiosk.Products); err != nil {
		return fmt.Errorf("failed to load catalogue: %w", err)
	}

	product, err := catalog.Product(ctx, productType)
	if err != nil {
		return fmt.Errorf("unknown product %q", productType)
	}
	snapshot, err := catalog.GetPricing(ctx, productType)
	if err != nil {
		return fmt.Errorf("no pricing for product %q: %w", productType, err)
	}

	limit := quoteMax
	if limit <= 0 {
		limit = cfg.Upsell.MaxQuantity
	}

	engine := pricing.NewEngine(*snapshot, catalog, domain.FromFloat(cfg.Kiosk.CrossSellFallback), logger)
	printQuote(ctx, cfg.Kiosk.CurrencySymbol, *product, engine, limit)

	return nil
}

func printQuote(ctx context.Context, symbol string, product domain.Product, engine *pricing.Engine, limit int) {
	snapshot := engine.Configuration()
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	_, _ = cyan.Printf("\n%s (%s)\n", product.Name, product.Type)
	fmt.Printf("  Base price:  %s\n", product.Price.Format(symbol))
	if snapshot.Custom != nil {
		c := snapshot.Custom
		fmt.Printf("  Pricing:     custom (first %s, second %s, then %s each, %.0f%% off)\n",
			c.FirstExtra.Format(symbol), c.SecondExtra.Format(symbol), c.AdditionalUnit.Format(symbol), c.DiscountPercent)
	} else {
		fmt.Println("  Pricing:     flat")
	}

	_, _ = cyan.Println("\nExtra copies")
	for _, q := range engine.QuoteTable(limit) {
		_, _ = green.Printf("  %2d  %s\n", q.Copies, q.Price.Format(symbol))
	}

	_, _ = cyan.Println("\nCross-sell")
	candidate, ok := engine.CrossSellCandidate(ctx)
	if !ok {
		_, _ = yellow.Println("  none")
		return
	}
	_, _ = green.Printf("  %s (%s)  %s\n", candidate.Name, candidate.Type, candidate.Price.Format(symbol))
}
