package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/goodtune/photokiosk/internal/config"
	"github.com/goodtune/photokiosk/internal/orders"
	"github.com/goodtune/photokiosk/internal/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var ordersDate string

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Inspect recorded orders",
	Long:  `List recorded orders, show daily sales and prune orders past the retention window.`,
}

var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List orders for a day",
	Example: `  photokiosk orders list
  photokiosk orders list --date 2026-04-01`,
	Args: cobra.NoArgs,
	RunE: runOrdersList,
}

var ordersSalesCmd = &cobra.Command{
	Use:   "sales",
	Short: "Show sales totals for a day",
	Args:  cobra.NoArgs,
	RunE:  runOrdersSales,
}

var ordersPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete orders older than orders.retention_days",
	Args:  cobra.NoArgs,
	RunE:  runOrdersPrune,
}

func init() {
	ordersListCmd.Flags().StringVar(&ordersDate, "date", "", "Day to show (YYYY-MM-DD) - defaults to today")
	ordersSalesCmd.Flags().StringVar(&ordersDate, "date", "", "Day to show (YYYY-MM-DD) - defaults to today")

	ordersCmd.AddCommand(ordersListCmd)
	ordersCmd.AddCommand(ordersSalesCmd)
	ordersCmd.AddCommand(ordersPruneCmd)
	rootCmd.AddCommand(ordersCmd)
}

func runOrdersList(cmd *cobra.Command, args []string) error {
	return withOrders(func(ctx context.Context, cfg *config.Config, store storage.OrderStore, logger zerolog.Logger) error {
		list, err := orders.NewRecorder(store, cfg.Kiosk.FreePlay(), logger).List(ctx, ordersDate)
		if err != nil {
			return fmt.Errorf("failed to list orders: %w", err)
		}

		cyan := color.New(color.FgCyan, color.Bold)
		yellow := color.New(color.FgYellow)
		if len(list) == 0 {
			_, _ = yellow.Println("No orders")
			return nil
		}

		symbol := cfg.Kiosk.CurrencySymbol
		for _, o := range list {
			_, _ = cyan.Printf("%s  %s\n", o.CreatedAt.Format("15:04:05"), o.ID)
			fmt.Printf("  product:     %s %s\n", o.ProductType, o.ProductPrice.Format(symbol))
			if o.ExtraCopies > 0 {
				fmt.Printf("  extra:       %d copies %s\n", o.ExtraCopies, o.ExtraCopiesPrice.Format(symbol))
			}
			if o.CrossSellType != "" {
				fmt.Printf("  cross-sell:  %s %s\n", o.CrossSellType, o.CrossSellPrice.Format(symbol))
			}
			total := o.Total.Format(symbol)
			if o.FreePlay {
				total += " (free play)"
			}
			fmt.Printf("  total:       %s\n", total)
		}
		return nil
	})
}

func runOrdersSales(cmd *cobra.Command, args []string) error {
	return withOrders(func(ctx context.Context, cfg *config.Config, store storage.OrderStore, logger zerolog.Logger) error {
		sales, err := orders.NewRecorder(store, cfg.Kiosk.FreePlay(), logger).Sales(ctx, ordersDate)
		if err != nil {
			return fmt.Errorf("failed to read sales: %w", err)
		}

		cyan := color.New(color.FgCyan, color.Bold)
		_, _ = cyan.Printf("Sales for %s\n", sales.Date)
		fmt.Printf("  orders:       %d\n", sales.Orders)
		fmt.Printf("  revenue:      %s\n", sales.Revenue.Format(cfg.Kiosk.CurrencySymbol))
		fmt.Printf("  extra copies: %d\n", sales.ExtraCopies)
		fmt.Printf("  cross-sells:  %d\n", sales.CrossSells)
		return nil
	})
}

func runOrdersPrune(cmd *cobra.Command, args []string) error {
	return withOrders(func(ctx context.Context, cfg *config.Config, store storage.OrderStore, logger zerolog.Logger) error {
		scheduler, err := orders.NewRetentionScheduler(store, cfg.Orders.RetentionDays, cfg.Orders.CleanupTime, logger)
		if err != nil {
			return err
		}

		deleted, err := scheduler.Prune(ctx)
		if err != nil {
			return fmt.Errorf("failed to prune orders: %w", err)
		}

		green := color.New(color.FgGreen, color.Bold)
		_, _ = green.Printf("Deleted %d order(s) before %s\n", deleted, scheduler.CutoffDate())
		return nil
	})
}

// withOrders loads configuration, opens storage and runs f with a quiet logger
func withOrders(f func(ctx context.Context, cfg *config.Config, store storage.OrderStore, logger zerolog.Logger) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	store, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	return f(context.Background(), cfg, store.Orders(), logger)
}
