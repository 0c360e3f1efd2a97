package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/goodtune/photokiosk/internal/config"
	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/storage"
	"github.com/spf13/cobra"
)

var creditCmd = &cobra.Command{
	Use:   "credit",
	Short: "Inspect and adjust the kiosk credit balance",
	Long:  `Inspect and adjust the credit balance held in storage. Amounts are in currency units, e.g. 12.50.`,
}

var creditShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current balance",
	Args:  cobra.NoArgs,
	RunE:  runCreditShow,
}

var creditSetCmd = &cobra.Command{
	Use:     "set AMOUNT",
	Short:   "Set the balance",
	Example: `  photokiosk -c config.yaml credit set 20`,
	Args:    cobra.ExactArgs(1),
	RunE:    runCreditSet,
}

var creditAddCmd = &cobra.Command{
	Use:     "add AMOUNT",
	Short:   "Add to the balance",
	Example: `  photokiosk credit add 5.00`,
	Args:    cobra.ExactArgs(1),
	RunE:    runCreditAdd,
}

func init() {
	creditCmd.AddCommand(creditShowCmd)
	creditCmd.AddCommand(creditSetCmd)
	creditCmd.AddCommand(creditAddCmd)
	rootCmd.AddCommand(creditCmd)
}

func runCreditShow(cmd *cobra.Command, args []string) error {
	return withSettings(func(ctx context.Context, cfg *config.Config, settings storage.SettingsStore) error {
		balance, err := settings.GetCredit(ctx)
		if err != nil {
			return fmt.Errorf("failed to read balance: %w", err)
		}
		printBalance(cfg, balance)
		return nil
	})
}

func runCreditSet(cmd *cobra.Command, args []string) error {
	amount, err := parseAmount(args[0])
	if err != nil {
		return err
	}
	if amount < 0 {
		return fmt.Errorf("balance must not be negative")
	}

	return withSettings(func(ctx context.Context, cfg *config.Config, settings storage.SettingsStore) error {
		if err := settings.SetCredit(ctx, amount); err != nil {
			return fmt.Errorf("failed to set balance: %w", err)
		}
		printBalance(cfg, amount)
		return nil
	})
}

func runCreditAdd(cmd *cobra.Command, args []string) error {
	amount, err := parseAmount(args[0])
	if err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	return withSettings(func(ctx context.Context, cfg *config.Config, settings storage.SettingsStore) error {
		balance, err := settings.AddCredit(ctx, amount)
		if err != nil {
			return fmt.Errorf("failed to add credit: %w", err)
		}
		printBalance(cfg, balance)
		return nil
	})
}

// withSettings loads configuration, opens storage and runs f
func withSettings(f func(ctx context.Context, cfg *config.Config, settings storage.SettingsStore) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	return f(context.Background(), cfg, store.Settings())
}

func parseAmount(s string) (domain.Money, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount: %s", s)
	}
	return domain.FromFloat(f), nil
}

func printBalance(cfg *config.Config, balance domain.Money) {
	green := color.New(color.FgGreen, color.Bold)
	_, _ = green.Printf("Balance: %s\n", balance.Format(cfg.Kiosk.CurrencySymbol))
	if cfg.Kiosk.FreePlay() {
		yellow := color.New(color.FgYellow)
		_, _ = yellow.Println("Kiosk is in free-play mode; the balance is not charged")
	}
}
