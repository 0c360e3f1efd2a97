package main

import (
	"fmt"
	"os"
	"time"

	"github.com/goodtune/photokiosk/internal/config"
	"github.com/goodtune/photokiosk/internal/storage"
	"github.com/goodtune/photokiosk/internal/storage/memory"
	"github.com/goodtune/photokiosk/internal/storage/redis"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "photokiosk",
	Short: "photokiosk - photo booth session engine",
	Long: `photokiosk runs the customer session of a photo booth kiosk: product and
template choice, the countdown capture ritual, preview, extra-copy and
cross-sell offers, and credit-checked finalization.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to serve command when no subcommand is provided
		return runServe(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/photokiosk/config.yaml", "Path to configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStorage opens the configured store
func openStorage(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "", "redis":
		store, err := redis.Open(cfg.Storage.Redis)
		if err != nil {
			return nil, err
		}
		// Redis expires orders on its own a day after the retention window
		if cfg.Orders.RetentionDays > 0 {
			store.SetOrderTTL(time.Duration(cfg.Orders.RetentionDays+1) * 24 * time.Hour)
		}
		return store, nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
