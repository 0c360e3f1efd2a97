package main

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/photokiosk/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the photokiosk configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		_, _ = red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(cfg, config.Default(), unknownKeys)
	}

	return nil
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	valid := make(map[string]bool, len(validKeys))
	for _, key := range validKeys {
		valid[key] = true
	}

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !valid[key] {
			unknown = append(unknown, key)
		}
	}

	return unknown, nil
}

// validKeys lists every recognised configuration key. Product entries
// are a list and surface as a single key.
var validKeys = []string{
	"kiosk.name",
	"kiosk.mode",
	"kiosk.currency_symbol",
	"kiosk.cross_sell_fallback_price",
	"kiosk.products",

	"capture.warm_up",
	"capture.countdown_from",
	"capture.tick_interval",
	"capture.inter_shot_pause",

	"upsell.extra_copies_timeout",
	"upsell.cross_sell_timeout",
	"upsell.min_quantity",
	"upsell.max_quantity",

	"session.selection_timeout",
	"session.preview_timeout",
	"session.finalize_timeout",
	"session.storage_timeout",

	"server.bind_address",
	"server.api_port",
	"server.metrics_port",

	"storage.type",
	"storage.redis.host",
	"storage.redis.port",
	"storage.redis.password",
	"storage.redis.db",
	"storage.redis.pool_size",
	"storage.redis.min_idle_conns",
	"storage.redis.dial_timeout",
	"storage.redis.read_timeout",
	"storage.redis.write_timeout",

	"assets.dir",
	"assets.cache_size",
	"assets.cache_ttl",

	"orders.retention_days",
	"orders.cleanup_time",

	"logging.level",
	"logging.format",

	"simulation.enabled",
	"simulation.photo_dir",
	"simulation.output_dir",
	"simulation.fail_every",
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(cfg, defaultCfg *config.Config, unknownKeys []string) {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	_, _ = cyan.Println("\n[kiosk]")
	dumpField("  name", cfg.Kiosk.Name, defaultCfg.Kiosk.Name, yellow, green)
	dumpField("  mode", cfg.Kiosk.Mode, defaultCfg.Kiosk.Mode, yellow, green)
	dumpField("  currency_symbol", cfg.Kiosk.CurrencySymbol, defaultCfg.Kiosk.CurrencySymbol, yellow, green)
	dumpField("  cross_sell_fallback_price", cfg.Kiosk.CrossSellFallback, defaultCfg.Kiosk.CrossSellFallback, yellow, green)
	dumpField("  products", productTypes(cfg.Kiosk.Products), productTypes(defaultCfg.Kiosk.Products), yellow, green)
	for _, p := range cfg.Kiosk.Products {
		_, _ = cyan.Printf("  [kiosk.products.%s]\n", p.Type)
		def, ok := findProduct(defaultCfg.Kiosk.Products, p.Type)
		if !ok {
			def = config.ProductConfig{Type: p.Type}
		}
		dumpField("    name", p.Name, def.Name, yellow, green)
		dumpField("    price", p.Price, def.Price, yellow, green)
		dumpField("    cross_sell", p.CrossSell, def.CrossSell, yellow, green)
		dumpField("    custom_pricing", p.CustomPricing, def.CustomPricing, yellow, green)
	}

	_, _ = cyan.Println("\n[capture]")
	dumpField("  warm_up", cfg.Capture.WarmUp, defaultCfg.Capture.WarmUp, yellow, green)
	dumpField("  countdown_from", cfg.Capture.CountdownFrom, defaultCfg.Capture.CountdownFrom, yellow, green)
	dumpField("  tick_interval", cfg.Capture.TickInterval, defaultCfg.Capture.TickInterval, yellow, green)
	dumpField("  inter_shot_pause", cfg.Capture.InterShotPause, defaultCfg.Capture.InterShotPause, yellow, green)

	_, _ = cyan.Println("\n[upsell]")
	dumpField("  extra_copies_timeout", cfg.Upsell.ExtraCopiesTimeout, defaultCfg.Upsell.ExtraCopiesTimeout, yellow, green)
	dumpField("  cross_sell_timeout", cfg.Upsell.CrossSellTimeout, defaultCfg.Upsell.CrossSellTimeout, yellow, green)
	dumpField("  min_quantity", cfg.Upsell.MinQuantity, defaultCfg.Upsell.MinQuantity, yellow, green)
	dumpField("  max_quantity", cfg.Upsell.MaxQuantity, defaultCfg.Upsell.MaxQuantity, yellow, green)

	_, _ = cyan.Println("\n[session]")
	dumpField("  selection_timeout", cfg.Session.SelectionTimeout, defaultCfg.Session.SelectionTimeout, yellow, green)
	dumpField("  preview_timeout", cfg.Session.PreviewTimeout, defaultCfg.Session.PreviewTimeout, yellow, green)
	dumpField("  finalize_timeout", cfg.Session.FinalizeTimeout, defaultCfg.Session.FinalizeTimeout, yellow, green)
	dumpField("  storage_timeout", cfg.Session.StorageTimeout, defaultCfg.Session.StorageTimeout, yellow, green)

	_, _ = cyan.Println("\n[server]")
	dumpField("  bind_address", cfg.Server.BindAddress, defaultCfg.Server.BindAddress, yellow, green)
	dumpField("  api_port", cfg.Server.APIPort, defaultCfg.Server.APIPort, yellow, green)
	dumpField("  metrics_port", cfg.Server.MetricsPort, defaultCfg.Server.MetricsPort, yellow, green)

	_, _ = cyan.Println("\n[storage]")
	dumpField("  type", cfg.Storage.Type, defaultCfg.Storage.Type, yellow, green)
	_, _ = cyan.Println("  [storage.redis]")
	dumpField("    host", cfg.Storage.Redis.Host, defaultCfg.Storage.Redis.Host, yellow, green)
	dumpField("    port", cfg.Storage.Redis.Port, defaultCfg.Storage.Redis.Port, yellow, green)
	dumpField("    password", redactPassword(cfg.Storage.Redis.Password), redactPassword(defaultCfg.Storage.Redis.Password), yellow, green)
	dumpField("    db", cfg.Storage.Redis.DB, defaultCfg.Storage.Redis.DB, yellow, green)
	dumpField("    pool_size", cfg.Storage.Redis.PoolSize, defaultCfg.Storage.Redis.PoolSize, yellow, green)
	dumpField("    min_idle_conns", cfg.Storage.Redis.MinIdleConns, defaultCfg.Storage.Redis.MinIdleConns, yellow, green)
	dumpField("    dial_timeout", cfg.Storage.Redis.DialTimeout, defaultCfg.Storage.Redis.DialTimeout, yellow, green)
	dumpField("    read_timeout", cfg.Storage.Redis.ReadTimeout, defaultCfg.Storage.Redis.ReadTimeout, yellow, green)
	dumpField("    write_timeout", cfg.Storage.Redis.WriteTimeout, defaultCfg.Storage.Redis.WriteTimeout, yellow, green)

	_, _ = cyan.Println("\n[assets]")
	dumpField("  dir", cfg.Assets.Dir, defaultCfg.Assets.Dir, yellow, green)
	dumpField("  cache_size", cfg.Assets.CacheSize, defaultCfg.Assets.CacheSize, yellow, green)
	dumpField("  cache_ttl", cfg.Assets.CacheTTL, defaultCfg.Assets.CacheTTL, yellow, green)

	_, _ = cyan.Println("\n[orders]")
	dumpField("  retention_days", cfg.Orders.RetentionDays, defaultCfg.Orders.RetentionDays, yellow, green)
	dumpField("  cleanup_time", cfg.Orders.CleanupTime, defaultCfg.Orders.CleanupTime, yellow, green)

	_, _ = cyan.Println("\n[logging]")
	dumpField("  level", cfg.Logging.Level, defaultCfg.Logging.Level, yellow, green)
	dumpField("  format", cfg.Logging.Format, defaultCfg.Logging.Format, yellow, green)

	_, _ = cyan.Println("\n[simulation]")
	dumpField("  enabled", cfg.Simulation.Enabled, defaultCfg.Simulation.Enabled, yellow, green)
	dumpField("  photo_dir", cfg.Simulation.PhotoDir, defaultCfg.Simulation.PhotoDir, yellow, green)
	dumpField("  output_dir", cfg.Simulation.OutputDir, defaultCfg.Simulation.OutputDir, yellow, green)
	dumpField("  fail_every", cfg.Simulation.FailEvery, defaultCfg.Simulation.FailEvery, yellow, green)

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)

		_, _ = cyan.Println("\n[UNKNOWN KEYS - These will be ignored!]")
		for _, key := range unknownKeys {
			_, _ = red.Printf("  %s = (unknown key - check for typos)\n", key)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
}

// dumpField prints a field with color if it differs from default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	isDefault := reflect.DeepEqual(value, defaultValue)

	valueStr := fmt.Sprintf("%v", value)

	if isDefault {
		_, _ = defaultColor.Printf("%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Printf("%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

func productTypes(products []config.ProductConfig) []string {
	types := make([]string, 0, len(products))
	for _, p := range products {
		types = append(types, p.Type)
	}
	return types
}

func findProduct(products []config.ProductConfig, productType string) (config.ProductConfig, bool) {
	for _, p := range products {
		if p.Type == productType {
			return p, true
		}
	}
	return config.ProductConfig{}, false
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}
