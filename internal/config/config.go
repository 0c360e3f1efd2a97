package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ModePaid     = "paid"
	ModeFreePlay = "free_play"
)

// Config holds the complete application configuration
type Config struct {
	Kiosk      KioskConfig      `mapstructure:"kiosk"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	Upsell     UpsellConfig     `mapstructure:"upsell"`
	Session    SessionConfig    `mapstructure:"session"`
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Assets     AssetsConfig     `mapstructure:"assets"`
	Orders     OrdersConfig     `mapstructure:"orders"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Simulation SimulationConfig `mapstructure:"simulation"`
}

// KioskConfig defines the operating mode and the product catalogue
type KioskConfig struct {
	Name              string          `mapstructure:"name"`
	Mode              string          `mapstructure:"mode"` // "paid" or "free_play"
	CurrencySymbol    string          `mapstructure:"currency_symbol"`
	CrossSellFallback float64         `mapstructure:"cross_sell_fallback_price"`
	Products          []ProductConfig `mapstructure:"products"`
}

// ProductConfig defines one sellable product and its extra-copy pricing
type ProductConfig struct {
	Type          string              `mapstructure:"type"`
	Name          string              `mapstructure:"name"`
	Price         float64             `mapstructure:"price"`
	CrossSell     string              `mapstructure:"cross_sell"` // complementary product type
	CustomPricing CustomPricingConfig `mapstructure:"custom_pricing"`
}

// CustomPricingConfig overrides flat extra-copy pricing
type CustomPricingConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	FirstExtra      float64 `mapstructure:"first_extra"`
	SecondExtra     float64 `mapstructure:"second_extra"`
	AdditionalUnit  float64 `mapstructure:"additional_unit"`
	DiscountPercent float64 `mapstructure:"discount_percent"`
}

// CaptureConfig defines the countdown ritual
type CaptureConfig struct {
	WarmUp         string `mapstructure:"warm_up"`
	CountdownFrom  int    `mapstructure:"countdown_from"`
	TickInterval   string `mapstructure:"tick_interval"`
	InterShotPause string `mapstructure:"inter_shot_pause"`
}

// UpsellConfig defines upsell windows and quantity bounds
type UpsellConfig struct {
	ExtraCopiesTimeout string `mapstructure:"extra_copies_timeout"`
	CrossSellTimeout   string `mapstructure:"cross_sell_timeout"`
	MinQuantity        int    `mapstructure:"min_quantity"`
	MaxQuantity        int    `mapstructure:"max_quantity"`
}

// SessionConfig defines idle timeouts outside capture and compose and the
// bound on catalogue and credit reads made mid-session ("0s" disables)
type SessionConfig struct {
	SelectionTimeout string `mapstructure:"selection_timeout"`
	PreviewTimeout   string `mapstructure:"preview_timeout"`
	FinalizeTimeout  string `mapstructure:"finalize_timeout"`
	StorageTimeout   string `mapstructure:"storage_timeout"`
}

// ServerConfig defines listener ports and addresses
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	APIPort     int    `mapstructure:"api_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "redis" or "memory"
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// AssetsConfig defines where template assets are resolved from
type AssetsConfig struct {
	Dir       string `mapstructure:"dir"`
	CacheSize int    `mapstructure:"cache_size"`
	CacheTTL  string `mapstructure:"cache_ttl"`
}

// OrdersConfig defines order record retention
type OrdersConfig struct {
	RetentionDays int    `mapstructure:"retention_days"`
	CleanupTime   string `mapstructure:"cleanup_time"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SimulationConfig enables the built-in camera and compositor
type SimulationConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	PhotoDir  string `mapstructure:"photo_dir"`
	OutputDir string `mapstructure:"output_dir"`
	FailEvery int    `mapstructure:"fail_every"` // every Nth shot fails, 0 = never
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("PHOTOKIOSK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration produced by defaults alone
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)

	return &cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Kiosk defaults
	v.SetDefault("kiosk.name", "photokiosk")
	v.SetDefault("kiosk.mode", ModePaid)
	v.SetDefault("kiosk.currency_symbol", "$")
	v.SetDefault("kiosk.cross_sell_fallback_price", 5.0)
	v.SetDefault("kiosk.products", []map[string]interface{}{
		{"type": "strip", "name": "Photo Strip", "price": 5.0, "cross_sell": "postcard"},
		{"type": "postcard", "name": "4x6 Postcard", "price": 8.0, "cross_sell": "strip",
			"custom_pricing": map[string]interface{}{
				"enabled":          true,
				"first_extra":      3.0,
				"second_extra":     5.0,
				"additional_unit":  1.5,
				"discount_percent": 10.0,
			}},
	})

	// Capture defaults
	v.SetDefault("capture.warm_up", "3s")
	v.SetDefault("capture.countdown_from", 3)
	v.SetDefault("capture.tick_interval", "1s")
	v.SetDefault("capture.inter_shot_pause", "1500ms")

	// Upsell defaults
	v.SetDefault("upsell.extra_copies_timeout", "180s")
	v.SetDefault("upsell.cross_sell_timeout", "180s")
	v.SetDefault("upsell.min_quantity", 3)
	v.SetDefault("upsell.max_quantity", 10)

	// Session defaults
	v.SetDefault("session.selection_timeout", "120s")
	v.SetDefault("session.preview_timeout", "60s")
	v.SetDefault("session.finalize_timeout", "300s")
	v.SetDefault("session.storage_timeout", "5s")

	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.api_port", 8080)
	v.SetDefault("server.metrics_port", 9090)

	// Storage defaults
	v.SetDefault("storage.type", "redis")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Assets defaults
	v.SetDefault("assets.dir", "/var/lib/photokiosk/templates")
	v.SetDefault("assets.cache_size", 256)
	v.SetDefault("assets.cache_ttl", "10m")

	// Orders defaults
	v.SetDefault("orders.retention_days", 90)
	v.SetDefault("orders.cleanup_time", "03:00")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Simulation defaults
	v.SetDefault("simulation.enabled", false)
	v.SetDefault("simulation.photo_dir", "/tmp/photokiosk/photos")
	v.SetDefault("simulation.output_dir", "/tmp/photokiosk/composed")
	v.SetDefault("simulation.fail_every", 0)
}

// validate validates the configuration
func validate(cfg *Config) error {
	switch cfg.Kiosk.Mode {
	case ModePaid, ModeFreePlay:
	default:
		return fmt.Errorf("invalid kiosk mode: %q (must be %s or %s)", cfg.Kiosk.Mode, ModePaid, ModeFreePlay)
	}

	if len(cfg.Kiosk.Products) == 0 {
		return fmt.Errorf("at least one product is required")
	}
	seen := make(map[string]bool, len(cfg.Kiosk.Products))
	for _, p := range cfg.Kiosk.Products {
		if p.Type == "" {
			return fmt.Errorf("product type is required")
		}
		if seen[p.Type] {
			return fmt.Errorf("duplicate product type: %s", p.Type)
		}
		seen[p.Type] = true
		if p.Price < 0 {
			return fmt.Errorf("product %s: price must not be negative", p.Type)
		}
		if cp := p.CustomPricing; cp.Enabled {
			if cp.FirstExtra < 0 || cp.SecondExtra < 0 || cp.AdditionalUnit < 0 {
				return fmt.Errorf("product %s: custom prices must not be negative", p.Type)
			}
			if cp.DiscountPercent < 0 || cp.DiscountPercent > 100 {
				return fmt.Errorf("product %s: discount_percent must be within [0, 100]", p.Type)
			}
		}
	}
	for _, p := range cfg.Kiosk.Products {
		if p.CrossSell != "" && !seen[p.CrossSell] {
			return fmt.Errorf("product %s: unknown cross_sell product %s", p.Type, p.CrossSell)
		}
	}

	if cfg.Capture.CountdownFrom < 1 {
		return fmt.Errorf("capture.countdown_from must be at least 1")
	}
	if cfg.Upsell.MinQuantity < 3 || cfg.Upsell.MaxQuantity < cfg.Upsell.MinQuantity {
		return fmt.Errorf("invalid upsell quantity range [%d, %d]", cfg.Upsell.MinQuantity, cfg.Upsell.MaxQuantity)
	}

	durations := map[string]string{
		"capture.warm_up":             cfg.Capture.WarmUp,
		"capture.tick_interval":       cfg.Capture.TickInterval,
		"capture.inter_shot_pause":    cfg.Capture.InterShotPause,
		"upsell.extra_copies_timeout": cfg.Upsell.ExtraCopiesTimeout,
		"upsell.cross_sell_timeout":   cfg.Upsell.CrossSellTimeout,
		"session.selection_timeout":   cfg.Session.SelectionTimeout,
		"session.preview_timeout":     cfg.Session.PreviewTimeout,
		"session.finalize_timeout":    cfg.Session.FinalizeTimeout,
		"session.storage_timeout":     cfg.Session.StorageTimeout,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, err)
		}
	}

	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "redis"
	}
	switch cfg.Storage.Type {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	if _, err := time.Parse("15:04", cfg.Orders.CleanupTime); err != nil {
		return fmt.Errorf("invalid orders.cleanup_time: %w", err)
	}

	return nil
}
