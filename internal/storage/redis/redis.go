package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/photokiosk/internal/config"
	"github.com/goodtune/photokiosk/internal/storage"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "photokiosk:"

// Store implements the storage.Store interface using Redis
type Store struct {
	client        *redis.Client
	settingsStore *settingsStore
	orderStore    *orderStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	// Parse timeouts
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Host may already carry the port
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{
		client:        client,
		settingsStore: &settingsStore{client: client},
		orderStore:    &orderStore{client: client},
	}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// SetOrderTTL makes recorded orders expire after ttl; zero keeps them
// until DeleteOrdersBefore removes them
func (s *Store) SetOrderTTL(ttl time.Duration) {
	s.orderStore.ttl = ttl
}

// Settings returns the SettingsStore implementation
func (s *Store) Settings() storage.SettingsStore {
	return s.settingsStore
}

// Orders returns the OrderStore implementation
func (s *Store) Orders() storage.OrderStore {
	return s.orderStore
}

func creditKey() string {
	return keyPrefix + "credit"
}

func productKey(productType string) string {
	return fmt.Sprintf("%sproduct:%s", keyPrefix, productType)
}

func productsSetKey() string {
	return keyPrefix + "products"
}

func pricingKey(productType string) string {
	return fmt.Sprintf("%spricing:%s", keyPrefix, productType)
}

func orderKey(id string) string {
	return fmt.Sprintf("%sorder:%s", keyPrefix, id)
}

func orderIndexKey(date string) string {
	return fmt.Sprintf("%sorders:index:%s", keyPrefix, date)
}

func dailySalesKey(date string) string {
	return fmt.Sprintf("%ssales:daily:%s", keyPrefix, date)
}
