package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/storage"
	"github.com/redis/go-redis/v9"
)

type settingsStore struct {
	client *redis.Client
}

// GetCredit returns the current credit balance; a missing key is a zero balance
func (s *settingsStore) GetCredit(ctx context.Context) (domain.Money, error) {
	value, err := s.client.Get(ctx, creditKey()).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return domain.Money(value), nil
}

// SetCredit overwrites the credit balance
func (s *settingsStore) SetCredit(ctx context.Context, amount domain.Money) error {
	if amount < 0 {
		return fmt.Errorf("credit must not be negative: %s", amount)
	}
	return s.client.Set(ctx, creditKey(), int64(amount), 0).Err()
}

// AddCredit tops up the balance and returns the new value
func (s *settingsStore) AddCredit(ctx context.Context, amount domain.Money) (domain.Money, error) {
	if amount < 0 {
		return 0, fmt.Errorf("credit top-up must not be negative: %s", amount)
	}
	value, err := s.client.IncrBy(ctx, creditKey(), int64(amount)).Result()
	if err != nil {
		return 0, err
	}
	return domain.Money(value), nil
}

// DeductCredit atomically deducts amount, failing with ErrInsufficientFunds
// (and leaving the balance untouched) when the balance is too low
func (s *settingsStore) DeductCredit(ctx context.Context, amount domain.Money) (domain.Money, error) {
	if amount < 0 {
		return 0, fmt.Errorf("deduction must not be negative: %s", amount)
	}

	script := redis.NewScript(deductCreditScript)
	result, err := script.Run(ctx, s.client, []string{creditKey()}, int64(amount)).Int64Slice()
	if err != nil {
		return 0, err
	}
	if len(result) != 2 {
		return 0, fmt.Errorf("unexpected deduct result: %v", result)
	}

	if result[0] == 0 {
		return domain.Money(result[1]), storage.ErrInsufficientFunds
	}
	return domain.Money(result[1]), nil
}

// Product retrieves a product from the price table
func (s *settingsStore) Product(ctx context.Context, productType string) (*domain.Product, error) {
	data, err := s.client.HGetAll(ctx, productKey(productType)).Result()
	if err != nil {
		return nil, err
	}
	return parseProduct(data)
}

// ListProducts returns every product in the price table, sorted by type
func (s *settingsStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	types, err := s.client.SMembers(ctx, productsSetKey()).Result()
	if err != nil {
		return nil, err
	}

	if len(types) == 0 {
		return []domain.Product{}, nil
	}

	// Use pipeline for batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(types))

	for i, productType := range types {
		cmds[i] = pipe.HGetAll(ctx, productKey(productType))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(types))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		product, err := parseProduct(data)
		if err == nil {
			products = append(products, *product)
		}
	}

	sort.Slice(products, func(i, j int) bool { return products[i].Type < products[j].Type })

	return products, nil
}

// UpsertProduct creates or updates a product and indexes it
func (s *settingsStore) UpsertProduct(ctx context.Context, product domain.Product) error {
	if product.Type == "" {
		return fmt.Errorf("product type is required")
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, productKey(product.Type),
		"type", product.Type,
		"name", product.Name,
		"price", strconv.FormatInt(int64(product.Price), 10),
	)
	pipe.SAdd(ctx, productsSetKey(), product.Type)

	_, err := pipe.Exec(ctx)
	return err
}

// GetPricing retrieves the pricing configuration of a product
func (s *settingsStore) GetPricing(ctx context.Context, productType string) (*domain.PricingConfiguration, error) {
	data, err := s.client.HGetAll(ctx, pricingKey(productType)).Result()
	if err != nil {
		return nil, err
	}
	return parsePricing(data)
}

// UpsertPricing replaces the pricing configuration of a product
func (s *settingsStore) UpsertPricing(ctx context.Context, pricing domain.PricingConfiguration) error {
	if pricing.ProductType == "" {
		return fmt.Errorf("product type is required")
	}

	fields := []interface{}{
		"product_type", pricing.ProductType,
		"base_price", strconv.FormatInt(int64(pricing.BasePrice), 10),
		"cross_sell_type", pricing.CrossSellType,
		"custom_enabled", strconv.FormatBool(pricing.Custom != nil),
	}
	if c := pricing.Custom; c != nil {
		fields = append(fields,
			"first_extra", strconv.FormatInt(int64(c.FirstExtra), 10),
			"second_extra", strconv.FormatInt(int64(c.SecondExtra), 10),
			"additional_unit", strconv.FormatInt(int64(c.AdditionalUnit), 10),
			"discount_percent", strconv.FormatFloat(c.DiscountPercent, 'f', -1, 64),
		)
	}

	key := pricingKey(pricing.ProductType)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields...)

	_, err := pipe.Exec(ctx)
	return err
}
