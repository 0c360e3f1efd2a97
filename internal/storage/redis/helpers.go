package redis

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/storage"
)

// parseProduct converts a Redis hash to Product
func parseProduct(data map[string]string) (*domain.Product, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	price, err := strconv.ParseInt(data["price"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price: %w", err)
	}

	return &domain.Product{
		Type:  data["type"],
		Name:  data["name"],
		Price: domain.Money(price),
	}, nil
}

// parsePricing converts a Redis hash to PricingConfiguration
func parsePricing(data map[string]string) (*domain.PricingConfiguration, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	basePrice, err := strconv.ParseInt(data["base_price"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base_price: %w", err)
	}

	pricing := &domain.PricingConfiguration{
		ProductType:   data["product_type"],
		BasePrice:     domain.Money(basePrice),
		CrossSellType: data["cross_sell_type"],
	}

	enabled, err := strconv.ParseBool(data["custom_enabled"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse custom_enabled: %w", err)
	}
	if !enabled {
		return pricing, nil
	}

	custom := &domain.CustomExtraCopyPricing{}
	for field, dst := range map[string]*domain.Money{
		"first_extra":     &custom.FirstExtra,
		"second_extra":    &custom.SecondExtra,
		"additional_unit": &custom.AdditionalUnit,
	} {
		value, err := strconv.ParseInt(data[field], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", field, err)
		}
		*dst = domain.Money(value)
	}

	custom.DiscountPercent, err = strconv.ParseFloat(data["discount_percent"], 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse discount_percent: %w", err)
	}

	pricing.Custom = custom
	return pricing, nil
}

// parseDailySales converts a Redis hash to DailySales
func parseDailySales(data map[string]string) (*storage.DailySales, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	sales := &storage.DailySales{Date: data["date"]}

	var revenue int64
	for field, dst := range map[string]*int64{
		"orders":       &sales.Orders,
		"revenue":      &revenue,
		"extra_copies": &sales.ExtraCopies,
		"cross_sells":  &sales.CrossSells,
	} {
		value, err := strconv.ParseInt(data[field], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", field, err)
		}
		*dst = value
	}
	sales.Revenue = domain.Money(revenue)

	return sales, nil
}

// parseOrder decodes a stored order payload
func parseOrder(payload string) (*storage.Order, error) {
	var order storage.Order
	if err := json.Unmarshal([]byte(payload), &order); err != nil {
		return nil, fmt.Errorf("failed to decode order: %w", err)
	}
	return &order, nil
}
