package pricing

import (
	"context"
	"fmt"
	"math"

	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// DefaultCrossSellPrice is charged when the complement's live price cannot be read.
	DefaultCrossSellPrice = domain.Money(500)

	basisPoints = 10000
)

// Catalog looks up live product data.
type Catalog interface {
	Product(ctx context.Context, productType string) (*domain.Product, error)
}

// Quote is one priced extra-copy option.
type Quote struct {
	Copies int          `json:"copies"`
	Price  domain.Money `json:"price"`
}

// Engine prices upsells from one session's pricing snapshot. It has no side
// effects; every returned price is rounded up to a whole currency unit so
// the displayed and billed amounts are the same value.
type Engine struct {
	config   domain.PricingConfiguration
	catalog  Catalog
	fallback domain.Money
	logger   zerolog.Logger
}

// NewEngine creates an engine for the given pricing snapshot. catalog may be
// nil, in which case cross-sell always uses the fallback price.
func NewEngine(config domain.PricingConfiguration, catalog Catalog, fallback domain.Money, logger zerolog.Logger) *Engine {
	if fallback <= 0 {
		fallback = DefaultCrossSellPrice
	}
	return &Engine{
		config:   config,
		catalog:  catalog,
		fallback: fallback.RoundUpWhole(),
		logger:   logger.With().Str("component", "pricing").Str("product_type", config.ProductType).Logger(),
	}
}

// Configuration returns the pricing snapshot.
func (e *Engine) Configuration() domain.PricingConfiguration {
	return e.config
}

// ExtraCopyPrice returns the price of n extra copies of the composed image.
func (e *Engine) ExtraCopyPrice(n int) (domain.Money, error) {
	if n < 0 {
		return 0, fmt.Errorf("extra copy count must not be negative: %d", n)
	}
	if n == 0 {
		return 0, nil
	}

	custom := e.config.Custom
	if custom == nil {
		return (domain.Money(n) * e.config.BasePrice).RoundUpWhole(), nil
	}

	if n == 1 {
		return custom.FirstExtra.RoundUpWhole(), nil
	}

	// Price(2) and every additional unit carry the same discount factor, so
	// the sum is discounted once and rounded once.
	undiscounted := int64(custom.SecondExtra) + int64(n-2)*int64(custom.AdditionalUnit)
	scaled := undiscounted * (basisPoints - discountBasisPoints(custom.DiscountPercent))
	return domain.Units(ceilDiv(scaled, basisPoints*100)), nil
}

// QuoteTable returns prices for 1..max extra copies.
func (e *Engine) QuoteTable(max int) []Quote {
	quotes := make([]Quote, 0, max)
	for n := 1; n <= max; n++ {
		price, err := e.ExtraCopyPrice(n)
		if err != nil {
			continue
		}
		quotes = append(quotes, Quote{Copies: n, Price: price})
	}
	return quotes
}

// CrossSellCandidate returns the complementary product for the session's
// product, or false when none is configured.
func (e *Engine) CrossSellCandidate(ctx context.Context) (domain.Product, bool) {
	complement := e.config.CrossSellType
	if complement == "" || complement == e.config.ProductType {
		return domain.Product{}, false
	}
	return domain.Product{
		Type:  complement,
		Name:  e.productName(ctx, complement),
		Price: e.CrossSellPrice(ctx, e.config.ProductType),
	}, true
}

// CrossSellPrice returns the live price of the complement of originalType,
// falling back to the configured default when the lookup fails.
func (e *Engine) CrossSellPrice(ctx context.Context, originalType string) domain.Money {
	if originalType != e.config.ProductType || e.config.CrossSellType == "" {
		e.logger.Warn().
			Str("original_type", originalType).
			Msg("No cross-sell complement known, using fallback price")
		return e.fallback
	}
	if e.catalog == nil {
		return e.fallback
	}

	product, err := e.catalog.Product(ctx, e.config.CrossSellType)
	if err != nil || product == nil || product.Price <= 0 {
		e.logger.Warn().
			Err(err).
			Str("cross_sell_type", e.config.CrossSellType).
			Str("fallback", e.fallback.String()).
			Msg("Cross-sell price lookup failed, using fallback price")
		return e.fallback
	}

	return product.Price.RoundUpWhole()
}

func (e *Engine) productName(ctx context.Context, productType string) string {
	if e.catalog == nil {
		return productType
	}
	product, err := e.catalog.Product(ctx, productType)
	if err != nil || product == nil || product.Name == "" {
		return productType
	}
	return product.Name
}

// discountBasisPoints converts a percentage to basis points clamped to [0, 100%].
func discountBasisPoints(percent float64) int64 {
	bp := int64(math.Round(percent * 100))
	if bp < 0 {
		return 0
	}
	if bp > basisPoints {
		return basisPoints
	}
	return bp
}

// ceilDiv divides rounding towards positive infinity. d must be positive.
func ceilDiv(n, d int64) int64 {
	q := n / d
	if n%d > 0 {
		q++
	}
	return q
}
