package config

import "github.com/goodtune/photokiosk/internal/domain"

// Product converts the configured product to its domain form.
func (p ProductConfig) Product() domain.Product {
	name := p.Name
	if name == "" {
		name = p.Type
	}
	return domain.Product{
		Type:  p.Type,
		Name:  name,
		Price: domain.FromFloat(p.Price),
	}
}

// Pricing converts the configured product to a pricing snapshot.
func (p ProductConfig) Pricing() domain.PricingConfiguration {
	pricing := domain.PricingConfiguration{
		ProductType:   p.Type,
		BasePrice:     domain.FromFloat(p.Price),
		CrossSellType: p.CrossSell,
	}
	if cp := p.CustomPricing; cp.Enabled {
		pricing.Custom = &domain.CustomExtraCopyPricing{
			FirstExtra:      domain.FromFloat(cp.FirstExtra),
			SecondExtra:     domain.FromFloat(cp.SecondExtra),
			AdditionalUnit:  domain.FromFloat(cp.AdditionalUnit),
			DiscountPercent: cp.DiscountPercent,
		}
	}
	return pricing
}

// FreePlay reports whether credit checks are bypassed.
func (k KioskConfig) FreePlay() bool {
	return k.Mode == ModeFreePlay
}
