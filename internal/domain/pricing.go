package domain

// PricingConfiguration is the per-product pricing snapshot used for one
// session. A nil Custom means flat extra-copy pricing at BasePrice.
type PricingConfiguration struct {
	ProductType   string                  `json:"product_type"`
	BasePrice     Money                   `json:"base_price"`
	Custom        *CustomExtraCopyPricing `json:"custom,omitempty"`
	CrossSellType string                  `json:"cross_sell_type,omitempty"`
}

// CustomExtraCopyPricing is a configured extra-copy price table.
type CustomExtraCopyPricing struct {
	FirstExtra      Money   `json:"first_extra"`
	SecondExtra     Money   `json:"second_extra"`
	AdditionalUnit  Money   `json:"additional_unit"`
	DiscountPercent float64 `json:"discount_percent"`
}
