package storage

import (
	"time"

	"github.com/goodtune/photokiosk/internal/domain"
)

// DateLayout is the layout of the date keys used for order indexes.
const DateLayout = "2006-01-02"

// Order is the archived record of a finalized session.
type Order struct {
	ID                string       `json:"id"`
	SessionID         string       `json:"session_id"`
	ProductType       string       `json:"product_type"`
	ProductPrice      domain.Money `json:"product_price"`
	TemplateID        string       `json:"template_id"`
	PhotoCount        int          `json:"photo_count"`
	ComposedImagePath string       `json:"composed_image_path"`
	ExtraCopies       int          `json:"extra_copies"`
	ExtraCopiesPrice  domain.Money `json:"extra_copies_price"`
	CrossSellType     string       `json:"cross_sell_type"`
	CrossSellPrice    domain.Money `json:"cross_sell_price"`
	CrossSellPhoto    string       `json:"cross_sell_photo"`
	Total             domain.Money `json:"total"`
	FreePlay          bool         `json:"free_play"`
	CreatedAt         time.Time    `json:"created_at"`
}

// Date returns the index date of the order.
func (o *Order) Date() string {
	return o.CreatedAt.Format(DateLayout)
}

// DailySales aggregates finalized orders per day.
type DailySales struct {
	Date        string       `json:"date"`
	Orders      int64        `json:"orders"`
	Revenue     domain.Money `json:"revenue"`
	ExtraCopies int64        `json:"extra_copies"`
	CrossSells  int64        `json:"cross_sells"`
}
