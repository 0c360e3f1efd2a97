package domain

import (
	"time"
)

// Product is a sellable kiosk product.
type Product struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Price Money  `json:"price"`
}

// Slot is a photo position inside a template.
type Slot struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Template is a print layout.
type Template struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ProductType     string `json:"product_type"`
	PhotoCount      int    `json:"photo_count"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Slots           []Slot `json:"slots"`
	PreviewAsset    string `json:"preview_asset"`
	BackgroundAsset string `json:"background_asset"`
}

// PhotoRef is an opaque reference to a captured photo.
type PhotoRef struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
}

// ExtraCopies is the extra-copy upsell selection.
type ExtraCopies struct {
	Count int   `json:"count"`
	Price Money `json:"price"`
}

// CrossSell is the cross-sell upsell selection.
type CrossSell struct {
	Accepted bool     `json:"accepted"`
	Product  Product  `json:"product"`
	Price    Money    `json:"price"`
	Photo    PhotoRef `json:"photo"`
}

// ComposeResult is what the compositor reports for a compose request.
type ComposeResult struct {
	Success      bool   `json:"success"`
	OutputPath   string `json:"output_path"`
	PreviewImage string `json:"preview_image"`
	Message      string `json:"message"`
}

// Session is one customer transaction from product choice to finalize.
type Session struct {
	ID                string               `json:"id"`
	StartedAt         time.Time            `json:"started_at"`
	Stage             Stage                `json:"stage"`
	Product           Product              `json:"product"`
	Pricing           PricingConfiguration `json:"pricing"`
	Template          *Template            `json:"template,omitempty"`
	CapturedPhotos    []PhotoRef           `json:"captured_photos"`
	ComposedImagePath string               `json:"composed_image_path"`
	PreviewImage      string               `json:"preview_image"`
	ExtraCopies       ExtraCopies          `json:"extra_copies"`
	CrossSell         CrossSell            `json:"cross_sell"`
	FinalizedAt       *time.Time           `json:"finalized_at,omitempty"`
}

// Total is the amount owed for the session.
func (s *Session) Total() Money {
	total := s.Product.Price + s.ExtraCopies.Price
	if s.CrossSell.Accepted {
		total += s.CrossSell.Price
	}
	return total
}

// PhotoPaths returns the captured photo paths in shot order.
func (s *Session) PhotoPaths() []string {
	paths := make([]string, len(s.CapturedPhotos))
	for i, p := range s.CapturedPhotos {
		paths[i] = p.Path
	}
	return paths
}

// RequiredPhotos returns the template's photo count, or 0 without a template.
func (s *Session) RequiredPhotos() int {
	if s.Template == nil {
		return 0
	}
	return s.Template.PhotoCount
}

// ClearCapture drops captured photos and the composed image.
func (s *Session) ClearCapture() {
	s.CapturedPhotos = nil
	s.ComposedImagePath = ""
	s.PreviewImage = ""
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *Session) Clone() Session {
	c := *s
	if s.Template != nil {
		t := *s.Template
		t.Slots = append([]Slot(nil), s.Template.Slots...)
		c.Template = &t
	}
	c.CapturedPhotos = append([]PhotoRef(nil), s.CapturedPhotos...)
	if s.Pricing.Custom != nil {
		custom := *s.Pricing.Custom
		c.Pricing.Custom = &custom
	}
	if s.FinalizedAt != nil {
		at := *s.FinalizedAt
		c.FinalizedAt = &at
	}
	return c
}
