package session

import (
	"context"
	"time"

	"github.com/goodtune/photokiosk/internal/capture"
	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/upsell"
)

// Catalog loads products and their pricing snapshots.
// storage.SettingsStore satisfies it.
type Catalog interface {
	Product(ctx context.Context, productType string) (*domain.Product, error)
	GetPricing(ctx context.Context, productType string) (*domain.PricingConfiguration, error)
}

// Ledger validates and charges order totals. credit.Ledger satisfies it.
type Ledger interface {
	Validate(ctx context.Context, total domain.Money) error
	Charge(ctx context.Context, total domain.Money) (domain.Money, error)
}

// Compositor renders the captured photos into the template.
type Compositor interface {
	ComposePhotos(ctx context.Context, template domain.Template, paths []string) (domain.ComposeResult, error)
}

// Fulfillment receives finalized sessions for printing.
type Fulfillment interface {
	Submit(ctx context.Context, session domain.Session) error
}

// AssetResolver checks that a template's preview and background assets
// are available.
type AssetResolver interface {
	Resolve(ctx context.Context, template domain.Template) error
}

// PhotoReleaser frees captured photos that will not be printed.
type PhotoReleaser interface {
	Release(paths []string)
}

// AbortReason explains why a session ended without an order.
type AbortReason string

const (
	ReasonCancelled AbortReason = "cancelled"
	ReasonTimedOut  AbortReason = "timed_out"
	ReasonReset     AbortReason = "reset"
)

// EventType identifies a machine event.
type EventType string

const (
	EventStageChanged   EventType = "stage_changed"
	EventCapture        EventType = "capture"
	EventUpsell         EventType = "upsell"
	EventCreditRejected EventType = "credit_rejected"
	EventCompleted      EventType = "completed"
	EventAborted        EventType = "aborted"
)

// Event is delivered to listeners after the step that produced it has
// released the timeline.
type Event struct {
	Type      EventType
	SessionID string
	From      domain.Stage
	To        domain.Stage
	Reason    AbortReason
	Capture   *capture.Event
	Upsell    *upsell.Event
	Session   *domain.Session
	Err       error
}

// Config holds the machine's timing and pricing knobs.
type Config struct {
	Capture           capture.Config
	Upsell            upsell.Config
	SelectionTimeout  time.Duration
	PreviewTimeout    time.Duration
	FinalizeTimeout   time.Duration
	CrossSellFallback domain.Money

	// StorageTimeout bounds each catalogue, credit and order call made
	// while the timeline is held.
	StorageTimeout time.Duration
}

// DefaultConfig returns the stock kiosk timings.
func DefaultConfig() Config {
	return Config{
		Capture:          capture.DefaultConfig(),
		Upsell:           upsell.DefaultConfig(),
		SelectionTimeout: 120 * time.Second,
		PreviewTimeout:   60 * time.Second,
		FinalizeTimeout:  300 * time.Second,
		StorageTimeout:   5 * time.Second,
	}
}

// TimerStatus describes the running stage timer.
type TimerStatus struct {
	Progress  float64       `json:"progress"`
	Remaining time.Duration `json:"remaining"`
}

// Status is a display snapshot of the machine.
type Status struct {
	Stage     domain.Stage         `json:"stage"`
	Session   *domain.Session      `json:"session,omitempty"`
	Total     domain.Money         `json:"total"`
	Capture   *capture.Diagnostics `json:"capture,omitempty"`
	Countdown int                  `json:"countdown,omitempty"`
	Upsell    *upsell.Status       `json:"upsell,omitempty"`
	Timer     *TimerStatus         `json:"timer,omitempty"`
	LastError string               `json:"last_error,omitempty"`
}
