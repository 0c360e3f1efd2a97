package upsell

import (
	"time"

	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/pricing"
)

// Stage is the active upsell sub-stage.
type Stage string

const (
	StageNone        Stage = "none"
	StageExtraCopies Stage = "extra_copies"
	StageCrossSell   Stage = "cross_sell"
	StageDone        Stage = "done"
)

// EventType identifies a controller event.
type EventType string

const (
	EventStageEntered        EventType = "stage_entered"
	EventExtraCopiesChosen   EventType = "extra_copies_chosen"
	EventExtraCopiesRejected EventType = "extra_copies_rejected"
	EventCrossSellAccepted   EventType = "cross_sell_accepted"
	EventCrossSellDeclined   EventType = "cross_sell_declined"
	EventCrossSellRejected   EventType = "cross_sell_rejected"
	EventDone                EventType = "done"
)

// Event reports a controller transition.
type Event struct {
	Type     EventType
	Stage    Stage
	Copies   int
	Price    domain.Money
	TimedOut bool
	Err      error
}

// Status is a display snapshot of the controller.
type Status struct {
	Stage      Stage           `json:"stage"`
	Options    []pricing.Quote `json:"options,omitempty"`
	Quantity   int             `json:"quantity"`
	Offer      *domain.Product `json:"offer,omitempty"`
	PhotoIndex int             `json:"photo_index"`
	Progress   float64         `json:"progress"`
	Remaining  time.Duration   `json:"remaining"`
}
