// Package upsell runs the post-approval offers: extra copies of the
// composed image, then a cross-sell of the complementary product.
package upsell

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/metrics"
	"github.com/goodtune/photokiosk/internal/notify"
	"github.com/goodtune/photokiosk/internal/pricing"
	"github.com/goodtune/photokiosk/internal/timeline"
	"github.com/rs/zerolog"
)

// Validator approves a total order cost without charging it.
type Validator interface {
	Validate(ctx context.Context, total domain.Money) error
}

// Config holds the upsell windows and the adjustable quantity range.
type Config struct {
	ExtraCopiesTimeout time.Duration
	CrossSellTimeout   time.Duration
	MinQuantity        int
	MaxQuantity        int
}

// DefaultConfig returns 180s windows and a 3..10 quantity range.
func DefaultConfig() Config {
	return Config{
		ExtraCopiesTimeout: 180 * time.Second,
		CrossSellTimeout:   180 * time.Second,
		MinQuantity:        3,
		MaxQuantity:        10,
	}
}

// Controller drives both upsell sub-stages for one session. It writes
// only the session's ExtraCopies and CrossSell fields. It is confined to
// its timeline like capture.Sequencer.
type Controller struct {
	tl       *timeline.Timeline
	pricing  *pricing.Engine
	ledger   Validator
	notifier notify.Notifier
	cfg      Config
	logger   zerolog.Logger
	listener func(Event)

	ctx        context.Context
	session    *domain.Session
	stage      Stage
	quantity   int
	offer      domain.Product
	photoIndex int

	extraTimer *timeline.StageTimer
	crossTimer *timeline.StageTimer
}

// NewController creates a controller pricing from engine and gating
// paid choices on ledger.
func NewController(tl *timeline.Timeline, engine *pricing.Engine, ledger Validator, notifier notify.Notifier, cfg Config, logger zerolog.Logger) *Controller {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if cfg.MinQuantity < 3 {
		cfg.MinQuantity = 3
	}
	if cfg.MaxQuantity < cfg.MinQuantity {
		cfg.MaxQuantity = cfg.MinQuantity
	}
	return &Controller{
		tl:         tl,
		pricing:    engine,
		ledger:     ledger,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger.With().Str("component", "upsell").Logger(),
		stage:      StageNone,
		quantity:   cfg.MinQuantity,
		extraTimer: timeline.NewStageTimer(tl, cfg.ExtraCopiesTimeout),
		crossTimer: timeline.NewStageTimer(tl, cfg.CrossSellTimeout),
	}
}

// SetListener sets the receiver of controller events.
func (c *Controller) SetListener(l func(Event)) {
	c.listener = l
}

// Begin enters the extra-copies offer for session. Both selections are
// reset to declined.
func (c *Controller) Begin(ctx context.Context, session *domain.Session) error {
	if c.stage != StageNone {
		return c.invalid("begin upsell")
	}

	c.ctx = ctx
	c.session = session
	session.ExtraCopies = domain.ExtraCopies{}
	session.CrossSell = domain.CrossSell{}
	c.quantity = c.cfg.MinQuantity

	c.stage = StageExtraCopies
	c.crossTimer.Stop()
	c.extraTimer.Start(c.extraCopiesExpired)

	c.logger.Info().Str("session_id", session.ID).Msg("Offering extra copies")
	c.emit(Event{Type: EventStageEntered, Stage: StageExtraCopies})
	return nil
}

// Stage returns the active sub-stage.
func (c *Controller) Stage() Stage {
	return c.stage
}

// QuoteExtraCopies prices n extra copies without recording anything.
func (c *Controller) QuoteExtraCopies(n int) (domain.Money, error) {
	if err := c.checkQuantity(n); err != nil {
		return 0, err
	}
	return c.pricing.ExtraCopyPrice(n)
}

// Options returns the extra-copy choices currently on screen: decline,
// one, two and the adjustable quantity.
func (c *Controller) Options() []pricing.Quote {
	quotes := make([]pricing.Quote, 0, 4)
	for _, n := range []int{0, 1, 2, c.quantity} {
		price, err := c.pricing.ExtraCopyPrice(n)
		if err != nil {
			continue
		}
		quotes = append(quotes, pricing.Quote{Copies: n, Price: price})
	}
	return quotes
}

// Quantity returns the adjustable quantity.
func (c *Controller) Quantity() int {
	return c.quantity
}

// IncreaseQuantity raises the adjustable quantity, clamped to the maximum.
func (c *Controller) IncreaseQuantity() int {
	if c.quantity < c.cfg.MaxQuantity {
		c.quantity++
	}
	return c.quantity
}

// DecreaseQuantity lowers the adjustable quantity, clamped to the minimum.
func (c *Controller) DecreaseQuantity() int {
	if c.quantity > c.cfg.MinQuantity {
		c.quantity--
	}
	return c.quantity
}

// ChooseExtraCopies records the customer's choice (0 declines) and moves
// on to the cross-sell offer. Paid copies are recorded only once the
// product plus the copies clears the ledger; a refused choice leaves the
// offer open. Declining is never gated.
func (c *Controller) ChooseExtraCopies(ctx context.Context, n int) error {
	if c.stage != StageExtraCopies {
		return c.invalid("choose extra copies")
	}
	if err := c.checkQuantity(n); err != nil {
		return err
	}

	if n > 0 {
		price, err := c.pricing.ExtraCopyPrice(n)
		if err != nil {
			return err
		}
		if err := c.ledger.Validate(ctx, c.session.Product.Price+price); err != nil {
			c.creditRefused(err, domain.StageUpsellExtraCopies, fmt.Sprintf("%d extra copies", n), Event{
				Type:   EventExtraCopiesRejected,
				Stage:  StageExtraCopies,
				Copies: n,
				Price:  price,
				Err:    err,
			})
			return err
		}
	}
	return c.recordExtraCopies(n, false)
}

// NextPhoto shows the next captured photo for the cross-sell, stopping at
// the last one.
func (c *Controller) NextPhoto() (int, error) {
	if c.stage != StageCrossSell {
		return 0, c.invalid("browse photos")
	}
	if c.photoIndex < len(c.session.CapturedPhotos)-1 {
		c.photoIndex++
	}
	return c.photoIndex, nil
}

// PreviousPhoto shows the previous captured photo, stopping at the first.
func (c *Controller) PreviousPhoto() (int, error) {
	if c.stage != StageCrossSell {
		return 0, c.invalid("browse photos")
	}
	if c.photoIndex > 0 {
		c.photoIndex--
	}
	return c.photoIndex, nil
}

// AcceptCrossSell commits the cross-sell with the selected photo once the
// full order total clears the ledger. A refused total leaves the session
// untouched and the offer open.
func (c *Controller) AcceptCrossSell(ctx context.Context) error {
	if c.stage != StageCrossSell {
		return c.invalid("accept cross-sell")
	}

	total := c.session.Total() + c.offer.Price
	if err := c.ledger.Validate(ctx, total); err != nil {
		c.creditRefused(err, domain.StageUpsellCrossSell, c.offer.Name, Event{
			Type:  EventCrossSellRejected,
			Stage: StageCrossSell,
			Price: c.offer.Price,
			Err:   err,
		})
		return err
	}

	var photo domain.PhotoRef
	if len(c.session.CapturedPhotos) > 0 {
		photo = c.session.CapturedPhotos[c.photoIndex]
	}
	c.session.CrossSell = domain.CrossSell{
		Accepted: true,
		Product:  c.offer,
		Price:    c.offer.Price,
		Photo:    photo,
	}

	metrics.UpsellOutcomes.WithLabelValues("cross_sell", "accepted").Inc()
	c.logger.Info().
		Str("session_id", c.session.ID).
		Str("product", c.offer.Type).
		Str("amount", c.offer.Price.String()).
		Int("photo", c.photoIndex).
		Msg("Cross-sell accepted")

	c.emit(Event{Type: EventCrossSellAccepted, Stage: StageCrossSell, Price: c.offer.Price})
	c.finish()
	return nil
}

// DeclineCrossSell records the cross-sell as declined and finishes.
func (c *Controller) DeclineCrossSell() error {
	if c.stage != StageCrossSell {
		return c.invalid("decline cross-sell")
	}
	c.declineCrossSell(false)
	return nil
}

// Offer returns the product on offer in the cross-sell stage.
func (c *Controller) Offer() (domain.Product, bool) {
	if c.stage != StageCrossSell {
		return domain.Product{}, false
	}
	return c.offer, true
}

// Status returns a snapshot of the controller for display.
func (c *Controller) Status() Status {
	s := Status{
		Stage:      c.stage,
		Quantity:   c.quantity,
		PhotoIndex: c.photoIndex,
	}
	switch c.stage {
	case StageExtraCopies:
		s.Options = c.Options()
		s.Progress = c.extraTimer.Progress()
		s.Remaining = c.extraTimer.Remaining()
	case StageCrossSell:
		offer := c.offer
		s.Offer = &offer
		s.Progress = c.crossTimer.Progress()
		s.Remaining = c.crossTimer.Remaining()
	}
	return s
}

// Cancel stops both timers and abandons the offers.
func (c *Controller) Cancel() {
	c.extraTimer.Stop()
	c.crossTimer.Stop()
	c.stage = StageNone
	c.session = nil
}

func (c *Controller) recordExtraCopies(n int, timedOut bool) error {
	price, err := c.pricing.ExtraCopyPrice(n)
	if err != nil {
		return err
	}

	c.extraTimer.Stop()
	c.session.ExtraCopies = domain.ExtraCopies{Count: n, Price: price}

	outcome := "accepted"
	switch {
	case timedOut:
		outcome = "timeout"
	case n == 0:
		outcome = "declined"
	}
	metrics.UpsellOutcomes.WithLabelValues("extra_copies", outcome).Inc()

	c.logger.Info().
		Str("session_id", c.session.ID).
		Int("copies", n).
		Str("amount", price.String()).
		Bool("timed_out", timedOut).
		Msg("Extra copies recorded")

	c.emit(Event{Type: EventExtraCopiesChosen, Stage: StageExtraCopies, Copies: n, Price: price, TimedOut: timedOut})
	c.enterCrossSell()
	return nil
}

// creditRefused notifies the customer of a shortfall. Storage failures
// are returned to the caller without a notification.
func (c *Controller) creditRefused(err error, stage domain.Stage, item string, e Event) {
	var credit *domain.InsufficientCreditError
	if !errors.As(err, &credit) {
		return
	}
	metrics.CreditRejections.WithLabelValues(string(stage)).Inc()
	c.notifier.Notify(notify.Notification{
		Title:    "Insufficient credit",
		Message:  fmt.Sprintf("Adding %s needs %s more credit.", item, credit.Shortfall()),
		Severity: notify.SeverityWarning,
	})
	c.logger.Info().
		Str("session_id", c.session.ID).
		Str("required", credit.Required.String()).
		Str("balance", credit.Balance.String()).
		Msg("Upsell refused for insufficient credit")
	c.emit(e)
}

func (c *Controller) enterCrossSell() {
	offer, ok := c.pricing.CrossSellCandidate(c.ctx)
	if !ok {
		metrics.UpsellOutcomes.WithLabelValues("cross_sell", "skipped").Inc()
		c.logger.Debug().Str("session_id", c.session.ID).Msg("No cross-sell configured, skipping")
		c.finish()
		return
	}

	c.offer = offer
	c.photoIndex = 0
	c.stage = StageCrossSell
	c.extraTimer.Stop()
	c.crossTimer.Start(c.crossSellExpired)

	c.logger.Info().
		Str("session_id", c.session.ID).
		Str("product", offer.Type).
		Str("amount", offer.Price.String()).
		Msg("Offering cross-sell")

	c.emit(Event{Type: EventStageEntered, Stage: StageCrossSell, Price: offer.Price})
}

func (c *Controller) declineCrossSell(timedOut bool) {
	c.session.CrossSell = domain.CrossSell{}

	outcome := "declined"
	if timedOut {
		outcome = "timeout"
	}
	metrics.UpsellOutcomes.WithLabelValues("cross_sell", outcome).Inc()
	c.logger.Info().Str("session_id", c.session.ID).Bool("timed_out", timedOut).Msg("Cross-sell declined")

	c.emit(Event{Type: EventCrossSellDeclined, Stage: StageCrossSell, TimedOut: timedOut})
	c.finish()
}

func (c *Controller) finish() {
	c.extraTimer.Stop()
	c.crossTimer.Stop()
	c.stage = StageDone
	c.emit(Event{Type: EventDone, Stage: StageDone})
}

func (c *Controller) extraCopiesExpired() {
	if c.stage != StageExtraCopies {
		return
	}
	if err := c.recordExtraCopies(0, true); err != nil {
		c.logger.Error().Err(err).Msg("Failed to record extra copies on timeout")
	}
}

func (c *Controller) crossSellExpired() {
	if c.stage != StageCrossSell {
		return
	}
	c.declineCrossSell(true)
}

func (c *Controller) checkQuantity(n int) error {
	switch {
	case n >= 0 && n <= 2:
		return nil
	case n >= c.cfg.MinQuantity && n <= c.cfg.MaxQuantity:
		return nil
	}
	return &domain.ValidationError{
		Field:  "extra_copies",
		Reason: fmt.Sprintf("must be 0, 1, 2 or between %d and %d", c.cfg.MinQuantity, c.cfg.MaxQuantity),
	}
}

func (c *Controller) invalid(op string) error {
	stage := domain.StageUpsellExtraCopies
	if c.stage == StageCrossSell {
		stage = domain.StageUpsellCrossSell
	}
	return &domain.InvalidStateError{Op: op, Stage: stage}
}

func (c *Controller) emit(e Event) {
	if c.listener != nil {
		c.listener(e)
	}
}
