// Package session owns the kiosk transaction: it walks one Session from
// product choice through capture, preview and upsell to a paid order.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/goodtune/photokiosk/internal/capture"
	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/metrics"
	"github.com/goodtune/photokiosk/internal/notify"
	"github.com/goodtune/photokiosk/internal/pricing"
	"github.com/goodtune/photokiosk/internal/storage"
	"github.com/goodtune/photokiosk/internal/timeline"
	"github.com/goodtune/photokiosk/internal/upsell"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Dependencies are the collaborators injected into a Machine. Assets and
// Releaser are optional.
type Dependencies struct {
	Catalog     Catalog
	Ledger      Ledger
	Camera      capture.Camera
	Compositor  Compositor
	Fulfillment Fulfillment
	Assets      AssetResolver
	Releaser    PhotoReleaser
	Notifier    notify.Notifier
	Audio       notify.Audio
}

// Machine is the session state machine. All methods are safe for
// concurrent use; they run one at a time on the machine's timeline.
type Machine struct {
	tl        *timeline.Timeline
	deps      Dependencies
	cfg       Config
	base      zerolog.Logger
	logger    zerolog.Logger
	listeners []func(Event)

	stage   domain.Stage
	session *domain.Session
	ctx     context.Context
	cancel  context.CancelFunc

	pricing   *pricing.Engine
	sequencer *capture.Sequencer
	upsell    *upsell.Controller
	timer     *timeline.StageTimer

	composing  bool
	composeGen uint64
	lastErr    error
}

// NewMachine creates an idle machine.
func NewMachine(tl *timeline.Timeline, deps Dependencies, cfg Config, logger zerolog.Logger) (*Machine, error) {
	switch {
	case tl == nil:
		return nil, errors.New("timeline is required")
	case deps.Catalog == nil:
		return nil, errors.New("catalog is required")
	case deps.Ledger == nil:
		return nil, errors.New("ledger is required")
	case deps.Camera == nil:
		return nil, errors.New("camera is required")
	case deps.Compositor == nil:
		return nil, errors.New("compositor is required")
	case deps.Fulfillment == nil:
		return nil, errors.New("fulfillment is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Audio == nil {
		deps.Audio = notify.Nop{}
	}

	return &Machine{
		tl:     tl,
		deps:   deps,
		cfg:    cfg,
		base:   logger,
		logger: logger.With().Str("component", "session").Logger(),
		stage:  domain.StageIdle,
	}, nil
}

// AddListener registers l for every machine event. Listeners run after
// the producing step has released the timeline and may call back into
// the machine.
func (m *Machine) AddListener(l func(Event)) {
	m.tl.Run(func() { m.listeners = append(m.listeners, l) })
}

// Stage returns the current stage.
func (m *Machine) Stage() domain.Stage {
	var stage domain.Stage
	m.tl.Run(func() { stage = m.stage })
	return stage
}

// Session returns a copy of the current session, if any.
func (m *Machine) Session() (domain.Session, bool) {
	var (
		s  domain.Session
		ok bool
	)
	m.tl.Run(func() {
		if m.session != nil {
			s, ok = m.session.Clone(), true
		}
	})
	return s, ok
}

// Status returns a display snapshot.
func (m *Machine) Status() Status {
	var status Status
	m.tl.Run(func() { status = m.status() })
	return status
}

// SelectProduct chooses the product to sell, creating a session when
// none is in progress. The product can be changed until capture starts.
func (m *Machine) SelectProduct(ctx context.Context, productType string) (err error) {
	ctx, cancel := m.storageContext(ctx)
	defer cancel()
	m.tl.Run(func() { err = m.selectProduct(ctx, productType) })
	return err
}

// SelectTemplate chooses the print layout. It can be changed until
// capture starts.
func (m *Machine) SelectTemplate(ctx context.Context, template domain.Template) (err error) {
	ctx, cancel := m.storageContext(ctx)
	defer cancel()
	m.tl.Run(func() { err = m.selectTemplate(ctx, template) })
	return err
}

// BeginCapture starts the camera and the countdown sequence. Completion
// moves the session on to composing without further calls.
func (m *Machine) BeginCapture(ctx context.Context) (err error) {
	m.tl.Run(func() { err = m.beginCapture() })
	return err
}

// RetryCapture re-runs the shot that failed.
func (m *Machine) RetryCapture(ctx context.Context) (err error) {
	m.tl.Run(func() {
		if m.stage != domain.StageCapturing || m.sequencer == nil {
			err = m.invalid("retry capture")
			return
		}
		if err = m.sequencer.Retry(); err == nil {
			m.lastErr = nil
		}
	})
	return err
}

// CaptureDiagnostics describes the capture pass for operators.
func (m *Machine) CaptureDiagnostics() (d capture.Diagnostics, err error) {
	m.tl.Run(func() {
		if m.sequencer == nil {
			err = m.invalid("capture diagnostics")
			return
		}
		d = m.sequencer.Diagnostics()
	})
	return d, err
}

// OnComposed delivers a compositor result produced outside the machine.
func (m *Machine) OnComposed(result domain.ComposeResult) (err error) {
	m.tl.Run(func() {
		if m.stage != domain.StageComposing {
			err = m.invalid("deliver composition")
			return
		}
		m.composeGen++
		m.composing = false
		err = m.onComposed(result, nil)
	})
	return err
}

// RetryCompose asks the compositor again after a failure.
func (m *Machine) RetryCompose(ctx context.Context) (err error) {
	m.tl.Run(func() {
		if m.stage != domain.StageComposing || m.composing {
			err = m.invalid("retry composition")
			return
		}
		m.startCompose()
	})
	return err
}

// ApprovePhotos accepts the preview and opens the upsell offers.
func (m *Machine) ApprovePhotos() (err error) {
	m.tl.Run(func() { err = m.approvePhotos() })
	return err
}

// RequestRetake discards the photos and the composed image and captures
// again with the same template.
func (m *Machine) RequestRetake() (err error) {
	m.tl.Run(func() { err = m.requestRetake() })
	return err
}

// ChooseExtraCopies records the extra-copy choice; 0 declines. Paid
// copies the credit cannot cover are refused and the offer stays open.
func (m *Machine) ChooseExtraCopies(ctx context.Context, n int) (err error) {
	ctx, cancel := m.storageContext(ctx)
	defer cancel()
	m.tl.Run(func() {
		if m.stage != domain.StageUpsellExtraCopies {
			err = m.invalid("choose extra copies")
			return
		}
		err = m.upsell.ChooseExtraCopies(ctx, n)
	})
	return err
}

// QuoteExtraCopies prices n extra copies for display.
func (m *Machine) QuoteExtraCopies(n int) (price domain.Money, err error) {
	m.tl.Run(func() {
		if m.upsell == nil || m.stage != domain.StageUpsellExtraCopies {
			err = m.invalid("quote extra copies")
			return
		}
		price, err = m.upsell.QuoteExtraCopies(n)
	})
	return price, err
}

// IncreaseQuantity raises the adjustable extra-copy quantity.
func (m *Machine) IncreaseQuantity() (n int, err error) {
	m.tl.Run(func() {
		if m.stage != domain.StageUpsellExtraCopies {
			err = m.invalid("change quantity")
			return
		}
		n = m.upsell.IncreaseQuantity()
	})
	return n, err
}

// DecreaseQuantity lowers the adjustable extra-copy quantity.
func (m *Machine) DecreaseQuantity() (n int, err error) {
	m.tl.Run(func() {
		if m.stage != domain.StageUpsellExtraCopies {
			err = m.invalid("change quantity")
			return
		}
		n = m.upsell.DecreaseQuantity()
	})
	return n, err
}

// NextCrossSellPhoto selects the next photo for the cross-sell product.
func (m *Machine) NextCrossSellPhoto() (idx int, err error) {
	m.tl.Run(func() {
		if m.stage != domain.StageUpsellCrossSell {
			err = m.invalid("browse photos")
			return
		}
		idx, err = m.upsell.NextPhoto()
	})
	return idx, err
}

// PreviousCrossSellPhoto selects the previous photo for the cross-sell.
func (m *Machine) PreviousCrossSellPhoto() (idx int, err error) {
	m.tl.Run(func() {
		if m.stage != domain.StageUpsellCrossSell {
			err = m.invalid("browse photos")
			return
		}
		idx, err = m.upsell.PreviousPhoto()
	})
	return idx, err
}

// AcceptCrossSell adds the cross-sell product if the whole order is
// covered by credit.
func (m *Machine) AcceptCrossSell(ctx context.Context) (err error) {
	ctx, cancel := m.storageContext(ctx)
	defer cancel()
	m.tl.Run(func() {
		if m.stage != domain.StageUpsellCrossSell {
			err = m.invalid("accept cross-sell")
			return
		}
		err = m.upsell.AcceptCrossSell(ctx)
	})
	return err
}

// DeclineCrossSell declines the cross-sell offer.
func (m *Machine) DeclineCrossSell() (err error) {
	m.tl.Run(func() {
		if m.stage != domain.StageUpsellCrossSell {
			err = m.invalid("decline cross-sell")
			return
		}
		err = m.upsell.DeclineCrossSell()
	})
	return err
}

// Finalize charges the order total and hands the session to
// fulfillment. A refused charge leaves the session untouched.
func (m *Machine) Finalize(ctx context.Context) (err error) {
	ctx, cancel := m.storageContext(ctx)
	defer cancel()
	m.tl.Run(func() { err = m.finalize(ctx) })
	return err
}

// storageContext bounds storage calls made while the timeline is held so
// a stalled backend cannot freeze timers and the display.
func (m *Machine) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.StorageTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.cfg.StorageTimeout)
}

// Abort ends a live session without an order.
func (m *Machine) Abort(reason AbortReason) (err error) {
	m.tl.Run(func() {
		if !m.stage.IsLive() {
			err = m.invalid("abort")
			return
		}
		m.abort(reason)
	})
	return err
}

// Reset returns the machine to idle from any stage.
func (m *Machine) Reset() {
	m.tl.Run(func() {
		if m.stage.IsLive() {
			m.abort(ReasonReset)
		}
		m.teardown()
		m.session = nil
		m.lastErr = nil
		if m.stage != domain.StageIdle {
			m.transition(domain.StageIdle)
		}
	})
}

func (m *Machine) selectProduct(ctx context.Context, productType string) error {
	if m.stage.IsLive() && m.stage.CaptureStarted() {
		return m.invalid("select product")
	}
	if productType == "" {
		return &domain.ValidationError{Field: "product", Reason: "product type is required"}
	}

	product, err := m.deps.Catalog.Product(ctx, productType)
	if errors.Is(err, storage.ErrNotFound) {
		return &domain.ValidationError{Field: "product", Reason: fmt.Sprintf("unknown product %q", productType)}
	}
	if err != nil {
		m.internalError("Failed to load product", err)
		return fmt.Errorf("failed to load product %s: %w", productType, err)
	}

	config, err := m.deps.Catalog.GetPricing(ctx, productType)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		config = &domain.PricingConfiguration{ProductType: productType, BasePrice: product.Price}
	case err != nil:
		m.internalError("Failed to load pricing", err)
		return fmt.Errorf("failed to load pricing for %s: %w", productType, err)
	}

	selected := *product
	selected.Price = selected.Price.RoundUpWhole()
	if selected.Price < 0 {
		return &domain.ValidationError{Field: "product", Reason: "price must not be negative"}
	}

	if m.stage == domain.StageTemplateSelected {
		if tpl := m.session.Template; tpl.ProductType != "" && tpl.ProductType != productType {
			return &domain.ValidationError{
				Field:  "product",
				Reason: fmt.Sprintf("selected template %s is for %s", tpl.ID, tpl.ProductType),
			}
		}
	}

	if !m.stage.IsLive() {
		m.startSession()
	}

	m.session.Product = selected
	m.session.Pricing = *config
	m.pricing = pricing.NewEngine(*config, m.deps.Catalog, m.cfg.CrossSellFallback, m.base)

	m.logger.Info().
		Str("session_id", m.session.ID).
		Str("product", selected.Type).
		Str("amount", selected.Price.String()).
		Msg("Product selected")

	if m.stage == domain.StageIdle {
		m.transition(domain.StageProductSelected)
	}
	m.timer = m.startTimer(m.cfg.SelectionTimeout, m.selectionExpired)
	return nil
}

func (m *Machine) selectTemplate(ctx context.Context, template domain.Template) error {
	if m.stage != domain.StageProductSelected && m.stage != domain.StageTemplateSelected {
		return m.invalid("select template")
	}

	switch {
	case template.ID == "":
		return &domain.ValidationError{Field: "template", Reason: "template ID is required"}
	case template.PhotoCount <= 0:
		return &domain.ValidationError{Field: "template", Reason: "photo count must be positive"}
	case template.Width <= 0 || template.Height <= 0:
		return &domain.ValidationError{Field: "template", Reason: "dimensions must be positive"}
	case template.ProductType != "" && template.ProductType != m.session.Product.Type:
		return &domain.ValidationError{
			Field:  "template",
			Reason: fmt.Sprintf("template %s is for %s", template.ID, template.ProductType),
		}
	}

	if m.deps.Assets != nil {
		if err := m.deps.Assets.Resolve(ctx, template); err != nil {
			m.logger.Warn().Err(err).Str("template", template.ID).Msg("Template assets unavailable")
			return &domain.ValidationError{Field: "template", Reason: "template assets unavailable"}
		}
	}

	tpl := template
	tpl.Slots = append([]domain.Slot(nil), template.Slots...)
	m.session.Template = &tpl

	m.logger.Info().
		Str("session_id", m.session.ID).
		Str("template", tpl.ID).
		Int("photo_count", tpl.PhotoCount).
		Msg("Template selected")

	if m.stage == domain.StageProductSelected {
		m.transition(domain.StageTemplateSelected)
	}
	m.timer = m.startTimer(m.cfg.SelectionTimeout, m.selectionExpired)
	return nil
}

func (m *Machine) beginCapture() error {
	if m.stage != domain.StageTemplateSelected {
		return m.invalid("begin capture")
	}

	m.stopTimer()
	m.transition(domain.StageCapturing)
	return m.startSequencer()
}

func (m *Machine) approvePhotos() error {
	if m.stage != domain.StagePreviewPending {
		return m.invalid("approve photos")
	}

	m.stopTimer()
	m.logger.Info().Str("session_id", m.session.ID).Msg("Photos approved")

	m.upsell = upsell.NewController(m.tl, m.pricing, m.deps.Ledger, m.deps.Notifier, m.cfg.Upsell, m.base)
	m.upsell.SetListener(m.onUpsellEvent)

	m.transition(domain.StageUpsellExtraCopies)
	return m.upsell.Begin(m.ctx, m.session)
}

func (m *Machine) requestRetake() error {
	if m.stage != domain.StagePreviewPending {
		return m.invalid("request retake")
	}

	m.stopTimer()
	m.releasePhotos()
	m.session.ClearCapture()

	m.logger.Info().Str("session_id", m.session.ID).Msg("Retake requested")

	m.transition(domain.StageCapturing)
	return m.startSequencer()
}

func (m *Machine) finalize(ctx context.Context) error {
	if m.stage != domain.StageFinalizing {
		return m.invalid("finalize")
	}

	total := m.session.Total()
	if err := m.deps.Ledger.Validate(ctx, total); err != nil {
		return m.rejectCharge(err)
	}

	remaining, err := m.deps.Ledger.Charge(ctx, total)
	if err != nil {
		return m.rejectCharge(err)
	}

	m.stopTimer()
	now := m.tl.Now()
	m.session.FinalizedAt = &now

	m.logger.Info().
		Str("session_id", m.session.ID).
		Str("amount", total.String()).
		Str("remaining", remaining.String()).
		Msg("Session finalized")

	if err := m.deps.Fulfillment.Submit(ctx, m.session.Clone()); err != nil {
		// Credit is already charged; staff must reprint from the order log
		m.internalError("Failed to submit order", err)
	}

	m.deps.Audio.Cue(notify.CueSuccess)
	metrics.RevenueTotal.WithLabelValues(m.session.Product.Type).Add(total.Float())

	m.transition(domain.StageCompleted)
	m.finish("completed")

	finalized := m.session.Clone()
	m.emit(Event{Type: EventCompleted, SessionID: finalized.ID, To: domain.StageCompleted, Session: &finalized})
	return nil
}

func (m *Machine) rejectCharge(err error) error {
	var credit *domain.InsufficientCreditError
	if !errors.As(err, &credit) {
		m.internalError("Credit check failed", err)
		return err
	}

	metrics.CreditRejections.WithLabelValues(string(m.stage)).Inc()
	m.deps.Audio.Cue(notify.CueError)
	m.deps.Notifier.Notify(notify.Notification{
		Title:    "Insufficient credit",
		Message:  fmt.Sprintf("This order costs %s. Please add %s more credit.", credit.Required, credit.Shortfall()),
		Severity: notify.SeverityWarning,
	})

	m.logger.Info().
		Str("session_id", m.session.ID).
		Str("required", credit.Required.String()).
		Str("balance", credit.Balance.String()).
		Msg("Finalize refused for insufficient credit")

	m.emit(Event{Type: EventCreditRejected, SessionID: m.session.ID, From: m.stage, To: m.stage, Err: err})
	return err
}

func (m *Machine) abort(reason AbortReason) {
	m.teardown()
	m.releasePhotos()

	m.logger.Info().
		Str("session_id", m.session.ID).
		Str("stage", m.stage.String()).
		Str("reason", string(reason)).
		Msg("Session aborted")

	from := m.stage
	m.transition(domain.StageAborted)

	outcome := "aborted"
	if reason == ReasonTimedOut {
		outcome = "timed_out"
	}
	m.finish(outcome)

	m.emit(Event{Type: EventAborted, SessionID: m.session.ID, From: from, To: domain.StageAborted, Reason: reason})
}

func (m *Machine) status() Status {
	status := Status{Stage: m.stage}
	if m.lastErr != nil {
		status.LastError = m.lastErr.Error()
	}
	if m.session == nil {
		return status
	}

	s := m.session.Clone()
	status.Session = &s
	status.Total = s.Total()

	if m.sequencer != nil && m.stage == domain.StageCapturing {
		d := m.sequencer.Diagnostics()
		status.Capture = &d
		status.Countdown = m.sequencer.Countdown()
	}
	if m.upsell != nil && (m.stage == domain.StageUpsellExtraCopies || m.stage == domain.StageUpsellCrossSell) {
		u := m.upsell.Status()
		status.Upsell = &u
	}
	if m.timer != nil && m.timer.Active() {
		status.Timer = &TimerStatus{Progress: m.timer.Progress(), Remaining: m.timer.Remaining()}
	}
	return status
}

func (m *Machine) startSession() {
	m.teardown()

	ctx, cancel := context.WithCancel(context.Background())
	m.ctx, m.cancel = ctx, cancel
	m.lastErr = nil
	m.session = &domain.Session{
		ID:        uuid.NewString(),
		StartedAt: m.tl.Now(),
		Stage:     domain.StageIdle,
	}

	if m.stage != domain.StageIdle {
		m.transition(domain.StageIdle)
	}

	metrics.SessionsStarted.Inc()
	metrics.SessionActive.Set(1)
	m.logger.Info().Str("session_id", m.session.ID).Msg("Session started")
}

// teardown stops every timer and in-flight operation of the session.
func (m *Machine) teardown() {
	m.stopTimer()
	if m.sequencer != nil {
		m.sequencer.Cancel()
		m.sequencer = nil
	}
	if m.upsell != nil {
		m.upsell.Cancel()
		m.upsell = nil
	}
	m.composeGen++
	m.composing = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Machine) finish(outcome string) {
	m.teardown()
	metrics.SessionsFinished.WithLabelValues(outcome).Inc()
	metrics.SessionDuration.WithLabelValues(outcome).Observe(m.tl.Now().Sub(m.session.StartedAt).Seconds())
	metrics.SessionActive.Set(0)
}

func (m *Machine) releasePhotos() {
	if m.deps.Releaser == nil || m.session == nil || len(m.session.CapturedPhotos) == 0 {
		return
	}
	m.deps.Releaser.Release(m.session.PhotoPaths())
}

// releaseLatePhoto frees a shot that landed after its capture pass ended.
func (m *Machine) releaseLatePhoto(path string) {
	if m.deps.Releaser == nil {
		return
	}
	m.deps.Releaser.Release([]string{path})
}

func (m *Machine) transition(to domain.Stage) {
	from := m.stage
	m.stage = to
	if m.session != nil {
		m.session.Stage = to
	}

	metrics.StageTransitions.WithLabelValues(from.String(), to.String()).Inc()

	event := m.logger.Debug().Str("from", from.String()).Str("to", to.String())
	sessionID := ""
	if m.session != nil {
		sessionID = m.session.ID
		event = event.Str("session_id", sessionID)
	}
	event.Msg("Stage changed")

	m.emit(Event{Type: EventStageChanged, SessionID: sessionID, From: from, To: to})
}

func (m *Machine) emit(e Event) {
	listeners := m.listeners
	m.tl.Emit(func() {
		for _, l := range listeners {
			l(e)
		}
	})
}

func (m *Machine) invalid(op string) error {
	return &domain.InvalidStateError{Op: op, Stage: m.stage}
}

// internalError logs the detail and shows the customer a generic message.
func (m *Machine) internalError(msg string, err error) {
	event := m.logger.Error().Err(err).Str("stage", m.stage.String())
	if m.session != nil {
		event = event.Str("session_id", m.session.ID)
	}
	event.Msg(msg)

	m.deps.Notifier.Notify(notify.Notification{
		Title:    "Kiosk problem",
		Message:  notify.ContactStaff,
		Severity: notify.SeverityError,
	})
}
