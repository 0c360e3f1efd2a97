// Package orders archives finalized sessions and prunes old records.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/metrics"
	"github.com/goodtune/photokiosk/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Recorder turns finalized sessions into order records. It is the
// fulfillment sink of the session machine.
type Recorder struct {
	store    storage.OrderStore
	freePlay bool
	now      func() time.Time
	logger   zerolog.Logger
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store storage.OrderStore, freePlay bool, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:    store,
		freePlay: freePlay,
		now:      time.Now,
		logger:   logger.With().Str("component", "orders").Logger(),
	}
}

// Submit records a finalized session as an order.
func (r *Recorder) Submit(ctx context.Context, session domain.Session) error {
	if session.FinalizedAt == nil {
		return fmt.Errorf("session %s is not finalized", session.ID)
	}

	order := NewOrder(session, r.freePlay)
	if err := r.store.RecordOrder(ctx, order); err != nil {
		if errors.Is(err, storage.ErrAlreadyRecorded) {
			r.logger.Warn().Str("order_id", order.ID).Msg("Order already recorded")
			return nil
		}
		return fmt.Errorf("failed to record order: %w", err)
	}

	metrics.OrdersRecorded.Inc()

	r.logger.Info().
		Str("order_id", order.ID).
		Str("session_id", order.SessionID).
		Str("product", order.ProductType).
		Int("extra_copies", order.ExtraCopies).
		Str("cross_sell", order.CrossSellType).
		Str("total", order.Total.String()).
		Bool("free_play", order.FreePlay).
		Msg("Order recorded")

	return nil
}

// Get returns a recorded order.
func (r *Recorder) Get(ctx context.Context, id string) (*storage.Order, error) {
	return r.store.GetOrder(ctx, id)
}

// List returns the orders recorded on date (YYYY-MM-DD); an empty date
// means today.
func (r *Recorder) List(ctx context.Context, date string) ([]storage.Order, error) {
	if date == "" {
		date = r.now().Format(storage.DateLayout)
	}
	return r.store.ListOrders(ctx, date)
}

// Sales returns the sales totals of date; a day without orders reports
// zero totals rather than ErrNotFound.
func (r *Recorder) Sales(ctx context.Context, date string) (*storage.DailySales, error) {
	if date == "" {
		date = r.now().Format(storage.DateLayout)
	}
	sales, err := r.store.GetDailySales(ctx, date)
	if errors.Is(err, storage.ErrNotFound) {
		return &storage.DailySales{Date: date}, nil
	}
	return sales, err
}

// NewOrder builds the order record of a finalized session. The order ID
// is derived from the session ID so a repeated submit is idempotent.
func NewOrder(session domain.Session, freePlay bool) storage.Order {
	order := storage.Order{
		ID:                uuid.NewSHA1(uuid.NameSpaceOID, []byte(session.ID)).String(),
		SessionID:         session.ID,
		ProductType:       session.Product.Type,
		ProductPrice:      session.Product.Price,
		PhotoCount:        len(session.CapturedPhotos),
		ComposedImagePath: session.ComposedImagePath,
		ExtraCopies:       session.ExtraCopies.Count,
		ExtraCopiesPrice:  session.ExtraCopies.Price,
		Total:             session.Total(),
		FreePlay:          freePlay,
	}
	if session.Template != nil {
		order.TemplateID = session.Template.ID
	}
	if session.CrossSell.Accepted {
		order.CrossSellType = session.CrossSell.Product.Type
		order.CrossSellPrice = session.CrossSell.Price
		order.CrossSellPhoto = session.CrossSell.Photo.Path
	}
	if session.FinalizedAt != nil {
		order.CreatedAt = *session.FinalizedAt
	}
	return order
}
