// Package credit gates paid transitions on the kiosk's credit balance.
package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/storage"
	"github.com/rs/zerolog"
)

// Mode selects whether the balance is enforced.
type Mode int

const (
	// ModePaid enforces the stored credit balance.
	ModePaid Mode = iota
	// ModeFreePlay approves every transaction and never charges.
	ModeFreePlay
)

func (m Mode) String() string {
	if m == ModeFreePlay {
		return "free_play"
	}
	return "paid"
}

// Store is the part of storage.SettingsStore the ledger needs.
type Store interface {
	GetCredit(ctx context.Context) (domain.Money, error)
	DeductCredit(ctx context.Context, amount domain.Money) (domain.Money, error)
}

// Ledger reads the balance fresh from storage on every call.
type Ledger struct {
	store  Store
	mode   Mode
	logger zerolog.Logger
}

// NewLedger creates a ledger. store may be nil in free-play mode.
func NewLedger(store Store, mode Mode, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		mode:   mode,
		logger: logger.With().Str("component", "credit").Str("mode", mode.String()).Logger(),
	}
}

// Mode returns the enforcement mode fixed at construction.
func (l *Ledger) Mode() Mode {
	return l.mode
}

// Balance returns the current stored balance.
func (l *Ledger) Balance(ctx context.Context) (domain.Money, error) {
	if l.store == nil {
		return 0, nil
	}
	balance, err := l.store.GetCredit(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read credit balance: %w", err)
	}
	return balance, nil
}

// Validate reports whether total can be paid. It never mutates the
// balance. A shortfall is reported as *domain.InsufficientCreditError.
func (l *Ledger) Validate(ctx context.Context, total domain.Money) error {
	if total < 0 {
		return &domain.ValidationError{Field: "total", Reason: "must not be negative"}
	}
	if l.mode == ModeFreePlay {
		return nil
	}

	balance, err := l.Balance(ctx)
	if err != nil {
		return err
	}

	if balance < total {
		l.logger.Info().
			Str("required", total.String()).
			Str("balance", balance.String()).
			Msg("Insufficient credit")
		return &domain.InsufficientCreditError{Required: total, Balance: balance}
	}
	return nil
}

// Charge deducts total from the balance atomically and returns what is
// left. Free play never charges and never reads storage.
func (l *Ledger) Charge(ctx context.Context, total domain.Money) (domain.Money, error) {
	if total < 0 {
		return 0, &domain.ValidationError{Field: "total", Reason: "must not be negative"}
	}
	if l.mode == ModeFreePlay {
		return 0, nil
	}
	if total == 0 {
		return l.Balance(ctx)
	}

	remaining, err := l.store.DeductCredit(ctx, total)
	if errors.Is(err, storage.ErrInsufficientFunds) {
		return remaining, &domain.InsufficientCreditError{Required: total, Balance: remaining}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to charge credit: %w", err)
	}

	l.logger.Info().
		Str("amount", total.String()).
		Str("remaining", remaining.String()).
		Msg("Credit charged")

	return remaining, nil
}
