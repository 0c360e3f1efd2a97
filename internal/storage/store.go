package storage

import (
	"context"
	"errors"

	"github.com/goodtune/photokiosk/internal/domain"
)

var (
	// ErrNotFound is returned when a record is missing from storage.
	ErrNotFound = errors.New("storage: record not found")

	// ErrInsufficientFunds is returned when a deduction would make the
	// credit balance negative. The balance is left untouched.
	ErrInsufficientFunds = errors.New("storage: insufficient funds")

	// ErrAlreadyRecorded is returned when an order ID is recorded twice.
	ErrAlreadyRecorded = errors.New("storage: order already recorded")
)

// Store represents the root storage interface.
type Store interface {
	Close() error
	Settings() SettingsStore
	Orders() OrderStore
}

// SettingsStore holds kiosk settings: the credit balance, the product
// price table and per-product pricing configuration.
type SettingsStore interface {
	GetCredit(ctx context.Context) (domain.Money, error)
	SetCredit(ctx context.Context, amount domain.Money) error
	AddCredit(ctx context.Context, amount domain.Money) (domain.Money, error)
	DeductCredit(ctx context.Context, amount domain.Money) (domain.Money, error)

	Product(ctx context.Context, productType string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	UpsertProduct(ctx context.Context, product domain.Product) error

	GetPricing(ctx context.Context, productType string) (*domain.PricingConfiguration, error)
	UpsertPricing(ctx context.Context, pricing domain.PricingConfiguration) error
}

// OrderStore records finalized sessions.
type OrderStore interface {
	RecordOrder(ctx context.Context, order Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, date string) ([]Order, error)
	GetDailySales(ctx context.Context, date string) (*DailySales, error)
	DeleteOrdersBefore(ctx context.Context, cutoffDate string) (int, error)
}
