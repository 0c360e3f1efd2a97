// Package memory provides a process-local storage.Store for simulation,
// demos and tests. Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/storage"
)

// Store implements storage.Store with in-memory maps
type Store struct {
	settings *settingsStore
	orders   *orderStore
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		settings: &settingsStore{
			products: make(map[string]domain.Product),
			pricing:  make(map[string]domain.PricingConfiguration),
		},
		orders: &orderStore{
			orders: make(map[string]storage.Order),
			sales:  make(map[string]*storage.DailySales),
		},
	}
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

// Settings returns the SettingsStore implementation
func (s *Store) Settings() storage.SettingsStore {
	return s.settings
}

// Orders returns the OrderStore implementation
func (s *Store) Orders() storage.OrderStore {
	return s.orders
}

type settingsStore struct {
	mu       sync.RWMutex
	credit   domain.Money
	products map[string]domain.Product
	pricing  map[string]domain.PricingConfiguration
}

func (s *settingsStore) GetCredit(ctx context.Context) (domain.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credit, nil
}

func (s *settingsStore) SetCredit(ctx context.Context, amount domain.Money) error {
	if amount < 0 {
		return fmt.Errorf("credit must not be negative: %s", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credit = amount
	return nil
}

func (s *settingsStore) AddCredit(ctx context.Context, amount domain.Money) (domain.Money, error) {
	if amount < 0 {
		return 0, fmt.Errorf("credit top-up must not be negative: %s", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credit += amount
	return s.credit, nil
}

func (s *settingsStore) DeductCredit(ctx context.Context, amount domain.Money) (domain.Money, error) {
	if amount < 0 {
		return 0, fmt.Errorf("deduction must not be negative: %s", amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credit < amount {
		return s.credit, storage.ErrInsufficientFunds
	}
	s.credit -= amount
	return s.credit, nil
}

func (s *settingsStore) Product(ctx context.Context, productType string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productType]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

func (s *settingsStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Type < products[j].Type })
	return products, nil
}

func (s *settingsStore) UpsertProduct(ctx context.Context, product domain.Product) error {
	if product.Type == "" {
		return fmt.Errorf("product type is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.Type] = product
	return nil
}

func (s *settingsStore) GetPricing(ctx context.Context, productType string) (*domain.PricingConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pricing[productType]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if p.Custom != nil {
		custom := *p.Custom
		p.Custom = &custom
	}
	return &p, nil
}

func (s *settingsStore) UpsertPricing(ctx context.Context, pricing domain.PricingConfiguration) error {
	if pricing.ProductType == "" {
		return fmt.Errorf("product type is required")
	}
	if pricing.Custom != nil {
		custom := *pricing.Custom
		pricing.Custom = &custom
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pricing[pricing.ProductType] = pricing
	return nil
}

type orderStore struct {
	mu     sync.RWMutex
	orders map[string]storage.Order
	sales  map[string]*storage.DailySales
}

func (s *orderStore) RecordOrder(ctx context.Context, order storage.Order) error {
	if order.ID == "" {
		return fmt.Errorf("order ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return storage.ErrAlreadyRecorded
	}
	s.orders[order.ID] = order

	date := order.Date()
	sales, ok := s.sales[date]
	if !ok {
		sales = &storage.DailySales{Date: date}
		s.sales[date] = sales
	}
	sales.Orders++
	sales.Revenue += order.Total
	sales.ExtraCopies += int64(order.ExtraCopies)
	if order.CrossSellType != "" {
		sales.CrossSells++
	}
	return nil
}

func (s *orderStore) GetOrder(ctx context.Context, id string) (*storage.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &o, nil
}

func (s *orderStore) ListOrders(ctx context.Context, date string) ([]storage.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orders := []storage.Order{}
	for _, o := range s.orders {
		if o.Date() == date {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	return orders, nil
}

func (s *orderStore) GetDailySales(ctx context.Context, date string) (*storage.DailySales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sales, ok := s.sales[date]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *sales
	return &copied, nil
}

func (s *orderStore) DeleteOrdersBefore(ctx context.Context, cutoffDate string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, o := range s.orders {
		if o.Date() < cutoffDate {
			delete(s.orders, id)
			deleted++
		}
	}
	for date := range s.sales {
		if date < cutoffDate {
			delete(s.sales, date)
		}
	}
	return deleted, nil
}
