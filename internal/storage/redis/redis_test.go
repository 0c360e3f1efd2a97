package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/photokiosk/internal/config"
	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/storage"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	// miniredis.Addr() returns "host:port", so Port stays zero
	cfg := config.RedisConfig{
		Host:         mr.Addr(),
		Port:         0,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}

	return store, mr
}

func TestOpen_InvalidTimeout(t *testing.T) {
	_, err := Open(config.RedisConfig{Host: "localhost", DialTimeout: "soon", ReadTimeout: "1s", WriteTimeout: "1s"})
	if err == nil {
		t.Fatal("expected error for invalid dial_timeout")
	}
}

func TestSettingsStore_Credit(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	settings := store.Settings()

	balance, err := settings.GetCredit(ctx)
	if err != nil {
		t.Fatalf("GetCredit failed: %v", err)
	}
	if balance != 0 {
		t.Errorf("Expected zero balance on empty store, got %s", balance)
	}

	if err := settings.SetCredit(ctx, domain.Units(10)); err != nil {
		t.Fatalf("SetCredit failed: %v", err)
	}

	balance, err = settings.AddCredit(ctx, domain.Cents(250))
	if err != nil {
		t.Fatalf("AddCredit failed: %v", err)
	}
	if balance != domain.Cents(1250) {
		t.Errorf("Expected balance 12.50, got %s", balance)
	}

	remaining, err := settings.DeductCredit(ctx, domain.Units(5))
	if err != nil {
		t.Fatalf("DeductCredit failed: %v", err)
	}
	if remaining != domain.Cents(750) {
		t.Errorf("Expected remaining 7.50, got %s", remaining)
	}

	if err := settings.SetCredit(ctx, domain.Cents(-1)); err == nil {
		t.Error("Expected error setting negative credit")
	}
}

func TestSettingsStore_DeductInsufficient(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	settings := store.Settings()

	if err := settings.SetCredit(ctx, domain.Units(3)); err != nil {
		t.Fatalf("SetCredit failed: %v", err)
	}

	balance, err := settings.DeductCredit(ctx, domain.Units(5))
	if !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}
	if balance != domain.Units(3) {
		t.Errorf("Expected reported balance 3.00, got %s", balance)
	}

	current, _ := settings.GetCredit(ctx)
	if current != domain.Units(3) {
		t.Errorf("Balance changed after failed deduction: %s", current)
	}
}

func TestSettingsStore_Products(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	settings := store.Settings()

	products := []domain.Product{
		{Type: "strip", Name: "Photo Strip", Price: domain.Units(5)},
		{Type: "postcard", Name: "Postcard", Price: domain.Units(8)},
	}
	for _, p := range products {
		if err := settings.UpsertProduct(ctx, p); err != nil {
			t.Fatalf("UpsertProduct failed: %v", err)
		}
	}

	got, err := settings.Product(ctx, "postcard")
	if err != nil {
		t.Fatalf("Product failed: %v", err)
	}
	if got.Name != "Postcard" || got.Price != domain.Units(8) {
		t.Errorf("Unexpected product: %+v", got)
	}

	list, err := settings.ListProducts(ctx)
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(list) != 2 || list[0].Type != "postcard" || list[1].Type != "strip" {
		t.Errorf("Unexpected product list: %+v", list)
	}

	if _, err := settings.Product(ctx, "magnet"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSettingsStore_Pricing(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	settings := store.Settings()

	custom := domain.PricingConfiguration{
		ProductType:   "postcard",
		BasePrice:     domain.Units(8),
		CrossSellType: "strip",
		Custom: &domain.CustomExtraCopyPricing{
			FirstExtra:      domain.Units(3),
			SecondExtra:     domain.Units(5),
			AdditionalUnit:  domain.Cents(150),
			DiscountPercent: 10,
		},
	}
	if err := settings.UpsertPricing(ctx, custom); err != nil {
		t.Fatalf("UpsertPricing failed: %v", err)
	}

	got, err := settings.GetPricing(ctx, "postcard")
	if err != nil {
		t.Fatalf("GetPricing failed: %v", err)
	}
	if got.Custom == nil || *got.Custom != *custom.Custom {
		t.Errorf("Custom pricing mismatch: %+v", got.Custom)
	}
	if got.CrossSellType != "strip" || got.BasePrice != domain.Units(8) {
		t.Errorf("Unexpected pricing: %+v", got)
	}

	// Replacing with flat pricing drops the custom fields
	flat := domain.PricingConfiguration{ProductType: "postcard", BasePrice: domain.Units(9)}
	if err := settings.UpsertPricing(ctx, flat); err != nil {
		t.Fatalf("UpsertPricing failed: %v", err)
	}
	got, err = settings.GetPricing(ctx, "postcard")
	if err != nil {
		t.Fatalf("GetPricing failed: %v", err)
	}
	if got.Custom != nil || got.CrossSellType != "" {
		t.Errorf("Expected flat pricing, got %+v", got)
	}
}

func testOrder(id string, createdAt time.Time) storage.Order {
	return storage.Order{
		ID:               id,
		SessionID:        "session-" + id,
		ProductType:      "strip",
		ProductPrice:     domain.Units(5),
		TemplateID:       "classic",
		PhotoCount:       4,
		ExtraCopies:      3,
		ExtraCopiesPrice: domain.Units(15),
		CrossSellType:    "postcard",
		CrossSellPrice:   domain.Units(8),
		Total:            domain.Units(28),
		CreatedAt:        createdAt,
	}
}

func TestOrderStore_RecordAndGet(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	orders := store.Orders()

	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	order := testOrder("order-1", now)

	if err := orders.RecordOrder(ctx, order); err != nil {
		t.Fatalf("RecordOrder failed: %v", err)
	}

	got, err := orders.GetOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if got.Total != order.Total || got.CrossSellType != "postcard" || !got.CreatedAt.Equal(now) {
		t.Errorf("Unexpected order: %+v", got)
	}

	if err := orders.RecordOrder(ctx, order); !errors.Is(err, storage.ErrAlreadyRecorded) {
		t.Errorf("Expected ErrAlreadyRecorded, got %v", err)
	}

	if _, err := orders.GetOrder(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestOrderStore_DailySales(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	orders := store.Orders()

	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	first := testOrder("order-1", day)
	second := testOrder("order-2", day.Add(time.Hour))
	second.CrossSellType = ""
	second.CrossSellPrice = 0
	second.ExtraCopies = 0
	second.Total = domain.Units(5)

	for _, o := range []storage.Order{second, first} {
		if err := orders.RecordOrder(ctx, o); err != nil {
			t.Fatalf("RecordOrder failed: %v", err)
		}
	}

	sales, err := orders.GetDailySales(ctx, "2026-03-14")
	if err != nil {
		t.Fatalf("GetDailySales failed: %v", err)
	}
	if sales.Orders != 2 || sales.Revenue != domain.Units(33) || sales.ExtraCopies != 3 || sales.CrossSells != 1 {
		t.Errorf("Unexpected sales: %+v", sales)
	}

	list, err := orders.ListOrders(ctx, "2026-03-14")
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "order-1" || list[1].ID != "order-2" {
		t.Errorf("Expected orders sorted by creation, got %+v", list)
	}

	if _, err := orders.GetDailySales(ctx, "2026-03-15"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestOrderStore_DeleteOrdersBefore(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	orders := store.Orders()

	old := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_ = orders.RecordOrder(ctx, testOrder("old-1", old))
	_ = orders.RecordOrder(ctx, testOrder("old-2", old))
	_ = orders.RecordOrder(ctx, testOrder("recent-1", recent))

	deleted, err := orders.DeleteOrdersBefore(ctx, "2026-02-01")
	if err != nil {
		t.Fatalf("DeleteOrdersBefore failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted orders, got %d", deleted)
	}

	if mr.Exists(orderKey("old-1")) || mr.Exists(dailySalesKey("2026-01-01")) {
		t.Error("Expected old order data to be removed")
	}
	if _, err := orders.GetOrder(ctx, "recent-1"); err != nil {
		t.Errorf("Recent order should survive: %v", err)
	}
}

func TestOrderStore_TTL(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	store.SetOrderTTL(48 * time.Hour)

	ctx := context.Background()
	if err := store.Orders().RecordOrder(ctx, testOrder("order-1", time.Now())); err != nil {
		t.Fatalf("RecordOrder failed: %v", err)
	}

	if ttl := mr.TTL(orderKey("order-1")); ttl != 48*time.Hour {
		t.Errorf("Expected order TTL 48h, got %v", ttl)
	}
}
