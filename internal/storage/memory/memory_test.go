package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/storage"
)

func TestSettings_DeductCredit(t *testing.T) {
	ctx := context.Background()
	settings := New().Settings()

	if err := settings.SetCredit(ctx, domain.Units(10)); err != nil {
		t.Fatalf("SetCredit() error: %v", err)
	}

	tests := []struct {
		name    string
		amount  domain.Money
		want    domain.Money
		wantErr error
	}{
		{"partial", domain.Units(4), domain.Units(6), nil},
		{"too much", domain.Units(7), domain.Units(6), storage.ErrInsufficientFunds},
		{"exact", domain.Units(6), 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := settings.DeductCredit(ctx, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DeductCredit() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DeductCredit() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSettings_ConcurrentDeduct(t *testing.T) {
	ctx := context.Background()
	settings := New().Settings()
	_ = settings.SetCredit(ctx, domain.Units(10))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := settings.DeductCredit(ctx, domain.Units(1)); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Errorf("expected 10 successful deductions, got %d", succeeded)
	}
	if balance, _ := settings.GetCredit(ctx); balance != 0 {
		t.Errorf("expected zero balance, got %s", balance)
	}
}

func TestSettings_PricingIsCopied(t *testing.T) {
	ctx := context.Background()
	settings := New().Settings()

	pricing := domain.PricingConfiguration{
		ProductType: "postcard",
		BasePrice:   domain.Units(8),
		Custom:      &domain.CustomExtraCopyPricing{FirstExtra: domain.Units(3)},
	}
	_ = settings.UpsertPricing(ctx, pricing)
	pricing.Custom.FirstExtra = domain.Units(99)

	got, err := settings.GetPricing(ctx, "postcard")
	if err != nil {
		t.Fatalf("GetPricing() error: %v", err)
	}
	if got.Custom.FirstExtra != domain.Units(3) {
		t.Errorf("stored pricing was mutated through caller pointer: %s", got.Custom.FirstExtra)
	}

	if _, err := settings.GetPricing(ctx, "strip"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetPricing() error = %v, want ErrNotFound", err)
	}
}

func TestOrders_RecordAndPrune(t *testing.T) {
	ctx := context.Background()
	orders := New().Orders()

	jan := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	records := []storage.Order{
		{ID: "a", ProductType: "strip", Total: domain.Units(5), CreatedAt: jan},
		{ID: "b", ProductType: "strip", Total: domain.Units(13), CrossSellType: "postcard", ExtraCopies: 2, CreatedAt: mar},
		{ID: "c", ProductType: "postcard", Total: domain.Units(8), CreatedAt: mar.Add(time.Minute)},
	}
	for _, o := range records {
		if err := orders.RecordOrder(ctx, o); err != nil {
			t.Fatalf("RecordOrder(%s) error: %v", o.ID, err)
		}
	}

	if err := orders.RecordOrder(ctx, records[0]); !errors.Is(err, storage.ErrAlreadyRecorded) {
		t.Errorf("RecordOrder() duplicate error = %v, want ErrAlreadyRecorded", err)
	}

	sales, err := orders.GetDailySales(ctx, "2026-03-10")
	if err != nil {
		t.Fatalf("GetDailySales() error: %v", err)
	}
	if sales.Orders != 2 || sales.Revenue != domain.Units(21) || sales.CrossSells != 1 || sales.ExtraCopies != 2 {
		t.Errorf("GetDailySales() = %+v", sales)
	}

	list, _ := orders.ListOrders(ctx, "2026-03-10")
	if len(list) != 2 || list[0].ID != "b" {
		t.Errorf("ListOrders() = %+v", list)
	}

	deleted, err := orders.DeleteOrdersBefore(ctx, "2026-02-01")
	if err != nil || deleted != 1 {
		t.Errorf("DeleteOrdersBefore() = %d, %v; want 1, nil", deleted, err)
	}
	if _, err := orders.GetDailySales(ctx, "2026-01-10"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("pruned sales still present: %v", err)
	}
}
