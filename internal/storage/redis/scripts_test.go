package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a miniredis instance for testing Lua scripts
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestDeductCreditScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()

	tests := []struct {
		name        string
		balance     string
		amount      int64
		wantOK      int64
		wantBalance int64
	}{
		{"exact balance", "500", 500, 1, 0},
		{"ample balance", "1000", 250, 1, 750},
		{"short balance", "300", 500, 0, 300},
		{"missing key", "", 100, 0, 0},
		{"zero amount on empty", "", 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr.FlushAll()
			if tt.balance != "" {
				if err := mr.Set(creditKey(), tt.balance); err != nil {
					t.Fatalf("Failed to seed balance: %v", err)
				}
			}

			script := redis.NewScript(deductCreditScript)
			result, err := script.Run(ctx, client, []string{creditKey()}, tt.amount).Int64Slice()
			if err != nil {
				t.Fatalf("Script execution failed: %v", err)
			}

			if result[0] != tt.wantOK || result[1] != tt.wantBalance {
				t.Errorf("Expected {%d, %d}, got %v", tt.wantOK, tt.wantBalance, result)
			}
		})
	}
}

func TestRecordOrderScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	keys := []string{orderKey("o-1"), orderIndexKey("2026-03-14"), dailySalesKey("2026-03-14")}
	script := redis.NewScript(recordOrderScript)

	result, err := script.Run(ctx, client, keys, "o-1", `{"id":"o-1"}`, "2026-03-14", 2800, 3, 1, 0).Int()
	if err != nil {
		t.Fatalf("Script execution failed: %v", err)
	}
	if result != 1 {
		t.Fatalf("Expected first record to succeed, got %d", result)
	}

	if !mr.Exists(orderKey("o-1")) {
		t.Error("Expected order payload to be stored")
	}
	if ok, _ := mr.SIsMember(orderIndexKey("2026-03-14"), "o-1"); !ok {
		t.Error("Expected order in date index")
	}
	if got := mr.HGet(dailySalesKey("2026-03-14"), "revenue"); got != "2800" {
		t.Errorf("Expected revenue 2800, got %s", got)
	}
	if got := mr.HGet(dailySalesKey("2026-03-14"), "cross_sells"); got != "1" {
		t.Errorf("Expected cross_sells 1, got %s", got)
	}

	// A replay must not double count
	result, err = script.Run(ctx, client, keys, "o-1", `{"id":"o-1"}`, "2026-03-14", 2800, 3, 1, 0).Int()
	if err != nil {
		t.Fatalf("Script execution failed: %v", err)
	}
	if result != 0 {
		t.Errorf("Expected duplicate to be refused, got %d", result)
	}
	if got := mr.HGet(dailySalesKey("2026-03-14"), "orders"); got != "1" {
		t.Errorf("Expected orders 1 after replay, got %s", got)
	}
}
