package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goodtune/photokiosk/internal/credit"
	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/metrics"
	"github.com/goodtune/photokiosk/internal/notify"
	"github.com/goodtune/photokiosk/internal/orders"
	"github.com/goodtune/photokiosk/internal/session"
	"github.com/goodtune/photokiosk/internal/storage"
	"github.com/goodtune/photokiosk/internal/storage/memory"
	"github.com/goodtune/photokiosk/internal/timeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

type stubCamera struct{ shots int }

func (c *stubCamera) Start(ctx context.Context) error { return nil }

func (c *stubCamera) CapturePhoto(ctx context.Context, name string) (string, error) {
	c.shots++
	return fmt.Sprintf("/photos/%s-%d.jpg", name, c.shots), nil
}

type stubCompositor struct{}

func (stubCompositor) ComposePhotos(ctx context.Context, template domain.Template, paths []string) (domain.ComposeResult, error) {
	return domain.ComposeResult{Success: true, OutputPath: "/composed/" + template.ID + ".jpg"}, nil
}

type testAPI struct {
	server *httptest.Server
	clock  *timeline.FakeClock
	store  *memory.Store
}

func setupAPI(t *testing.T, balance domain.Money) *testAPI {
	t.Helper()

	ctx := context.Background()
	store := memory.New()
	settings := store.Settings()
	_ = settings.SetCredit(ctx, balance)
	_ = settings.UpsertProduct(ctx, domain.Product{Type: "strip", Name: "Photo Strip", Price: domain.Units(5)})
	_ = settings.UpsertProduct(ctx, domain.Product{Type: "postcard", Name: "Postcard", Price: domain.Units(8)})
	_ = settings.UpsertPricing(ctx, domain.PricingConfiguration{ProductType: "strip", BasePrice: domain.Units(5), CrossSellType: "postcard"})

	clock := timeline.NewFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	ledger := credit.NewLedger(settings, credit.ModePaid, zerolog.Nop())
	recorder := orders.NewRecorder(store.Orders(), false, zerolog.Nop())
	notifier := notify.NewLogNotifier(zerolog.Nop())

	machine, err := session.NewMachine(timeline.NewSynchronous(clock), session.Dependencies{
		Catalog:     settings,
		Ledger:      ledger,
		Camera:      &stubCamera{},
		Compositor:  stubCompositor{},
		Fulfillment: recorder,
		Notifier:    notifier,
		Audio:       notifier,
	}, session.DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewMachine() error: %v", err)
	}

	s := NewServer("127.0.0.1:0", Dependencies{
		Machine:       machine,
		Credit:        ledger,
		Products:      settings,
		Orders:        recorder,
		Notifications: notifier,
	}, 0, zerolog.Nop())

	ts := httptest.NewServer(s.Router(0))
	t.Cleanup(ts.Close)

	return &testAPI{server: ts, clock: clock, store: store}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.server.URL+path, r)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp.StatusCode, data
}

// mustDo fails the test unless the request returns 200
func (a *testAPI) mustDo(t *testing.T, method, path, body string) []byte {
	t.Helper()

	status, data := a.do(t, method, path, body)
	if status != http.StatusOK {
		t.Fatalf("%s %s = %d: %s", method, path, status, data)
	}
	return data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("failed to decode %s: %v", data, err)
	}
	return v
}

const stripTemplate = `{"id":"grid-2","name":"Grid","product_type":"strip","photo_count":2,"width":600,"height":1800}`

func TestAPI_FullSession(t *testing.T) {
	a := setupAPI(t, domain.Units(20))

	a.mustDo(t, "POST", "/api/v1/session/product", `{"product_type":"strip"}`)
	a.mustDo(t, "POST", "/api/v1/session/template", stripTemplate)
	a.mustDo(t, "POST", "/api/v1/session/capture", "")

	a.clock.Advance(30 * time.Second)

	status := decode[SessionResponse](t, a.mustDo(t, "GET", "/api/v1/session", ""))
	if status.Stage != domain.StagePreviewPending {
		t.Fatalf("stage = %v, want PREVIEW_PENDING", status.Stage)
	}
	if status.Session == nil || len(status.Session.CapturedPhotos) != 2 {
		t.Fatalf("session = %+v", status.Session)
	}

	a.mustDo(t, "POST", "/api/v1/session/approve", "")

	quote := decode[quoteResponse](t, a.mustDo(t, "GET", "/api/v1/session/extra-copies/quote?copies=1", ""))
	if quote.Price != domain.Units(5) {
		t.Errorf("quote = %+v, want 5.00", quote)
	}
	qty := decode[quantityResponse](t, a.mustDo(t, "POST", "/api/v1/session/extra-copies/quantity/increase", ""))
	if qty.Quantity != 4 {
		t.Errorf("quantity = %d, want 4", qty.Quantity)
	}

	a.mustDo(t, "POST", "/api/v1/session/extra-copies", `{"copies":1}`)

	idx := decode[indexResponse](t, a.mustDo(t, "POST", "/api/v1/session/cross-sell/photo/next", ""))
	if idx.Index != 1 {
		t.Errorf("photo index = %d, want 1", idx.Index)
	}

	// 5 + 5 + 8 = 18 against 20
	status = decode[SessionResponse](t, a.mustDo(t, "POST", "/api/v1/session/cross-sell/accept", ""))
	if status.Stage != domain.StageFinalizing || status.Total != domain.Units(18) {
		t.Fatalf("after accept: stage %v, total %s", status.Stage, status.Total)
	}

	status = decode[SessionResponse](t, a.mustDo(t, "POST", "/api/v1/session/finalize", ""))
	if status.Stage != domain.StageCompleted {
		t.Errorf("stage = %v, want COMPLETED", status.Stage)
	}

	balance := decode[creditResponse](t, a.mustDo(t, "GET", "/api/v1/credit", ""))
	if balance.Balance != domain.Units(2) {
		t.Errorf("balance = %s, want 2.00", balance.Balance)
	}

	list := decode[[]storage.Order](t, a.mustDo(t, "GET", "/api/v1/orders?date=2026-04-01", ""))
	if len(list) != 1 || list[0].CrossSellPhoto != "/photos/shot-02-2.jpg" {
		t.Fatalf("orders = %+v", list)
	}

	order := decode[storage.Order](t, a.mustDo(t, "GET", "/api/v1/orders/"+list[0].ID, ""))
	if order.Total != domain.Units(18) {
		t.Errorf("order total = %s", order.Total)
	}

	sales := decode[storage.DailySales](t, a.mustDo(t, "GET", "/api/v1/sales?date=2026-04-01", ""))
	if sales.Orders != 1 || sales.Revenue != domain.Units(18) {
		t.Errorf("sales = %+v", sales)
	}
}

func TestAPI_InsufficientCredit(t *testing.T) {
	a := setupAPI(t, domain.Units(10))

	a.mustDo(t, "POST", "/api/v1/session/product", `{"product_type":"strip"}`)
	a.mustDo(t, "POST", "/api/v1/session/template", stripTemplate)
	a.mustDo(t, "POST", "/api/v1/session/capture", "")
	a.clock.Advance(30 * time.Second)
	a.mustDo(t, "POST", "/api/v1/session/approve", "")

	// 5 + 10 for two copies = 15 against 10
	status, data := a.do(t, "POST", "/api/v1/session/extra-copies", `{"copies":2}`)
	if status != http.StatusPaymentRequired {
		t.Fatalf("extra copies = %d: %s", status, data)
	}
	if resp := decode[ErrorResponse](t, data); resp.Shortfall == nil || *resp.Shortfall != domain.Units(5) {
		t.Errorf("error = %+v", resp)
	}
	session := decode[SessionResponse](t, a.mustDo(t, "GET", "/api/v1/session", ""))
	if session.Stage != domain.StageUpsellExtraCopies {
		t.Errorf("stage = %v, want UPSELL_EXTRA_COPIES", session.Stage)
	}

	a.mustDo(t, "POST", "/api/v1/session/extra-copies", `{"copies":1}`)
	a.mustDo(t, "POST", "/api/v1/session/cross-sell/decline", "")

	// Credit drops below the 10.00 total before payment
	_ = a.store.Settings().SetCredit(context.Background(), domain.Units(9))

	status, data = a.do(t, "POST", "/api/v1/session/finalize", "")
	if status != http.StatusPaymentRequired {
		t.Fatalf("finalize = %d: %s", status, data)
	}
	resp := decode[ErrorResponse](t, data)
	if resp.Code != "insufficient_credit" || resp.Shortfall == nil || *resp.Shortfall != domain.Units(1) {
		t.Errorf("error = %+v", resp)
	}

	session = decode[SessionResponse](t, a.mustDo(t, "GET", "/api/v1/session", ""))
	if session.Stage != domain.StageFinalizing {
		t.Errorf("stage = %v, want FINALIZING", session.Stage)
	}
	if session.Notification == nil || session.Notification.Title != "Insufficient credit" {
		t.Errorf("notification = %+v", session.Notification)
	}
}

func TestAPI_Errors(t *testing.T) {
	a := setupAPI(t, domain.Units(100))

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"unknown product", "POST", "/api/v1/session/product", `{"product_type":"magnet"}`, http.StatusBadRequest, "validation_failed"},
		{"malformed body", "POST", "/api/v1/session/product", `{"product_type":`, http.StatusBadRequest, "invalid_body"},
		{"approve while idle", "POST", "/api/v1/session/approve", "", http.StatusConflict, "invalid_state"},
		{"finalize while idle", "POST", "/api/v1/session/finalize", "", http.StatusConflict, "invalid_state"},
		{"diagnostics without capture", "GET", "/api/v1/session/capture/diagnostics", "", http.StatusConflict, "invalid_state"},
		{"non-numeric quote", "GET", "/api/v1/session/extra-copies/quote?copies=two", "", http.StatusBadRequest, "invalid_argument"},
		{"bad quantity direction", "POST", "/api/v1/session/extra-copies/quantity/sideways", "", http.StatusNotFound, "not_found"},
		{"bad photo direction", "POST", "/api/v1/session/cross-sell/photo/up", "", http.StatusNotFound, "not_found"},
		{"bad abort reason", "POST", "/api/v1/session/abort", `{"reason":"reset"}`, http.StatusBadRequest, "invalid_argument"},
		{"unknown order", "GET", "/api/v1/orders/nope", "", http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := a.do(t, tt.method, tt.path, tt.body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", status, tt.wantStatus, data)
			}
			if resp := decode[ErrorResponse](t, data); resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestAPI_AbortAndReset(t *testing.T) {
	a := setupAPI(t, domain.Units(100))

	a.mustDo(t, "POST", "/api/v1/session/product", `{"product_type":"strip"}`)

	status := decode[SessionResponse](t, a.mustDo(t, "POST", "/api/v1/session/abort", ""))
	if status.Stage != domain.StageAborted {
		t.Errorf("stage = %v, want ABORTED", status.Stage)
	}

	status = decode[SessionResponse](t, a.mustDo(t, "POST", "/api/v1/session/reset", ""))
	if status.Stage != domain.StageIdle || status.Session != nil {
		t.Errorf("after reset: %+v", status)
	}
}

func TestAPI_Products(t *testing.T) {
	a := setupAPI(t, 0)

	products := decode[[]domain.Product](t, a.mustDo(t, "GET", "/api/v1/products", ""))
	if len(products) != 2 || products[0].Type != "postcard" || products[1].Type != "strip" {
		t.Errorf("products = %+v", products)
	}
}

func TestAPI_Metrics(t *testing.T) {
	a := setupAPI(t, 0)

	counter := metrics.RequestsTotal.WithLabelValues("/health", "GET", "200")
	before := testutil.ToFloat64(counter)

	a.mustDo(t, "GET", "/health", "")

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("health requests counted = %v, want 1", got)
	}
}
