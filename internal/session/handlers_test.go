package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/checkout"
	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/scan"
)

type staticLookup map[string]catalog.Item

func (l staticLookup) LookupByBarcode(_ context.Context, barcode string) (catalog.Item, error) {
	item, ok := l[barcode]
	if !ok {
		return catalog.Item{}, catalog.ErrNotFound
	}
	return item, nil
}

type memorySubmitter struct {
	receipts []checkout.Receipt
	fail     bool
}

func (m *memorySubmitter) SubmitReceipt(_ context.Context, draft checkout.Draft) (checkout.Receipt, error) {
	if m.fail {
		return checkout.Receipt{}, errors.New("storage unavailable")
	}
	rec := checkout.Receipt{
		ReceiptID: "r-1",
		CreatedAt: time.Now(),
		Draft:     draft,
	}
	m.receipts = append(m.receipts, rec)
	return rec, nil
}

type recordingSales struct {
	receipts []checkout.Receipt
}

func (r *recordingSales) RecordReceipt(_ context.Context, rec checkout.Receipt) error {
	r.receipts = append(r.receipts, rec)
	return nil
}

type recordingEmitter struct {
	topics []string
}

func (r *recordingEmitter) Emit(_ context.Context, topic, aggregateID string, _ any) (events.Event, error) {
	r.topics = append(r.topics, topic)
	return events.Event{ID: int64(len(r.topics)), Topic: topic, AggregateID: aggregateID}, nil
}

type testEnv struct {
	router    *chi.Mux
	manager   *Manager
	submitter *memorySubmitter
	sales     *recordingSales
	emitter   *recordingEmitter
}

func newTestEnv(t *testing.T, lookup staticLookup, recovery *Recovery) *testEnv {
	t.Helper()
	resolver := &scan.Resolver{Lookup: lookup}
	manager := NewManager(ManagerConfig{Resolver: resolver, Recovery: recovery})
	env := &testEnv{
		manager:   manager,
		submitter: &memorySubmitter{},
		sales:     &recordingSales{},
		emitter:   &recordingEmitter{},
	}
	h := NewHandler(HandlerConfig{
		Manager:   manager,
		Catalog:   lookup,
		Submitter: env.submitter,
		Sales:     env.sales,
		Emitter:   env.emitter,
	})
	r := chi.NewRouter()
	r.Post("/sessions", h.Create)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Delete("/", h.Close)
		r.Get("/cart", h.Cart)
		r.Delete("/cart", h.ClearCart)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{barcode}", h.SetQuantity)
		r.Delete("/items/{barcode}", h.RemoveItem)
		r.Post("/scan", h.Scan)
		r.Post("/scan/batch", h.ScanBatch)
		r.Get("/scan/events", h.ScanStream)
		r.Post("/checkout", h.BeginCheckout)
		r.Get("/checkout", h.CheckoutState)
		r.Post("/checkout/submit", h.SubmitPayment)
	})
	env.router = r
	return env
}

func testLookup() staticLookup {
	return staticLookup{
		"111": {Barcode: "111", Name: "Parle-G Biscuit 50g", Price: pricing.Money(1000), Stock: 50},
		"222": {Barcode: "222", Name: "Amul Gold Milk 500ml", Price: pricing.Money(2800), Stock: 20},
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Buffer
	if body == "" {
		rdr = bytes.NewBuffer(nil)
	} else {
		rdr = bytes.NewBufferString(body)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(method, path, rdr))
	return rec
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data struct {
			SessionID string `json:"session_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.SessionID)
	return resp.Data.SessionID
}

type cartResponse struct {
	Data cartView `json:"data"`
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartView {
	t.Helper()
	var resp cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

func TestAddItemAndCartTotals(t *testing.T) {
	env := newTestEnv(t, testLookup(), nil)
	id := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/sessions/"+id+"/items", `{"barcode":"111","quantity":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/sessions/"+id+"/items", `{"barcode":"222"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	cart := decodeCart(t, rec)
	require.Len(t, cart.Items, 2)
	require.InDelta(t, 58.00, cart.Total, 0.001)
}

func TestAddItemUnknownBarcode(t *testing.T) {
	env := newTestEnv(t, testLookup(), nil)
	id := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/sessions/"+id+"/items", `{"barcode":"999"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "PRODUCT_NOT_FOUND")
}

func TestSetQuantityAndRemove(t *testing.T) {
	env := newTestEnv(t, testLookup(), nil)
	id := env.createSession(t)

	env.do(t, http.MethodPost, "/sessions/"+id+"/items", `{"barcode":"111"}`)

	rec := env.do(t, http.MethodPatch, "/sessions/"+id+"/items/111", `{"quantity":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCart(t, rec)
	require.Equal(t, 5, cart.Items[0].Quantity)

	rec = env.do(t, http.MethodPatch, "/sessions/"+id+"/items/404", `{"quantity":2}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/sessions/"+id+"/items/111", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decodeCart(t, rec).Items)
}

func TestScanMatchAndMiss(t *testing.T) {
	env := newTestEnv(t, testLookup(), nil)
	id := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/sessions/"+id+"/scan", `{"barcode":"111"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var matched struct {
		Data struct {
			Matched bool     `json:"matched"`
			Cart    cartView `json:"cart"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &matched))
	require.True(t, matched.Data.Matched)
	require.Len(t, matched.Data.Cart.Items, 1)

	rec = env.do(t, http.MethodPost, "/sessions/"+id+"/scan", `{"barcode":"000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Barcode not found in database")

	rec = env.do(t, http.MethodGet, "/sessions/"+id+"/cart", "")
	require.Len(t, decodeCart(t, rec).Items, 1)
}

func TestScanBatchFeedsCart(t *testing.T) {
	env := newTestEnv(t, testLookup(), nil)
	id := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/sessions/"+id+"/scan/batch", `{"barcodes":["111","000","111","222"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp struct {
		Data struct {
			Accepted int `json:"accepted"`
			Dropped  int `json:"dropped"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 4, resp.Data.Accepted)
	require.Zero(t, resp.Data.Dropped)

	// the stream drains asynchronously; the unknown barcode never lands
	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/sessions/"+id+"/cart", "")
		var body cartResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			return false
		}
		return len(body.Data.Items) == 2 && body.Data.Items[0].Quantity == 2
	}, time.Second, 10*time.Millisecond)
}

func TestScanStreamEmitsOutcomes(t *testing.T) {
	env := newTestEnv(t, testLookup(), nil)
	id := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/sessions/"+id+"/scan/batch", `{"barcodes":["111","000"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/"+id+"/scan/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var payloads []string
	for len(payloads) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "data: ") {
			payloads = append(payloads, strings.TrimPrefix(line, "data: "))
		}
	}
	require.Contains(t, payloads[0], `"barcode":"111"`)
	require.Contains(t, payloads[0], `"matched":true`)
	require.Contains(t, payloads[1], `"barcode":"000"`)
	require.Contains(t, payloads[1], `"matched":false`)
}

func TestAddItemWithQuantityConcurrent(t *testing.T) {
	m := NewManager(ManagerConfig{})
	s := m.Create()
	item := catalog.Item{Barcode: "111", Name: "Parle-G Biscuit 50g", Price: pricing.Money(1000)}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddItemWithQuantity(context.Background(), item, 2)
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, 40, snap[0].Qty)
}

func TestCheckoutHappyPath(t *testing.T) {
	env := newTestEnv(t, testLookup(), nil)
	id := env.createSession(t)

	env.do(t, http.MethodPost, "/sessions/"+id+"/items", `{"barcode":"111","quantity":2}`)

	rec := env.do(t, http.MethodPost, "/sessions/"+id+"/checkout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "AWAITING_PAYMENT")

	body := `{"payment_method":"cash","amount_paid":50.00,"customer_name":"Asha","customer_phone":"9876543210"}`
	rec = env.do(t, http.MethodPost, "/sessions/"+id+"/checkout/submit", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data struct {
			ReceiptID    string  `json:"receipt_id"`
			TotalAmount  float64 `json:"total_amount"`
			ChangeAmount float64 `json:"change_amount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "r-1", resp.Data.ReceiptID)
	require.InDelta(t, 20.00, resp.Data.TotalAmount, 0.001)
	require.InDelta(t, 30.00, resp.Data.ChangeAmount, 0.001)

	require.Len(t, env.submitter.receipts, 1)
	require.Len(t, env.sales.receipts, 1)
	require.Contains(t, env.emitter.topics, events.TopicReceiptCreated)

	rec = env.do(t, http.MethodGet, "/sessions/"+id+"/cart", "")
	require.Empty(t, decodeCart(t, rec).Items)
}

func TestCheckoutFailureKeepsCart(t *testing.T) {
	env := newTestEnv(t, testLookup(), nil)
	env.submitter.fail = true
	id := env.createSession(t)

	env.do(t, http.MethodPost, "/sessions/"+id+"/items", `{"barcode":"222"}`)
	env.do(t, http.MethodPost, "/sessions/"+id+"/checkout", "")

	body := `{"payment_method":"upi","amount_paid":28.00,"quick":true}`
	rec := env.do(t, http.MethodPost, "/sessions/"+id+"/checkout/submit", body)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "COMMIT_FAILED")

	rec = env.do(t, http.MethodGet, "/sessions/"+id+"/cart", "")
	require.Len(t, decodeCart(t, rec).Items, 1)
	require.Empty(t, env.sales.receipts)
}

func TestCheckoutEmptyCart(t *testing.T) {
	env := newTestEnv(t, testLookup(), nil)
	id := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/sessions/"+id+"/checkout", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "CART_EMPTY")
}

func TestSubmitWithoutBegin(t *testing.T) {
	env := newTestEnv(t, testLookup(), nil)
	id := env.createSession(t)

	body := `{"payment_method":"cash","amount_paid":10.00,"quick":true}`
	rec := env.do(t, http.MethodPost, "/sessions/"+id+"/checkout/submit", body)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "CHECKOUT_NOT_ACTIVE")
}

func TestSessionRecoveryAcrossRestart(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	recovery := &Recovery{R: client, TTL: time.Hour}

	env := newTestEnv(t, testLookup(), recovery)
	id := env.createSession(t)
	env.do(t, http.MethodPost, "/sessions/"+id+"/items", `{"barcode":"111","quantity":2}`)

	// a fresh manager over the same Redis simulates a process restart
	restarted := newTestEnv(t, testLookup(), recovery)
	rec := restarted.do(t, http.MethodGet, "/sessions/"+id+"/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCart(t, rec)
	require.Len(t, cart.Items, 1)
	require.Equal(t, 2, cart.Items[0].Quantity)

	rec = restarted.do(t, http.MethodDelete, "/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	third := newTestEnv(t, testLookup(), recovery)
	rec = third.do(t, http.MethodGet, "/sessions/"+id+"/cart", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionNotFound(t *testing.T) {
	env := newTestEnv(t, testLookup(), nil)
	rec := env.do(t, http.MethodGet, "/sessions/nope/cart", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "SESSION_NOT_FOUND")
}
