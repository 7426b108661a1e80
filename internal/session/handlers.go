package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/checkout"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/receipt"
)

// ItemLookup resolves barcodes for explicit cart additions.
type ItemLookup interface {
	LookupByBarcode(ctx context.Context, barcode string) (catalog.Item, error)
}

// SalesRecorder records committed receipts into the sales ledger.
type SalesRecorder interface {
	RecordReceipt(ctx context.Context, rec checkout.Receipt) error
}

// Emitter publishes domain events after state changes.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Handler exposes the session, cart, scan, and checkout endpoints.
type Handler struct {
	manager   *Manager
	catalog   ItemLookup
	submitter checkout.Submitter
	sales     SalesRecorder
	emitter   Emitter
	validate  *validator.Validate
	log       *zerolog.Logger
}

// HandlerConfig groups Handler dependencies. Sales and Emitter are optional;
// checkout still commits without them.
type HandlerConfig struct {
	Manager   *Manager
	Catalog   ItemLookup
	Submitter checkout.Submitter
	Sales     SalesRecorder
	Emitter   Emitter
	Logger    *zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		manager:   cfg.Manager,
		catalog:   cfg.Catalog,
		submitter: cfg.Submitter,
		sales:     cfg.Sales,
		emitter:   cfg.Emitter,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       cfg.Logger,
	}
}

type lineView struct {
	Barcode  string  `json:"barcode"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Subtotal float64 `json:"subtotal"`
}

type cartView struct {
	Items []lineView `json:"items"`
	Total float64    `json:"total"`
}

func (h *Handler) cartViewOf(s *Session) cartView {
	snapshot := s.Snapshot()
	items := make([]lineView, 0, len(snapshot))
	for _, l := range snapshot {
		sub := pricing.LineSubtotal(pricing.Line{Qty: l.Qty, UnitPrice: l.UnitPrice})
		items = append(items, lineView{
			Barcode:  l.Barcode,
			Name:     l.Name,
			Price:    pricing.Rupees(l.UnitPrice),
			Quantity: l.Qty,
			Subtotal: pricing.Rupees(sub),
		})
	}
	return cartView{Items: items, Total: pricing.Rupees(s.Total())}
}

// Create handles POST /api/v1/sessions.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "session manager not configured", nil)
		return
	}
	s := h.manager.Create()
	if obs.SessionsActive != nil {
		obs.SessionsActive.Inc()
	}
	h.emit(r, events.TopicSessionOpened, s.ID, map[string]any{"session_id": s.ID})
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
		"session_id": s.ID,
		"created_at": s.CreatedAt,
	}})
}

// Close handles DELETE /api/v1/sessions/{id}.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	s, ok := h.resolve(w, r)
	if !ok {
		return
	}
	h.manager.Drop(r.Context(), s.ID)
	if obs.SessionsActive != nil {
		obs.SessionsActive.Dec()
	}
	h.emit(r, events.TopicSessionClosed, s.ID, map[string]any{"session_id": s.ID})
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"closed": true}})
}

// Cart handles GET /api/v1/sessions/{id}/cart.
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.resolve(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.cartViewOf(s)})
}

type addItemRequest struct {
	Barcode  string `json:"barcode" validate:"required,min=1,max=64"`
	Quantity int    `json:"quantity" validate:"omitempty,gte=1,lte=10000"`
}

// AddItem handles POST /api/v1/sessions/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.catalog.LookupByBarcode(r.Context(), req.Barcode)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) || errors.Is(err, catalog.ErrInvalidInput) {
			common.JSONError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "product lookup failed", nil)
		return
	}
	s.AddItemWithQuantity(r.Context(), item, req.Quantity)
	common.JSON(w, http.StatusOK, map[string]any{"data": h.cartViewOf(s)})
}

type setQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=10000"`
}

// SetQuantity handles PATCH /api/v1/sessions/{id}/items/{barcode}. Quantity
// zero removes the line.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	s, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var req setQuantityRequest
	if !h.decode(w, r, &req) {
		return
	}
	barcode := chi.URLParam(r, "barcode")
	found := false
	for _, l := range s.Snapshot() {
		if l.Barcode == barcode {
			found = true
			break
		}
	}
	if !found {
		common.JSONError(w, http.StatusNotFound, "LINE_NOT_FOUND", "barcode not in cart", nil)
		return
	}
	s.SetQuantity(r.Context(), barcode, req.Quantity)
	common.JSON(w, http.StatusOK, map[string]any{"data": h.cartViewOf(s)})
}

// RemoveItem handles DELETE /api/v1/sessions/{id}/items/{barcode}. Removing
// an absent line is a no-op.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.resolve(w, r)
	if !ok {
		return
	}
	s.RemoveItem(r.Context(), chi.URLParam(r, "barcode"))
	common.JSON(w, http.StatusOK, map[string]any{"data": h.cartViewOf(s)})
}

// ClearCart handles DELETE /api/v1/sessions/{id}/cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.resolve(w, r)
	if !ok {
		return
	}
	s.Clear(r.Context())
	common.JSON(w, http.StatusOK, map[string]any{"data": h.cartViewOf(s)})
}

type scanRequest struct {
	Barcode string `json:"barcode" validate:"required,min=1,max=64"`
}

// Scan handles POST /api/v1/sessions/{id}/scan with one decoded barcode. A
// match lands in the cart; a miss answers 200 with matched=false so noisy
// scanners never surface as errors.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	s, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var req scanRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, matched, err := s.ResolveScan(r.Context(), req.Barcode)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "scan resolution failed", nil)
		return
	}
	if !matched {
		common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"matched": false,
			"message": "Barcode not found in database",
		}})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"matched": true,
		"product": catalog.ViewOf(item),
		"cart":    h.cartViewOf(s),
	}})
}

type scanBatchRequest struct {
	Barcodes []string `json:"barcodes" validate:"required,min=1,max=500,dive,min=1,max=64"`
}

// ScanBatch handles POST /api/v1/sessions/{id}/scan/batch, feeding decoded
// barcodes into the session's scan stream. Ingestion is asynchronous: matches
// land in the cart as the stream drains, outcomes surface on the event
// stream. A saturated stream buffer drops the excess scans.
func (h *Handler) ScanBatch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var req scanBatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	accepted := 0
	for _, barcode := range req.Barcodes {
		if s.PushScan(barcode) {
			accepted++
		}
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]any{
		"accepted": accepted,
		"dropped":  len(req.Barcodes) - accepted,
	}})
}

type scanEventView struct {
	Barcode string        `json:"barcode"`
	Matched bool          `json:"matched"`
	Product *catalog.View `json:"product,omitempty"`
}

// ScanStream handles GET /api/v1/sessions/{id}/scan/events as a server-sent
// event stream of scan outcomes. The stream ends when the session closes or
// the client disconnects.
func (h *Handler) ScanStream(w http.ResponseWriter, r *http.Request) {
	s, ok := h.resolve(w, r)
	if !ok {
		return
	}
	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "response writer does not support streaming", nil)
		return
	}
	stream := s.ScanEvents()
	if stream == nil {
		common.JSONError(w, http.StatusConflict, "SCAN_STREAM_CLOSED", "session has no open scan stream", nil)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-stream:
			if !open {
				return
			}
			view := scanEventView{Barcode: ev.Barcode, Matched: ev.Matched}
			if ev.Matched {
				product := catalog.ViewOf(ev.Item)
				view.Product = &product
			}
			payload, err := json.Marshal(view)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// BeginCheckout handles POST /api/v1/sessions/{id}/checkout.
func (h *Handler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if err := s.BeginCheckout(h.submitter); err != nil {
		h.writeCheckoutError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"state": s.CheckoutState().String(),
		"total": pricing.Rupees(s.Total()),
	}})
}

// CheckoutState handles GET /api/v1/sessions/{id}/checkout.
func (h *Handler) CheckoutState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.resolve(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"state": s.CheckoutState().String(),
		"total": pricing.Rupees(s.Total()),
	}})
}

type submitPaymentRequest struct {
	PaymentMethod string  `json:"payment_method" validate:"required"`
	AmountPaid    float64 `json:"amount_paid" validate:"gte=0"`
	CustomerName  string  `json:"customer_name" validate:"omitempty,max=200"`
	CustomerPhone string  `json:"customer_phone" validate:"omitempty,max=32"`
	Quick         bool    `json:"quick"`
}

// SubmitPayment handles POST /api/v1/sessions/{id}/checkout/submit. A
// successful commit clears the cart and answers with the stored receipt; a
// failed commit leaves the cart intact for another attempt.
func (h *Handler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var req submitPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := pricing.FromFloat(req.AmountPaid)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_AMOUNT", "amount paid is out of range", nil)
		return
	}
	rec, err := s.SubmitPayment(r.Context(), checkout.PaymentInput{
		Method:         checkout.Method(req.PaymentMethod),
		AmountTendered: amount,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		Quick:          req.Quick,
	})
	if err != nil {
		if obs.CheckoutTotal != nil {
			obs.CheckoutTotal.WithLabelValues("failure").Inc()
		}
		h.writeCheckoutError(w, err)
		return
	}
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues("success").Inc()
	}
	if obs.ReceiptCreatedTotal != nil {
		obs.ReceiptCreatedTotal.Inc()
	}
	h.afterCommit(r, rec)
	common.JSON(w, http.StatusCreated, map[string]any{"data": receipt.ViewOf(rec)})
}

// afterCommit runs the post-commit side effects. The receipt is already
// durable, so failures here are logged and never fail the request.
func (h *Handler) afterCommit(r *http.Request, rec checkout.Receipt) {
	ctx := r.Context()
	if h.sales != nil {
		if err := h.sales.RecordReceipt(ctx, rec); err != nil && h.log != nil {
			h.log.Warn().Err(err).Str("receipt_id", rec.ReceiptID).Msg("sales recording failed")
		}
	}
	h.emit(r, events.TopicReceiptCreated, rec.ReceiptID, receipt.ViewOf(rec))
}

func (h *Handler) emit(r *http.Request, topic, aggregateID string, payload any) {
	if h.emitter == nil {
		return
	}
	if _, err := h.emitter.Emit(r.Context(), topic, aggregateID, payload); err != nil && h.log != nil {
		h.log.Warn().Err(err).Str("topic", topic).Msg("event emit failed")
	}
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	if h.manager == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "session manager not configured", nil)
		return nil, false
	}
	s, err := h.manager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", nil)
		return nil, false
	}
	return s, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid request payload", nil)
		return false
	}
	return true
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		common.JSONError(w, http.StatusBadRequest, "CART_EMPTY", "cart has no items", nil)
	case errors.Is(err, checkout.ErrInvalidPayment):
		common.JSONError(w, http.StatusBadRequest, "INVALID_PAYMENT", err.Error(), nil)
	case errors.Is(err, checkout.ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "CHECKOUT_NOT_ACTIVE", "no checkout awaiting payment", nil)
	case errors.Is(err, checkout.ErrCommitFailed):
		common.JSONError(w, http.StatusBadGateway, "COMMIT_FAILED", "receipt could not be stored", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
	}
}
