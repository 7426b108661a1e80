package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

// View is the wire shape of a product; price is expressed in rupees.
type View struct {
	Barcode string  `json:"barcode"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Stock   int     `json:"stock"`
}

// ViewOf converts a catalog item to its wire representation.
func ViewOf(item Item) View {
	return View{
		Barcode: item.Barcode,
		Name:    item.Name,
		Price:   pricing.Rupees(item.Price),
		Stock:   item.Stock,
	}
}

// ViewsOf converts a slice of items to views, never returning nil.
func ViewsOf(items []Item) []View {
	out := make([]View, 0, len(items))
	for _, item := range items {
		out = append(out, ViewOf(item))
	}
	return out
}

type createProductRequest struct {
	Barcode string  `json:"barcode" validate:"required,min=1,max=64"`
	Name    string  `json:"name" validate:"required,min=1,max=200"`
	Price   float64 `json:"price" validate:"gte=0"`
	Stock   int     `json:"stock" validate:"gte=0"`
}

type patchProductRequest struct {
	Name  *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Price *float64 `json:"price" validate:"omitempty,gte=0"`
	Stock *int     `json:"stock" validate:"omitempty,gte=0"`
}

// Handler exposes public catalog endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		service:  cfg.Service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// List handles GET /api/v1/products.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	items, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ViewsOf(items)})
}

// Get handles GET /api/v1/products/{barcode}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	item, err := h.service.LookupByBarcode(r.Context(), chi.URLParam(r, "barcode"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ViewOf(item)})
}

// Create handles POST /api/v1/products.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid product payload", validationDetails(err))
		return
	}
	price, err := pricing.FromFloat(req.Price)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_PRICE", "price is out of range", nil)
		return
	}
	item := Item{Barcode: req.Barcode, Name: req.Name, Price: price, Stock: req.Stock}
	if err := h.service.Create(r.Context(), item); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": ViewOf(item)})
}

// Patch handles PATCH /api/v1/products/{barcode}.
func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	var req patchProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid product payload", validationDetails(err))
		return
	}
	upd := Update{Name: req.Name, Stock: req.Stock}
	if req.Price != nil {
		price, err := pricing.FromFloat(*req.Price)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_PRICE", "price is out of range", nil)
			return
		}
		upd.Price = &price
	}
	item, err := h.service.Patch(r.Context(), chi.URLParam(r, "barcode"), upd)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ViewOf(item)})
}

// Delete handles DELETE /api/v1/products/{barcode}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "barcode")); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"deleted": true}})
}

// Validate handles GET /api/v1/barcode/validate/{barcode}. Unknown barcodes
// answer 200 with valid=false rather than an error status.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	item, err := h.service.LookupByBarcode(r.Context(), chi.URLParam(r, "barcode"))
	if errors.Is(err, ErrNotFound) {
		common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"valid":   false,
			"message": "Barcode not found in database",
		}})
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"valid":   true,
		"product": ViewOf(item),
	}})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code := appErr.Code
		if code == "" {
			code = "INTERNAL"
		}
		common.JSONError(w, status, code, appErr.Message, nil)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found", nil)
	case errors.Is(err, ErrDuplicateBarcode):
		common.JSONError(w, http.StatusConflict, "BARCODE_EXISTS", "a product with this barcode already exists", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected catalog failure", nil)
	}
}

func validationDetails(err error) any {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return nil
	}
	fields := make(map[string]string, len(invalid))
	for _, fe := range invalid {
		fields[fe.Field()] = fe.Tag()
	}
	return map[string]any{"fields": fields}
}
