package sales

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

// View is the boundary shape of a recorded sale. Price is rupees.
type View struct {
	ID        int64     `json:"id"`
	Barcode   string    `json:"barcode"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

type recordRequest struct {
	Barcode string   `json:"barcode"`
	Name    string   `json:"name"`
	Price   *float64 `json:"price"`
}

// Handler exposes the sales and forecast endpoints.
type Handler struct {
	Svc *Service
}

// Record registers a single unit sale.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if strings.TrimSpace(req.Barcode) == "" || strings.TrimSpace(req.Name) == "" || req.Price == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "barcode, name and price are required", nil)
		return
	}
	price, err := pricing.FromFloat(*req.Price)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "price must be non-negative", nil)
		return
	}
	if err := h.Svc.RecordOne(r.Context(), req.Barcode, req.Name, price); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "SALE_RECORD_FAILED", "could not record sale", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]string{"message": "sale recorded"}})
}

// List returns all recorded sales, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Svc.List(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "SALES_LIST_FAILED", "could not list sales", nil)
		return
	}
	views := make([]View, 0, len(rows))
	for _, s := range rows {
		views = append(views, View{
			ID:        s.ID,
			Barcode:   s.Barcode,
			Name:      s.Name,
			Price:     pricing.Rupees(s.Price),
			Timestamp: s.Timestamp,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

// Forecast runs the stock analysis over recorded sales.
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	fc, err := h.Svc.Forecast(r.Context())
	if err != nil {
		if errors.Is(err, ErrNoSales) {
			common.JSON(w, http.StatusOK, map[string]any{
				"data": map[string]string{"message": "no sales data available for analysis"},
			})
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "FORECAST_FAILED", "could not run forecast", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": fc})
}
