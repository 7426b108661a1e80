package receipt

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-pos/internal/checkout"
	"github.com/noah-isme/backend-pos/internal/common"
)

// Reader is the slice of the store the read endpoints need.
type Reader interface {
	List(ctx context.Context) ([]checkout.Receipt, error)
	Get(ctx context.Context, receiptID string) (checkout.Receipt, error)
	Delete(ctx context.Context, receiptID string) error
}

// Handler exposes receipt read and admin endpoints.
type Handler struct {
	Store Reader
}

// List returns all receipts, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.Store.List(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "RECEIPT_LIST_FAILED", "could not list receipts", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ViewsOf(receipts)})
}

// Get returns one receipt by its public identifier.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "receiptID")
	rec, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "RECEIPT_NOT_FOUND", "receipt not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "RECEIPT_GET_FAILED", "could not load receipt", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ViewOf(rec)})
}

// Delete removes a receipt.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "receiptID")
	if err := h.Store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "RECEIPT_NOT_FOUND", "receipt not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "RECEIPT_DELETE_FAILED", "could not delete receipt", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"status": "deleted"}})
}
