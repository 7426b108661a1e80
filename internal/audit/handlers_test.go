package audit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestListAuditLogs(t *testing.T) {
	store := &stubStore{}
	for i := 0; i < 3; i++ {
		require.NoError(t, store.InsertAuditLog(nil, Entry{
			ActorKind: string(ActorKindUser),
			Action:    "POST /api/v1/products",
			CreatedAt: time.Now(),
		}))
	}

	r := chi.NewRouter()
	r.Get("/admin/audit-logs", Handler{Store: store}.List)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/audit-logs?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []Entry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
}

func TestMiddlewareRecordsAfterHandler(t *testing.T) {
	store := &stubStore{}
	recorder := HTTPRecorder{Service: &Service{Store: store, Enabled: true}}

	r := chi.NewRouter()
	r.With(recorder.Middleware(HTTPConfig{
		ResourceType:    "products",
		ResourceIDParam: "barcode",
	})).Delete("/products/{barcode}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/products/8901030721273", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	require.Equal(t, "products", entry.ResourceType)
	require.NotNil(t, entry.ResourceID)
	require.Equal(t, "8901030721273", *entry.ResourceID)
}
