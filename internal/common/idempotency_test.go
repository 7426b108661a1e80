package common_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/common"
)

func newIdem(t *testing.T) common.Idem {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return common.Idem{R: client, TTL: time.Hour}
}

func idemRequest(handler http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/commit", nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyBlocksReplayAfterSuccess(t *testing.T) {
	idem := newIdem(t)
	var calls atomic.Int64
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))

	rec := idemRequest(handler, "k-1")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = idemRequest(handler, "k-1")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "IDEMPOTENT_REPLAY")
	require.Equal(t, int64(1), calls.Load())
}

func TestIdempotencyAllowsRetryAfterFailure(t *testing.T) {
	idem := newIdem(t)
	var calls atomic.Int64
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rec := idemRequest(handler, "k-2")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	// the failed commit released the key, so the retry reaches the handler
	rec = idemRequest(handler, "k-2")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, int64(2), calls.Load())

	rec = idemRequest(handler, "k-2")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, int64(2), calls.Load())
}

func TestIdempotencyWithoutKeyPassesThrough(t *testing.T) {
	idem := newIdem(t)
	var calls atomic.Int64
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))

	idemRequest(handler, "")
	idemRequest(handler, "")
	require.Equal(t, int64(2), calls.Load())
}
