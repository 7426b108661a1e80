package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/obs"
)

type stubStore struct {
	entries []Entry
}

func (s *stubStore) InsertAuditLog(_ context.Context, entry Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubStore) ListAuditLogs(_ context.Context, limit, offset int) ([]Entry, error) {
	if offset >= len(s.entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.entries) {
		end = len(s.entries)
	}
	return s.entries[offset:end], nil
}

func TestServiceRecord(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true, SamplingRate: 1}
	userID := uuid.NewString()

	req := httptest.NewRequest(http.MethodPost, "https://api.test/api/v1/products?source=test", nil)
	req.Header.Set("User-Agent", "tester")
	req.Header.Set("X-Request-ID", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"
	ctx := common.WithUserID(req.Context(), userID)
	ctx = obs.WithRoutePattern(ctx, "/api/v1/products")
	req = req.WithContext(ctx)

	err := svc.Record(req.Context(), Actor{Kind: ActorKindUser, UserID: &userID}, "", "", "8901234567890", req, http.StatusCreated, nil)
	require.NoError(t, err)
	require.Len(t, store.entries, 1)

	entry := store.entries[0]
	require.Equal(t, "POST /api/v1/products", entry.Action)
	require.Equal(t, "products", entry.ResourceType)
	require.Equal(t, string(ActorKindUser), entry.ActorKind)
	require.NotNil(t, entry.ActorUserID)
	require.Equal(t, userID, *entry.ActorUserID)
	require.NotNil(t, entry.ResourceID)
	require.Equal(t, "8901234567890", *entry.ResourceID)
	require.Equal(t, http.StatusCreated, entry.Status)
	require.JSONEq(t, `{"query":"source=test"}`, string(entry.Metadata))
}

func TestServiceRecordDisabled(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: false}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/111", nil)
	err := svc.Record(req.Context(), Actor{Kind: ActorKindSystem}, "", "", "", req, 0, nil)
	require.NoError(t, err)
	require.Empty(t, store.entries)
}

func TestServiceRecordAnonymousFallback(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/receipts/abc", nil)
	err := svc.Record(req.Context(), Actor{Kind: ActorKind("bogus")}, "", "", "", req, http.StatusOK, nil)
	require.NoError(t, err)
	require.Len(t, store.entries, 1)
	require.Equal(t, string(ActorKindAnonymous), store.entries[0].ActorKind)
}
