package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/pricing"
)

type countingQuerier struct {
	*fakeQuerier
	gets int
}

func (c *countingQuerier) GetProductByBarcode(ctx context.Context, barcode string) (Item, error) {
	c.gets++
	return c.fakeQuerier.GetProductByBarcode(ctx, barcode)
}

func newCacheForTest(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestLookupByBarcodeReadThroughCache(t *testing.T) {
	q := &countingQuerier{fakeQuerier: newFakeQuerier()}
	q.items["444"] = Item{Barcode: "444", Name: "Tata Salt 1kg", Price: pricing.Money(2500), Stock: 30}

	svc, err := NewService(ServiceConfig{Queries: q, Cache: newCacheForTest(t)})
	require.NoError(t, err)

	ctx := context.Background()
	first, err := svc.LookupByBarcode(ctx, "444")
	require.NoError(t, err)
	second, err := svc.LookupByBarcode(ctx, "444")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, q.gets)
}

func TestPatchEvictsCachedProduct(t *testing.T) {
	q := &countingQuerier{fakeQuerier: newFakeQuerier()}
	q.items["555"] = Item{Barcode: "555", Name: "Parle-G Biscuit 50g", Price: pricing.Money(1000), Stock: 50}

	svc, err := NewService(ServiceConfig{Queries: q, Cache: newCacheForTest(t)})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.LookupByBarcode(ctx, "555")
	require.NoError(t, err)

	newStock := 5
	_, err = svc.Patch(ctx, "555", Update{Stock: &newStock})
	require.NoError(t, err)

	item, err := svc.LookupByBarcode(ctx, "555")
	require.NoError(t, err)
	require.Equal(t, 5, item.Stock)
	require.Equal(t, 2, q.gets)
}

func TestLookupByBarcodeRequiresBarcode(t *testing.T) {
	svc, err := NewService(ServiceConfig{Queries: newFakeQuerier()})
	require.NoError(t, err)

	_, err = svc.LookupByBarcode(context.Background(), "  ")
	require.ErrorIs(t, err, ErrInvalidInput)
}
