package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func testSnapshot() *models.SessionSnapshot {
	return &models.SessionSnapshot{
		ID: "sess_1",
		Items: []models.LineItem{
			{LineID: "l1", ProductID: "frame_a", Name: "Frame A", UnitPrice: decimal.RequireFromString("49.99"), Quantity: 2},
		},
		Subtotal:      decimal.RequireFromString("99.98"),
		Discount:      decimal.RequireFromString("9.98"),
		Total:         decimal.RequireFromString("90"),
		Customer:      &models.CustomerRef{ID: "cus_1", Name: "Alice"},
		Prescription:  &models.PrescriptionRef{ID: "rx_1", Type: models.PrescriptionSpectacle, CustomerID: "cus_1"},
		PaymentMethod: models.PaymentMethodCard,
		Deposit:       decimal.RequireFromString("20"),
		State:         models.CheckoutIdle,
		CreatedAt:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC),
	}
}

func TestRedisSessionCache_SetGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisSessionCache(client, time.Hour, logging.NewNop())
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testSnapshot()))

	assert.True(t, mr.Exists(sessionKey("sess_1")))
	assert.Equal(t, time.Hour, mr.TTL(sessionKey("sess_1")))

	got, err := cache.Get(ctx, "sess_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sess_1", got.ID)
	require.Len(t, got.Items, 1)
	assert.True(t, decimal.RequireFromString("49.99").Equal(got.Items[0].UnitPrice))
	assert.Equal(t, "rx_1", got.Prescription.ID)
	assert.Equal(t, "cus_1", got.Prescription.CustomerID)
	assert.Equal(t, models.PaymentMethodCard, got.PaymentMethod)
	assert.True(t, decimal.RequireFromString("20").Equal(got.Deposit))
}

func TestRedisSessionCache_Miss(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewRedisSessionCache(client, 0, logging.NewNop())

	got, err := cache.Get(context.Background(), "missing")

	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSessionCache_Expiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisSessionCache(client, time.Minute, logging.NewNop())
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testSnapshot()))
	mr.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx, "sess_1")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSessionCache_Delete(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisSessionCache(client, time.Hour, logging.NewNop())
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, testSnapshot()))
	require.NoError(t, cache.Delete(ctx, "sess_1"))

	assert.False(t, mr.Exists(sessionKey("sess_1")))
}

func TestRedisSessionCache_CorruptEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisSessionCache(client, time.Hour, logging.NewNop())
	require.NoError(t, mr.Set(sessionKey("sess_1"), "{not json"))

	_, err := cache.Get(context.Background(), "sess_1")
	assert.Error(t, err)
}

func TestRedisSessionCache_Unavailable(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisSessionCache(client, time.Hour, logging.NewNop())
	mr.SetError("ERR server unavailable")

	assert.Error(t, cache.Set(context.Background(), testSnapshot()))
}

func TestRedisIdempotencyStore(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisIdempotencyStore(client, 10*time.Minute)
	ctx := context.Background()

	ok, err := store.TryLock(ctx, "checkout", "key-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.TryLock(ctx, "checkout", "key-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, found, err := store.Recall(ctx, "checkout", "key-1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Remember(ctx, "checkout", "key-1", "ord_42"))
	val, found, err := store.Recall(ctx, "checkout", "key-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ord_42", val)
	assert.Equal(t, 10*time.Minute, mr.TTL(resultKey("checkout", "key-1")))

	// scopes are independent
	ok, err = store.TryLock(ctx, "other", "key-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisIdempotencyStore_Release(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRedisIdempotencyStore(client, 0)
	ctx := context.Background()

	ok, err := store.TryLock(ctx, "checkout", "key-2")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Release(ctx, "checkout", "key-2"))

	ok, err = store.TryLock(ctx, "checkout", "key-2")
	require.NoError(t, err)
	assert.True(t, ok)
}
