package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-checkout/internal/domain"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, 10*time.Minute), mr
}

func TestSetThenGet(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()
	lines := []domain.CartLine{{
		UserID:    "u1",
		ProductID: "p1",
		UnitPrice: decimal.RequireFromString("10.00"),
		Quantity:  2,
	}}

	require.NoError(t, c.Set(ctx, "u1", lines))
	got, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ProductID)
	assert.True(t, got[0].UnitPrice.Equal(decimal.NewFromInt(10)))
}

func TestGetMiss(t *testing.T) {
	c, _ := setupTestRedis(t)
	_, err := c.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestGetInvalidJSON(t *testing.T) {
	c, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("cart:u1", "{not json"))
	_, err := c.Get(context.Background(), "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestSetEmptyCartIsCachedAsEmpty(t *testing.T) {
	c, mr := setupTestRedis(t)
	require.NoError(t, c.Set(context.Background(), "u1", nil))
	raw, err := mr.Get("cart:u1")
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestSetAppliesTTLWithJitter(t *testing.T) {
	c, mr := setupTestRedis(t)
	c.jitter = func() time.Duration { return 2 * time.Minute }

	require.NoError(t, c.Set(context.Background(), "u1", []domain.CartLine{}))
	assert.Equal(t, 12*time.Minute, mr.TTL("cart:u1"))

	mr.FastForward(13 * time.Minute)
	_, err := c.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestDelete(t *testing.T) {
	c, mr := setupTestRedis(t)
	require.NoError(t, c.Set(context.Background(), "u1", []domain.CartLine{}))
	require.NoError(t, c.Delete(context.Background(), "u1"))
	assert.False(t, mr.Exists("cart:u1"))
}

func TestRedisErrorsSurface(t *testing.T) {
	c, mr := setupTestRedis(t)
	mr.Close()
	_, err := c.Get(context.Background(), "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.Error(t, c.Ping(context.Background()))
}
