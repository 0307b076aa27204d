package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type marketList struct {
	Symbols []string `json:"symbols"`
	Count   int      `json:"count"`
}

func TestMemoryCacheTypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	in := marketList{Symbols: []string{"BTC/USDT", "ETH/USDT"}, Count: 2}
	require.NoError(t, mc.Set(ctx, "markets:binance", in, time.Minute))

	var out marketList
	require.NoError(t, mc.Get(ctx, "markets:binance", &out))
	assert.Equal(t, in, out)

	var s string
	require.NoError(t, mc.Set(ctx, "plain", "value", time.Minute))
	require.NoError(t, mc.Get(ctx, "plain", &s))
	assert.Equal(t, "value", s)
}

func TestMemoryCacheMissAndExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	var v string
	assert.ErrorIs(t, mc.Get(ctx, "absent", &v), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "short", "x", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	assert.ErrorIs(t, mc.Get(ctx, "short", &v), ErrCacheMiss)
}

func TestMemoryCacheLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "lock:update:BTC:1d", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "lock:update:BTC:1d", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "lock:update:BTC:1d"))
	ok, _ = mc.TryLock(ctx, "lock:update:BTC:1d", time.Minute)
	assert.True(t, ok)
}

func TestMemoryCacheDeleteByPatternAndIncrement(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	_ = mc.Set(ctx, ManifestKey("BTC", "1h"), "a", 0)
	_ = mc.Set(ctx, ManifestKey("btc", "1d"), "b", 0)
	_ = mc.Set(ctx, ManifestKey("ETH", "1h"), "c", 0)

	require.NoError(t, mc.DeleteByPattern(ctx, ManifestPattern("btc")))
	exists, _ := mc.Exists(ctx, "manifest:BTC:1h", "manifest:BTC:1d")
	assert.False(t, exists)
	exists, _ = mc.Exists(ctx, "manifest:ETH:1h")
	assert.True(t, exists)

	n, err := mc.Increment(ctx, "requests")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, _ = mc.Increment(ctx, "requests")
	assert.Equal(t, int64(2), n)
}

func TestMemoryCacheEvictsLRU(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	_ = mc.Set(ctx, "a", 1, 0)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "b", 2, 0)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "c", 3, 0)

	exists, _ := mc.Exists(ctx, "a")
	assert.False(t, exists)
	typed, err := MGetTyped[int](ctx, mc, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"b": 2, "c": 3}, typed)
}
