package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGetDelete(t *testing.T) {
	c := NewMemoryCache(10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", sample{Name: "a", Count: 1}, time.Minute))

	var got sample
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "a", got.Name)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	c := NewMemoryCache(10)
	ctx := context.Background()
	value := sample{Tags: []string{"a"}}
	require.NoError(t, c.Set(ctx, "k", value, time.Minute))

	var first sample
	require.NoError(t, c.Get(ctx, "k", &first))
	first.Tags[0] = "changed"

	var second sample
	require.NoError(t, c.Get(ctx, "k", &second))
	assert.Equal(t, "a", second.Tags[0])
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(10)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 1, time.Second))
	now = now.Add(2 * time.Second)

	var got int
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestMemoryCache_ZeroTTLIsNotStored(t *testing.T) {
	c := NewMemoryCache(10)
	require.NoError(t, c.Set(context.Background(), "k", 1, 0))
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_EvictsSoonestExpiring(t *testing.T) {
	c := NewMemoryCache(2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", 1, time.Second))
	require.NoError(t, c.Set(ctx, "long", 2, time.Hour))
	require.NoError(t, c.Set(ctx, "new", 3, time.Hour))

	assert.Equal(t, 2, c.Len())
	var got int
	assert.ErrorIs(t, c.Get(ctx, "short", &got), ErrCacheMiss)
	assert.NoError(t, c.Get(ctx, "long", &got))
	assert.NoError(t, c.Get(ctx, "new", &got))
}
