package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCachePutGet(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	_, ok := c.Get(ctx, "helper-bot")
	assert.False(t, ok)

	c.Put(ctx, "helper-bot", []byte(`{"name":"helper-bot"}`), "core", 0)
	value, ok := c.Get(ctx, "helper-bot")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"name":"helper-bot"}`), value)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	current := time.Now()
	c.now = func() time.Time { return current }

	c.Put(ctx, "helper-bot", []byte("v1"), "core", 5*time.Minute)

	current = current.Add(4 * time.Minute)
	_, ok := c.Get(ctx, "helper-bot")
	assert.True(t, ok)

	current = current.Add(2 * time.Minute)
	_, ok = c.Get(ctx, "helper-bot")
	assert.False(t, ok)

	// the expired entry must also be gone from the source index
	assert.Zero(t, c.InvalidateBySource(ctx, "core"))
}

func TestMemoryCacheInvalidate(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	c.Put(ctx, "helper-bot", []byte("v1"), "core", 0)
	c.Invalidate(ctx, "helper-bot")
	_, ok := c.Get(ctx, "helper-bot")
	assert.False(t, ok)

	// invalidating an absent entry is a no-op
	c.Invalidate(ctx, "helper-bot")
}

func TestMemoryCacheInvalidateBySource(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	c.Put(ctx, "alpha", []byte("a"), "core", 0)
	c.Put(ctx, "beta", []byte("b"), "core", 0)
	c.Put(ctx, "gamma", []byte("c"), "community", 0)

	count := c.InvalidateBySource(ctx, "core")
	assert.Equal(t, 2, count)

	_, ok := c.Get(ctx, "alpha")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "beta")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "gamma")
	assert.True(t, ok)

	assert.Zero(t, c.InvalidateBySource(ctx, "core"))
}

func TestMemoryCachePutReindexesSource(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	c.Put(ctx, "helper-bot", []byte("v1"), "core", 0)
	// the agent moved to a different source
	c.Put(ctx, "helper-bot", []byte("v2"), "community", 0)

	assert.Zero(t, c.InvalidateBySource(ctx, "core"))
	assert.Equal(t, 1, c.InvalidateBySource(ctx, "community"))
}
