package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkhaven/order-service/pkg/cache"
)

func TestLRU_SetGet(t *testing.T) {
	c := cache.New[string](10, time.Minute)

	c.Set("a", "one")
	c.Set("b", "two")

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "one", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestLRU_UpdateExisting(t *testing.T) {
	c := cache.New[int](10, time.Minute)

	c.Set("a", 1)
	c.Set("a", 2)

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, got)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := cache.New[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", 3)

	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_ExpiredEntryDroppedOnAccess(t *testing.T) {
	c := cache.New[int](10, 10*time.Millisecond)

	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestLRU_SetRefreshesExpiration(t *testing.T) {
	c := cache.New[int](10, 50*time.Millisecond)

	c.Set("a", 1)
	time.Sleep(30 * time.Millisecond)
	c.Set("a", 2)
	time.Sleep(30 * time.Millisecond)

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, got)
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	c := cache.New[int](100, time.Minute)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 1000; j++ {
				key := string(rune('a' + (j+n)%26))
				c.Set(key, j)
				c.Get(key)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	assert.LessOrEqual(t, c.Len(), 26)
}
