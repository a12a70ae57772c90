package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_BasicGetPut(t *testing.T) {
	c := NewLRU[uint64, uint32](10, 0)

	c.Put(100, 0x1d00ffff)
	c.Put(101, 0x1c7fff80)

	v, ok := c.Get(100)
	require.True(t, ok)
	assert.Equal(t, uint32(0x1d00ffff), v)

	v, ok = c.Get(101)
	require.True(t, ok)
	assert.Equal(t, uint32(0x1c7fff80), v)

	_, ok = c.Get(102)
	assert.False(t, ok)
}

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU[uint64, int](3, 0)

	c.Put(1, 1)
	c.Put(2, 2)
	c.Put(3, 3)

	// touch 1 so 2 becomes the oldest
	c.Get(1)
	c.Put(4, 4)

	_, ok := c.Get(2)
	assert.False(t, ok, "2 should have been evicted")

	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 3, c.Len())
}

func TestLRU_TTLExpiration(t *testing.T) {
	c := NewLRU[uint64, bool](10, 5*time.Minute)

	now := time.Now()
	c.nowFn = func() time.Time { return now }
	c.Put(7, true)

	v, ok := c.Get(7)
	assert.True(t, ok)
	assert.True(t, v)

	c.nowFn = func() time.Time { return now.Add(6 * time.Minute) }
	_, ok = c.Get(7)
	assert.False(t, ok, "entry should have expired")
	assert.Equal(t, 0, c.Len())
}

func TestLRU_ZeroTTLNeverExpires(t *testing.T) {
	c := NewLRU[uint64, bool](10, 0)

	now := time.Now()
	c.nowFn = func() time.Time { return now }
	c.Put(7, true)

	c.nowFn = func() time.Time { return now.Add(24 * 365 * time.Hour) }
	_, ok := c.Get(7)
	assert.True(t, ok)
}

func TestLRU_UpdateExisting(t *testing.T) {
	c := NewLRU[uint64, int](10, time.Minute)

	c.Put(1, 1)
	c.Put(1, 2)

	v, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_Remove(t *testing.T) {
	c := NewLRU[uint64, int](10, 0)
	c.Put(1, 1)
	c.Remove(1)
	c.Remove(2)

	_, ok := c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestLRU_MinimumCapacity(t *testing.T) {
	c := NewLRU[uint64, int](0, 0)
	c.Put(1, 1)
	c.Put(2, 2)

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(2)
	assert.True(t, ok)
}

func TestLRU_Stats(t *testing.T) {
	c := NewLRU[uint64, bool](10, 0)
	c.Put(1, true)

	c.Get(1) // hit
	c.Get(1) // hit
	c.Get(9) // miss

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestLRU_GetHitDoesNotAllocate(t *testing.T) {
	c := NewLRU[uint64, int](1000, time.Minute)
	c.Put(42, 42)

	allocs := testing.AllocsPerRun(100, func() {
		c.Get(42)
	})
	assert.Equal(t, float64(0), allocs)
}
