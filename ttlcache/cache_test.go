package ttlcache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/nip/ttlcache"
)

func epoch() time.Time { return time.Unix(0, 0) }

func TestCache_InsertWithTTL_ReturnsPreviousOnlyIfUnexpired(t *testing.T) {
	c := ttlcache.New[string, int](0, epoch())

	prev, ok := c.InsertWithTTL("k", 1, 10*time.Millisecond)
	require.False(t, ok)
	require.Zero(t, prev)

	// re-insert before expiry: prior value observed
	prev, ok = c.InsertWithTTL("k", 2, 100*time.Millisecond)
	require.True(t, ok)
	require.Equal(t, 1, prev)

	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestCache_InsertWithTTL_ExpiredPriorReturnsNone(t *testing.T) {
	now := epoch()
	c := ttlcache.New[string, int](0, now)

	c.InsertWithTTL("k", 1, 10*time.Millisecond)
	c.TryEvict(now.Add(20 * time.Millisecond))

	// entry was evicted; re-insert must not surface the stale value
	prev, ok := c.InsertWithTTL("k", 2, 0)
	require.False(t, ok)
	require.Zero(t, prev)
}

func TestCache_TryEvict_ExactSet(t *testing.T) {
	now := epoch()
	c := ttlcache.New[string, int](0, now)

	c.InsertWithTTL("a", 1, 10*time.Millisecond)
	c.InsertWithTTL("b", 2, 20*time.Millisecond)
	c.InsertWithTTL("c", 3, 30*time.Millisecond)

	evicted := c.TryEvict(now.Add(15 * time.Millisecond))
	assert.Len(t, evicted, 1)
	assert.Equal(t, 1, evicted["a"])

	if _, ok := c.Get("b"); !ok {
		t.Fatal("b should still be get-visible")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("c should still be get-visible")
	}
}

func TestCache_ReinsertWithLongerTTL_ExtendsLife(t *testing.T) {
	now := epoch()
	c := ttlcache.New[string, int](0, now)

	c.InsertWithTTL("k", 1, 10*time.Millisecond)
	c.InsertWithTTL("k", 2, 100*time.Millisecond) // stale tombstone at +10ms remains in graveyard

	evicted := c.TryEvict(now.Add(20 * time.Millisecond))
	assert.Empty(t, evicted, "key must survive past the original (stale) TTL")

	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, 2, v)

	evicted = c.TryEvict(now.Add(200 * time.Millisecond))
	assert.Equal(t, 2, evicted["k"])
}

func TestCache_ImmortalEntryNeverEvicted(t *testing.T) {
	now := epoch()
	c := ttlcache.New[string, int](0, now)

	c.Insert("k", 1)
	evicted := c.TryEvict(now.Add(time.Hour))
	assert.Empty(t, evicted)

	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestCache_Remove(t *testing.T) {
	now := epoch()
	c := ttlcache.New[string, int](0, now)

	c.InsertWithTTL("k", 1, 10*time.Millisecond)

	v, ok := c.Remove("k")
	require.True(t, ok)
	require.Equal(t, 1, v)

	_, ok = c.Remove("k")
	require.False(t, ok)
}

func TestCache_NewRejectsNonPositiveDefaultTTL(t *testing.T) {
	assert.Panics(t, func() {
		ttlcache.New[string, int](-time.Millisecond, epoch())
	})
}

func TestCache_InsertWithTTL_RejectsNonPositiveTTL(t *testing.T) {
	c := ttlcache.New[string, int](0, epoch())
	assert.Panics(t, func() {
		c.InsertWithTTL("k", 1, -time.Millisecond)
	})
}

func TestCache_TryEvict_RequiresStrictAdvance(t *testing.T) {
	now := epoch()
	c := ttlcache.New[string, int](0, now)
	assert.Panics(t, func() {
		c.TryEvict(now)
	})
}

func TestCache_Stats(t *testing.T) {
	now := epoch()
	c := ttlcache.New[string, int](0, now)
	c.Insert("k", 1)

	c.Get("k")
	c.Get("missing")

	hits, misses, _ := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}
