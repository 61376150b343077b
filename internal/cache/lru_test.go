package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCacheEviction(t *testing.T) {
	c, _ := newTestCache(3, time.Hour)
	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")

	// touch key1 so key2 becomes the oldest
	_, ok := c.Get("key1")
	assert.True(t, ok)
	c.Set("key4", "value4")

	_, ok = c.Get("key2")
	assert.False(t, ok, "key2 should have been evicted")
	for _, k := range []string{"key1", "key3", "key4"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestLRUCacheTTLExpiration(t *testing.T) {
	c, clock := newTestCache(10, 50*time.Millisecond)
	c.Set("key1", "value1")

	v, ok := c.Get("key1")
	assert.True(t, ok)
	assert.Equal(t, "value1", v)

	clock.advance(60 * time.Millisecond)
	_, ok = c.Get("key1")
	assert.False(t, ok)
	assert.Zero(t, c.Size())
}

func TestLRUCacheOverwriteRefreshesTTL(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("k", "old")
	clock.advance(50 * time.Second)
	c.Set("k", "new")
	clock.advance(50 * time.Second)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, 1, c.Size())
}

func TestLRUCachePurgeAndDelete(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Delete("a")
	assert.Equal(t, 1, c.Size())

	c.Purge()
	assert.Zero(t, c.Size())
	_, ok := c.Get("b")
	assert.False(t, ok)

	c.Set("c", "3")
	assert.Equal(t, 1, c.Size())
}

func TestLRUCacheStats(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	st := c.Stats()
	assert.Equal(t, Stats{Size: 1, Hits: 2, Misses: 1}, st)
}

func TestManagerCleanNow(t *testing.T) {
	c, clock := newTestCache(10, time.Second)
	c.Set("a", "1")
	c.Set("b", "2")
	clock.advance(2 * time.Second)
	c.Set("c", "3")

	m := NewManager(nil)
	m.Register(c)
	assert.Equal(t, 2, m.CleanNow())
	assert.Equal(t, 1, c.Size())
}

func TestManagerStartStop(t *testing.T) {
	m := NewManager(nil)
	m.Register(NewLRUCache[int](1, time.Millisecond))
	m.StartCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.Stop()
	m.Stop()
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	m.Stop()
	m.StartCleanup(time.Millisecond)
	m.Stop()
}

func TestLRUCacheConcurrentAccess(t *testing.T) {
	c := NewLRUCache[int](50, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%75)
				c.Set(key, i)
				c.Get(key)
				if i%50 == 0 {
					c.Purge()
				}
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Size(), 50)
}
