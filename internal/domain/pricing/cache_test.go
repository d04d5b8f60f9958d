package pricing

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[CacheKey]ExactPrice
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[CacheKey]ExactPrice{}}
}

func (m *mapCache) Get(_ context.Context, key CacheKey) (ExactPrice, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.entries[key]
	return p, ok, nil
}

func (m *mapCache) Set(_ context.Context, key CacheKey, price ExactPrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = price
	return nil
}

func (m *mapCache) Delete(_ context.Context, key CacheKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *mapCache) Invalidate(_ context.Context, carID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if k.CarID == carID {
			delete(m.entries, k)
		}
	}
	return nil
}

func (m *mapCache) Flush(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = map[CacheKey]ExactPrice{}
	return nil
}

func TestCachedLookupServesHits(t *testing.T) {
	key := CacheKey{CarID: "fiat-500", Month: time.June, Duration: 3}
	next := &fakeExact{prices: map[CacheKey]float64{key: 150}}
	cached := &CachedExactLookup{Next: next, Cache: newMapCache()}
	q := ExactQuery{CarID: "fiat-500", Month: time.June, Duration: 3}

	for i := 0; i < 3; i++ {
		price, err := cached.ExactPrice(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, 150.0, price.Price)
	}
	assert.Len(t, next.calls, 1)

	require.NoError(t, cached.Invalidate(context.Background(), "fiat-500"))
	_, err := cached.ExactPrice(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, next.calls, 2)
}

func TestCachedLookupDoesNotCacheMisses(t *testing.T) {
	next := &fakeExact{}
	cached := &CachedExactLookup{Next: next, Cache: newMapCache()}
	q := ExactQuery{CarID: "fiat-500", Month: time.June, Duration: 3}

	_, err := cached.ExactPrice(context.Background(), q)
	assert.ErrorIs(t, err, ErrNoMatch)
	_, err = cached.ExactPrice(context.Background(), q)
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Len(t, next.calls, 2)
}

func TestRefreshEvictsStaleEntry(t *testing.T) {
	cache := newMapCache()
	key := CacheKey{CarID: "fiat-500", Month: time.June, Duration: 3}
	require.NoError(t, cache.Set(context.Background(), key, ExactPrice{Price: 99}))
	cached := &CachedExactLookup{Next: &fakeExact{}, Cache: cache}

	_, err := cached.Refresh(context.Background(), ExactQuery{CarID: "fiat-500", Month: time.June, Duration: 3})
	assert.ErrorIs(t, err, ErrNoMatch)
	_, ok, _ := cache.Get(context.Background(), key)
	assert.False(t, ok)
}

func TestFlushDropsEverything(t *testing.T) {
	cache := newMapCache()
	cached := &CachedExactLookup{Next: &fakeExact{}, Cache: cache}
	require.NoError(t, cache.Set(context.Background(), CacheKey{CarID: "a", Month: time.May, Duration: 1}, ExactPrice{Price: 1}))
	require.NoError(t, cache.Set(context.Background(), CacheKey{CarID: "b", Month: time.May, Duration: 1}, ExactPrice{Price: 1}))
	require.NoError(t, cached.Flush(context.Background()))
	assert.Empty(t, cache.entries)
}

func TestCacheKeyString(t *testing.T) {
	key := CacheKey{CarID: "fiat-500", Month: time.June, Duration: 3}
	assert.Equal(t, "fiat-500|6|3", key.String())
	assert.True(t, strings.HasPrefix(key.String(), "fiat-500|"))
}
