package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainpricing "carhire/internal/domain/pricing"
)

type tableKey struct {
	carID    string
	month    time.Month
	duration int
}

// PriceTable keeps exact prices per car, month and duration.
type PriceTable struct {
	mu    sync.RWMutex
	items map[tableKey]domainpricing.TableEntry
}

func NewPriceTable() *PriceTable {
	return &PriceTable{items: make(map[tableKey]domainpricing.TableEntry)}
}

// Price returns domainpricing.ErrNoMatch when no entry exists.
func (t *PriceTable) Price(ctx context.Context, carID string, month time.Month, duration int) (domainpricing.TableEntry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.items[tableKey{carID: carID, month: month, duration: duration}]
	if !ok {
		return domainpricing.TableEntry{}, domainpricing.ErrNoMatch
	}
	return entry, nil
}

func (t *PriceTable) ListByCar(ctx context.Context, carID string) ([]domainpricing.TableEntry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []domainpricing.TableEntry
	for key, entry := range t.items {
		if key.carID == carID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].Duration < out[j].Duration
	})
	return out, nil
}

// Upsert validates every entry before writing any.
func (t *PriceTable) Upsert(ctx context.Context, entries []domainpricing.TableEntry) error {
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return err
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, entry := range entries {
		t.items[tableKey{carID: entry.CarID, month: entry.Month, duration: entry.Duration}] = entry
	}
	return nil
}

// ConfigStore holds the admin-edited pricing configuration.
type ConfigStore struct {
	mu  sync.RWMutex
	cfg domainpricing.Config
}

func NewConfigStore(cfg domainpricing.Config) *ConfigStore {
	return &ConfigStore{cfg: cfg}
}

func (s *ConfigStore) PricingConfig(ctx context.Context) (domainpricing.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, nil
}

func (s *ConfigStore) SavePricingConfig(ctx context.Context, cfg domainpricing.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	return nil
}

type cacheEntry struct {
	price   domainpricing.ExactPrice
	expires time.Time
}

// PriceCache is a process-local exact price cache. A zero TTL keeps entries
// until they are invalidated.
type PriceCache struct {
	TTL time.Duration
	Now func() time.Time

	mu    sync.Mutex
	items map[domainpricing.CacheKey]cacheEntry
}

func NewPriceCache(ttl time.Duration) *PriceCache {
	return &PriceCache{TTL: ttl, items: make(map[domainpricing.CacheKey]cacheEntry)}
}

func (c *PriceCache) Get(ctx context.Context, key domainpricing.CacheKey) (domainpricing.ExactPrice, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.items[key]
	if !ok {
		return domainpricing.ExactPrice{}, false, nil
	}
	if !entry.expires.IsZero() && !c.now().Before(entry.expires) {
		delete(c.items, key)
		return domainpricing.ExactPrice{}, false, nil
	}
	return entry.price, true, nil
}

func (c *PriceCache) Set(ctx context.Context, key domainpricing.CacheKey, price domainpricing.ExactPrice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cacheEntry{price: price}
	if c.TTL > 0 {
		entry.expires = c.now().Add(c.TTL)
	}
	if c.items == nil {
		c.items = make(map[domainpricing.CacheKey]cacheEntry)
	}
	c.items[key] = entry
	return nil
}

func (c *PriceCache) Delete(ctx context.Context, key domainpricing.CacheKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

// Invalidate drops every entry of one car.
func (c *PriceCache) Invalidate(ctx context.Context, carID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if key.CarID == carID {
			delete(c.items, key)
		}
	}
	return nil
}

func (c *PriceCache) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[domainpricing.CacheKey]cacheEntry)
	return nil
}

// Len reports the number of cached entries, expired ones included.
func (c *PriceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *PriceCache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

var (
	_ domainpricing.TableRepository  = (*PriceTable)(nil)
	_ domainpricing.ConfigRepository = (*ConfigStore)(nil)
	_ domainpricing.Cache            = (*PriceCache)(nil)
)
