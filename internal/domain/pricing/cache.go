package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CacheKey identifies one exact price. Exact prices do not depend on the
// extras selection, so extras are not part of the key.
type CacheKey struct {
	CarID    string
	Month    time.Month
	Duration int
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s|%d|%d", k.CarID, int(k.Month), k.Duration)
}

// Cache stores exact prices. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key CacheKey) (ExactPrice, bool, error)
	Set(ctx context.Context, key CacheKey, price ExactPrice) error
	Delete(ctx context.Context, key CacheKey) error
	Invalidate(ctx context.Context, carID string) error
	Flush(ctx context.Context) error
}

// CachedExactLookup serves exact prices from Cache and asks Next on a miss.
// Only found prices are cached; failures and misses are always retried.
type CachedExactLookup struct {
	Next   ExactLookup
	Cache  Cache
	Logger *slog.Logger
}

func (c *CachedExactLookup) ExactPrice(ctx context.Context, q ExactQuery) (ExactPrice, error) {
	if c.Next == nil {
		return ExactPrice{}, ErrLookupUnavailable
	}
	if c.Cache == nil {
		return c.Next.ExactPrice(ctx, q)
	}
	key := q.Key()
	price, ok, err := c.Cache.Get(ctx, key)
	if err != nil {
		c.warn("price cache read failed", key, err)
	}
	if ok {
		return price, nil
	}
	return c.Refresh(ctx, q)
}

// Refresh bypasses the cache, asks Next and stores the answer. A definitive
// miss evicts any stale entry.
func (c *CachedExactLookup) Refresh(ctx context.Context, q ExactQuery) (ExactPrice, error) {
	if c.Next == nil {
		return ExactPrice{}, ErrLookupUnavailable
	}
	key := q.Key()
	price, err := c.Next.ExactPrice(ctx, q)
	if err != nil {
		if errors.Is(err, ErrNoMatch) && c.Cache != nil {
			if derr := c.Cache.Delete(ctx, key); derr != nil {
				c.warn("price cache delete failed", key, derr)
			}
		}
		return ExactPrice{}, err
	}
	if c.Cache != nil && price.Price > 0 {
		if serr := c.Cache.Set(ctx, key, price); serr != nil {
			c.warn("price cache write failed", key, serr)
		}
	}
	return price, nil
}

func (c *CachedExactLookup) Invalidate(ctx context.Context, carID string) error {
	if c.Cache == nil {
		return nil
	}
	return c.Cache.Invalidate(ctx, carID)
}

func (c *CachedExactLookup) Flush(ctx context.Context) error {
	if c.Cache == nil {
		return nil
	}
	return c.Cache.Flush(ctx)
}

func (c *CachedExactLookup) warn(msg string, key CacheKey, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.Warn(msg, "key", key.String(), "error", err)
}
