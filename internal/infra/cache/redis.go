package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainpricing "carhire/internal/domain/pricing"
)

const DefaultPrefix = "carhire:price:"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// RedisPriceCache stores exact prices in Redis. Each car keeps a set of its
// cached keys so Invalidate can drop them without a keyspace scan.
type RedisPriceCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisPriceCache(ctx context.Context, cfg RedisConfig) (*RedisPriceCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisPriceCacheWithClient(rdb, cfg.TTL, cfg.Prefix), nil
}

func NewRedisPriceCacheWithClient(client *redis.Client, ttl time.Duration, prefix string) *RedisPriceCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisPriceCache{client: client, ttl: ttl, prefix: prefix}
}

type cachedPrice struct {
	Price  float64 `json:"price"`
	Source string  `json:"source"`
}

func (c *RedisPriceCache) Get(ctx context.Context, key domainpricing.CacheKey) (domainpricing.ExactPrice, bool, error) {
	data, err := c.client.Get(ctx, c.entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domainpricing.ExactPrice{}, false, nil
	}
	if err != nil {
		return domainpricing.ExactPrice{}, false, err
	}
	var doc cachedPrice
	if err := json.Unmarshal(data, &doc); err != nil {
		return domainpricing.ExactPrice{}, false, err
	}
	return domainpricing.ExactPrice{Price: doc.Price, Source: doc.Source}, true, nil
}

func (c *RedisPriceCache) Set(ctx context.Context, key domainpricing.CacheKey, price domainpricing.ExactPrice) error {
	data, err := json.Marshal(cachedPrice{Price: price.Price, Source: price.Source})
	if err != nil {
		return err
	}
	entry := c.entryKey(key)
	index := c.indexKey(key.CarID)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, entry, data, c.ttl)
		pipe.SAdd(ctx, index, entry)
		if c.ttl > 0 {
			pipe.Expire(ctx, index, c.ttl)
		}
		return nil
	})
	return err
}

func (c *RedisPriceCache) Delete(ctx context.Context, key domainpricing.CacheKey) error {
	entry := c.entryKey(key)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, entry)
		pipe.SRem(ctx, c.indexKey(key.CarID), entry)
		return nil
	})
	return err
}

func (c *RedisPriceCache) Invalidate(ctx context.Context, carID string) error {
	index := c.indexKey(carID)
	members, err := c.client.SMembers(ctx, index).Result()
	if err != nil {
		return err
	}
	return c.client.Del(ctx, append(members, index)...).Err()
}

// Flush removes every key under the cache prefix.
func (c *RedisPriceCache) Flush(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.client.Del(ctx, batch...).Err()
	}
	return nil
}

func (c *RedisPriceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisPriceCache) Close() error {
	return c.client.Close()
}

func (c *RedisPriceCache) entryKey(key domainpricing.CacheKey) string {
	return c.prefix + key.String()
}

func (c *RedisPriceCache) indexKey(carID string) string {
	return c.prefix + "car:" + carID
}

var _ domainpricing.Cache = (*RedisPriceCache)(nil)
