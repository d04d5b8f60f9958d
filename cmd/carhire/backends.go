package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"carhire/internal/infra/broker/kafka"
	"carhire/internal/infra/cache"
	"carhire/internal/infra/config"
	mongostore "carhire/internal/infra/db/mongo"
	"carhire/internal/infra/storage/s3"
)

// backends holds the optional external services. A nil field selects the
// in-memory variant of the component it would serve.
type backends struct {
	mongo    *mongostore.Client
	redis    *cache.RedisPriceCache
	producer *kafka.Producer
	photos   *s3.Client
}

func connectBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{}
	if cfg.MongoURI != "" {
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		b.mongo = client
		logger.Info("mongo connected", "database", cfg.MongoDB)
	}
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisPriceCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.PriceCacheTTL,
		})
		if err != nil {
			logger.Warn("redis unavailable, using in-memory price cache", "addr", cfg.RedisAddr, "error", err)
		} else {
			b.redis = rc
			logger.Info("redis price cache connected", "addr", cfg.RedisAddr)
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, logger)
		if err != nil {
			b.close(logger)
			return nil, fmt.Errorf("connect kafka: %w", err)
		}
		b.producer = producer
		logger.Info("kafka producer connected", "brokers", cfg.KafkaBrokers)
	}
	if cfg.S3Endpoint != "" {
		photos, err := s3.NewClient(s3.Config{
			Endpoint:      cfg.S3Endpoint,
			UseSSL:        cfg.S3UseSSL,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicEndpoint,
		}, logger)
		if err != nil {
			b.close(logger)
			return nil, err
		}
		b.photos = photos
	}
	return b, nil
}

func (b *backends) close(logger *slog.Logger) {
	if b.producer != nil {
		if err := b.producer.Close(); err != nil {
			logger.Warn("kafka producer close failed", "error", err)
		}
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			logger.Warn("redis close failed", "error", err)
		}
	}
	if b.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.mongo.Close(ctx); err != nil {
			logger.Warn("mongo disconnect failed", "error", err)
		}
	}
}
