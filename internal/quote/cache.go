package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/logger"
	"commodity-forecast/internal/observability"
)

// Cache stores available quotes by live key.
type Cache interface {
	Get(ctx context.Context, key string) (domain.PricePoint, bool, error)
	Set(ctx context.Context, key string, p domain.PricePoint, ttl time.Duration) error
}

// CachedSource serves quotes from a cache before calling the wrapped source.
// Only available quotes are cached. Cache failures are logged and bypassed.
type CachedSource struct {
	next  Source
	cache Cache
	ttl   time.Duration
	log   *logger.Logger
}

// NewCachedSource wraps next with a read-through cache.
func NewCachedSource(next Source, cache Cache, ttl time.Duration, log *logger.Logger) *CachedSource {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedSource{next: next, cache: cache, ttl: ttl, log: log}
}

// Fetch implements Source.
func (s *CachedSource) Fetch(ctx context.Context, asset domain.AssetConfig) Result {
	p, ok, err := s.cache.Get(ctx, asset.LiveKey)
	if err != nil {
		s.log.Warn("quote cache read failed", logger.String("symbol", asset.LiveKey), logger.Error(err))
	}
	observability.RecordCacheLookup(ok)
	if ok {
		return Available(p)
	}

	res := s.next.Fetch(ctx, asset)
	if point, ok := res.Point(); ok {
		if err := s.cache.Set(ctx, asset.LiveKey, point, s.ttl); err != nil {
			s.log.Warn("quote cache write failed", logger.String("symbol", asset.LiveKey), logger.Error(err))
		}
	}
	return res
}

// RedisCache implements Cache using Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int, prefix string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCache{client: client, prefix: prefix}, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

type cachedQuote struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (domain.PricePoint, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PricePoint{}, false, nil
		}
		return domain.PricePoint{}, false, err
	}

	var q cachedQuote
	if err := json.Unmarshal(data, &q); err != nil {
		return domain.PricePoint{}, false, fmt.Errorf("decode cached quote: %w", err)
	}
	date, err := domain.ParseDate(q.Date)
	if err != nil {
		return domain.PricePoint{}, false, fmt.Errorf("decode cached date: %w", err)
	}
	return domain.PricePoint{Date: date, Price: q.Price}, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, p domain.PricePoint, ttl time.Duration) error {
	data, err := json.Marshal(cachedQuote{Date: domain.FormatDate(p.Date), Price: p.Price})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

func (c *RedisCache) key(k string) string {
	if c.prefix == "" {
		return "quote:" + k
	}
	return c.prefix + ":quote:" + k
}
