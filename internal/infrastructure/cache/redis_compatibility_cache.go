package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultKeyPrefix     = "ledger:compat:"
	defaultScanBatchSize = 100
	connectTimeout       = 5 * time.Second
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisCompatibilityCache implements ledger.CompatibilityCache using Redis.
// Reports are stored as JSON so several engine instances can share them
type RedisCompatibilityCache struct {
	client     *redis.Client
	ownsClient bool
	keyPrefix  string
	ttl        time.Duration
	logger     *zap.Logger
}

// RedisCacheOption is a functional option for configuring the cache
type RedisCacheOption func(*RedisCompatibilityCache)

// WithKeyPrefix sets the namespace all cache keys are stored under
func WithKeyPrefix(prefix string) RedisCacheOption {
	return func(c *RedisCompatibilityCache) {
		if prefix != "" {
			c.keyPrefix = prefix
		}
	}
}

// WithTTL sets the expiry applied on Set. Zero stores keys without expiry
func WithTTL(ttl time.Duration) RedisCacheOption {
	return func(c *RedisCompatibilityCache) {
		c.ttl = ttl
	}
}

// WithCacheLogger sets the logger for the cache
func WithCacheLogger(logger *zap.Logger) RedisCacheOption {
	return func(c *RedisCompatibilityCache) {
		c.logger = logger
	}
}

// NewRedisCompatibilityCache connects to Redis and verifies the connection
func NewRedisCompatibilityCache(cfg RedisConfig, opts ...RedisCacheOption) (*RedisCompatibilityCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c := NewRedisCompatibilityCacheWithClient(client, opts...)
	c.ownsClient = true
	return c, nil
}

// NewRedisCompatibilityCacheWithClient creates a cache with an existing Redis client.
// The caller retains ownership of the client and is responsible for closing it
func NewRedisCompatibilityCacheWithClient(client *redis.Client, opts ...RedisCacheOption) *RedisCompatibilityCache {
	c := &RedisCompatibilityCache{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCompatibilityCache) cacheKey(key string) string {
	return c.keyPrefix + key
}

// Get retrieves a report. A miss returns (nil, false, nil)
func (c *RedisCompatibilityCache) Get(ctx context.Context, key string) (*ledger.CompatibilityReport, bool, error) {
	cacheKey := c.cacheKey(key)

	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		c.logger.Error("Failed to get compatibility report from cache",
			zap.String("key", key),
			zap.Error(err))
		return nil, false, fmt.Errorf("failed to get report from cache: %w", err)
	}

	var report ledger.CompatibilityReport
	if err := json.Unmarshal(data, &report); err != nil {
		// Corrupt payloads are dropped so the next check repopulates the key
		_ = c.client.Del(ctx, cacheKey)
		c.logger.Warn("Dropped undecodable compatibility report",
			zap.String("key", key),
			zap.Error(err))
		return nil, false, nil
	}
	return &report, true, nil
}

// Set stores report under key, replacing any previous value
func (c *RedisCompatibilityCache) Set(ctx context.Context, key string, report *ledger.CompatibilityReport) error {
	if report == nil {
		return nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := c.client.Set(ctx, c.cacheKey(key), data, c.ttl).Err(); err != nil {
		c.logger.Error("Failed to set compatibility report in cache",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to set report in cache: %w", err)
	}
	return nil
}

// Delete removes one key
func (c *RedisCompatibilityCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.cacheKey(key)).Err(); err != nil {
		c.logger.Error("Failed to delete compatibility report from cache",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to delete report from cache: %w", err)
	}
	return nil
}

// Clear removes every key under the prefix.
// SCAN is used instead of KEYS so large keyspaces do not block Redis
func (c *RedisCompatibilityCache) Clear(ctx context.Context) error {
	var cursor uint64
	var deletedCount int64

	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.keyPrefix+"*", defaultScanBatchSize).Result()
		if err != nil {
			c.logger.Error("Failed to scan compatibility keys", zap.Error(err))
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			deleted, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				c.logger.Error("Failed to delete compatibility keys", zap.Error(err))
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
			deletedCount += deleted
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.Info("Cleared compatibility cache",
		zap.String("prefix", c.keyPrefix),
		zap.Int64("deleted", deletedCount))
	return nil
}

// Close closes the Redis client if the cache created it
func (c *RedisCompatibilityCache) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}

// Client returns the underlying Redis client (for testing/monitoring)
func (c *RedisCompatibilityCache) Client() *redis.Client {
	return c.client
}

var _ ledger.CompatibilityCache = (*RedisCompatibilityCache)(nil)
