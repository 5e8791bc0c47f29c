package cache

import (
	"fmt"
	"io"

	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/pharmapos/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ClosableCache is a compatibility cache that owns resources
type ClosableCache interface {
	ledger.CompatibilityCache
	io.Closer
}

// CompatibilityCacheFactory creates compatibility caches based on configuration
type CompatibilityCacheFactory struct {
	redisConfig           config.RedisConfig
	integrityConfig       config.IntegrityConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*CompatibilityCacheFactory)

// WithLogger sets the logger for the factory and the caches it creates
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *CompatibilityCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory cache when Redis is unavailable
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *CompatibilityCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewCompatibilityCacheFactory creates a new factory
func NewCompatibilityCacheFactory(redisCfg config.RedisConfig, integrityCfg config.IntegrityConfig, opts ...FactoryOption) *CompatibilityCacheFactory {
	f := &CompatibilityCacheFactory{
		redisConfig:           redisCfg,
		integrityConfig:       integrityCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: integrityCfg.AllowInMemoryFallback,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisCache creates a Redis-backed cache
func (f *CompatibilityCacheFactory) CreateRedisCache() (*RedisCompatibilityCache, error) {
	c, err := NewRedisCompatibilityCache(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	},
		WithKeyPrefix(f.integrityConfig.CacheKeyPrefix),
		WithTTL(f.integrityConfig.CacheTTL),
		WithCacheLogger(f.logger.Named("compat_cache")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis compatibility cache: %w", err)
	}
	return c, nil
}

// CreateInMemoryCache creates an in-process cache.
// In-memory caches are not shared across instances, so an invalidation on one
// instance leaves stale reports on the others until their TTL expires
func (f *CompatibilityCacheFactory) CreateInMemoryCache() *InMemoryCompatibilityCache {
	return NewInMemoryCompatibilityCache(f.integrityConfig.CacheTTL)
}

// CreateCache tries Redis first and falls back to in-memory when allowed
func (f *CompatibilityCacheFactory) CreateCache() (ClosableCache, error) {
	c, err := f.CreateRedisCache()
	if err == nil {
		f.logger.Info("using Redis compatibility cache")
		return c, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for compatibility cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory compatibility cache. "+
		"Invalidations will not propagate across instances.",
		zap.Error(err),
	)
	return f.CreateInMemoryCache(), nil
}
