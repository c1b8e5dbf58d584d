package domain

import (
	"context"
	"time"
)

// Cache is the external key-value collaborator used to avoid recomputing
// validator calls. Reads and writes for a key may race across concurrent
// requests; recomputation is idempotent, so last-writer-wins is acceptable.
// All methods require tenantID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value. Returns nil, nil on miss.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value.
	Delete(ctx context.Context, tenantID string, key string) error

	// IncrementCounter atomically increments a windowed counter and returns
	// the new value. Used for tenant rate limiting.
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	// Ping checks cache health.
	Ping(ctx context.Context) error

	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis".
	Type string `yaml:"type"`

	// Local LRU cache settings.
	LocalMaxSize int           `yaml:"localMaxSize"`
	TTL          time.Duration `yaml:"ttl"`

	// Redis settings.
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
}
