// Package cache provides caching implementations for Kestrel.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// New creates a cache based on configuration.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory":
		return NewLRUCache(cfg.LocalMaxSize), nil
	case "redis":
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// ValidationKey builds the content-addressed key for a field validation
// result: validation:<sha256(type|normalized value|tenant)>. Identical
// (type, value, tenant) inputs always map to the same key.
func ValidationKey(fieldType, normalizedValue, tenantID string) string {
	sum := sha256.Sum256([]byte(fieldType + "|" + normalizedValue + "|" + tenantID))
	return "validation:" + hex.EncodeToString(sum[:])
}
