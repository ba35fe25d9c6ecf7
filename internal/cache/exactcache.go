package cache

import (
	"context"
	"fmt"
	"time"
)

// ExactCacheKey identifies a generated response by everything that shaped it.
type ExactCacheKey struct {
	ModelID   string
	VersionID string
	Hash      string
}

// String converts the structured key into the final string used in Redis/map.
func (k ExactCacheKey) String() string {
	// exact:<MODEL_ID>:<VERSION_ID>:<HASH_HEX>
	return fmt.Sprintf("exact:%s:%s:%s", k.ModelID, k.VersionID, k.Hash)
}

// ExactCache stores raw response bytes by key.
// Implemented by memory cache (dev) and Redis cache (prod).
type ExactCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
