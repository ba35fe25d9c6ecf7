package cache

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"chat-relay/internal/metrics"
	"chat-relay/pkg/logging"
)

// LoggingExactCache wraps an ExactCache with logging + metrics.
type LoggingExactCache struct {
	inner ExactCache
}

// NewLoggingExactCache returns a cache that logs and records metrics.
func NewLoggingExactCache(inner ExactCache) ExactCache {
	return &LoggingExactCache{inner: inner}
}

func (c *LoggingExactCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := c.inner.Get(ctx, key)

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
		metrics.CacheHitsTotal.Inc()
	}

	fields := append(keyFields(key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Duration("latency", time.Since(start)),
	)

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("exact_cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("exact_cache_get", fields...)
	}

	return value, ok, err
}

func (c *LoggingExactCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.inner.Set(ctx, key, value, ttl)

	fields := append(keyFields(key),
		zap.Duration("ttl", ttl),
		zap.Int("bytes", len(value)),
		zap.Duration("latency", time.Since(start)),
	)

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("exact_cache_set", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("exact_cache_set", fields...)
	}

	return err
}

func keyFields(key string) []zap.Field {
	parts, ok := parseExactKey(key)
	if !ok {
		return []zap.Field{zap.String("cache_key", key)}
	}
	return []zap.Field{
		zap.String("model_id", parts.ModelID),
		zap.String("version_id", parts.VersionID),
		zap.String("hash", parts.Hash),
	}
}

// parseExactKey reverses ExactCacheKey.String:
// exact:<MODEL_ID>:<VERSION_ID>:<HASH>
func parseExactKey(key string) (ExactCacheKey, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "exact" {
		return ExactCacheKey{}, false
	}
	return ExactCacheKey{
		ModelID:   parts[1],
		VersionID: parts[2],
		Hash:      parts[3],
	}, true
}
