package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"chat-relay/internal/llm"
	"chat-relay/pkg/logging"
)

// CachedClient serves repeated messages from an ExactCache and only calls the
// wrapped client on a miss. Failures are never stored.
type CachedClient struct {
	inner     llm.Client
	store     ExactCache
	ttl       time.Duration
	versionID string
}

var _ llm.Client = (*CachedClient)(nil)

type cachedResponse struct {
	Response string `json:"response"`
}

func NewCachedClient(inner llm.Client, store ExactCache, ttl time.Duration, versionID string) *CachedClient {
	return &CachedClient{
		inner:     inner,
		store:     store,
		ttl:       ttl,
		versionID: versionID,
	}
}

// Generate is best-effort with respect to the cache: every cache failure is
// logged and treated as a miss.
func (c *CachedClient) Generate(ctx context.Context, message string) (string, error) {
	logger := logging.L(ctx)

	key, err := BuildExactCacheKey(message, c.versionID)
	if err != nil {
		logger.Warn("key_builder_error", zap.Error(err))
		return c.inner.Generate(ctx, message)
	}
	cacheKey := key.String()

	raw, hit, err := c.store.Get(ctx, cacheKey)
	if err != nil {
		logger.Warn("exact_cache_get_error", zap.Error(err), zap.String("hash", key.Hash))
	}
	if hit {
		var entry cachedResponse
		uerr := json.Unmarshal(raw, &entry)
		if uerr == nil {
			logger.Info("serving cached response", zap.String("hash", key.Hash))
			return entry.Response, nil
		}
		logger.Warn("exact_cache_unmarshal_error", zap.Error(uerr), zap.String("hash", key.Hash))
	}

	text, err := c.inner.Generate(ctx, message)
	if err != nil {
		return "", err
	}

	raw, err = json.Marshal(cachedResponse{Response: text})
	if err != nil {
		logger.Warn("marshal_response_error", zap.Error(err))
		return text, nil
	}
	if err := c.store.Set(ctx, cacheKey, raw, c.ttl); err != nil {
		logger.Warn("exact_cache_set_error", zap.Error(err))
	}

	return text, nil
}
