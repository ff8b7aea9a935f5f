package restock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// SummaryCache keeps request summaries in Redis for a short TTL. Failures
// are logged and degrade to a cache miss; callers never see Redis errors.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewSummaryCache instantiates the cache helper.
func NewSummaryCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SummaryCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryCache{client: client, ttl: ttl, logger: logger}
}

func summaryKey(id int64) string {
	return fmt.Sprintf("restock:summary:%d", id)
}

// Fetch returns the cached summary when present.
func (c *SummaryCache) Fetch(ctx context.Context, id int64) (RequestSummary, bool) {
	if c == nil || c.client == nil {
		return RequestSummary{}, false
	}
	raw, err := c.client.Get(ctx, summaryKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("summary cache read failed", "request_id", id, "error", err)
		}
		return RequestSummary{}, false
	}
	var summary RequestSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		c.logger.Warn("summary cache entry corrupt", "request_id", id, "error", err)
		return RequestSummary{}, false
	}
	return summary, true
}

// Store caches the summary for the configured TTL.
func (c *SummaryCache) Store(ctx context.Context, id int64, summary RequestSummary) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		c.logger.Warn("summary cache encode failed", "request_id", id, "error", err)
		return
	}
	if err := c.client.Set(ctx, summaryKey(id), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("summary cache write failed", "request_id", id, "error", err)
	}
}

// Invalidate drops the cached summary after a mutation.
func (c *SummaryCache) Invalidate(ctx context.Context, id int64) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, summaryKey(id)).Err(); err != nil {
		c.logger.Warn("summary cache invalidate failed", "request_id", id, "error", err)
	}
}
