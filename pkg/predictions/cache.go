package predictions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/meditriage/platform/pkg/common/logger"
	"github.com/meditriage/platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

// Cache keeps recent prediction results hot in Redis so repeat
// requests for the same visit skip the full pipeline.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(visitID int64) string {
	return fmt.Sprintf("triage:prediction:%d", visitID)
}

func (c *Cache) Get(ctx context.Context, visitID int64) (models.PredictionResult, bool) {
	payload, err := c.client.Get(ctx, cacheKey(visitID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.WithError(err).Warn("prediction cache read failed")
		}
		return models.PredictionResult{}, false
	}
	var result models.PredictionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		logger.Log.WithError(err).Warn("prediction cache entry corrupt")
		return models.PredictionResult{}, false
	}
	return result, true
}

func (c *Cache) Set(ctx context.Context, result models.PredictionResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		logger.Log.WithError(err).Warn("prediction cache encode failed")
		return
	}
	if err := c.client.Set(ctx, cacheKey(result.VisitID), payload, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).Warn("prediction cache write failed")
	}
}
