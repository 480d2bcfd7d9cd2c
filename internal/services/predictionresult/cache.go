// internal/services/predictionresult/cache.go
package predictionresult

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"admission-workers/internal/common/logger"
	"admission-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

// Cache is a read-through cache over terminal prediction results. Redis
// failures degrade to a miss; the database stays the source of truth.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCache(client *redis.Client, ttl time.Duration, log logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "prediction-cache"}),
	}
}

func cacheKey(studentID string, userID *string) string {
	key := ""
	if userID != nil {
		key = *userID
	}
	return fmt.Sprintf("prediction:%s:%s", studentID, key)
}

// Get returns the cached result, or (nil, false) on miss or redis error.
func (c *Cache) Get(ctx context.Context, studentID string, userID *string) (*models.PredictionResult, bool) {
	raw, err := c.client.Get(ctx, cacheKey(studentID, userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache read failed", map[string]interface{}{
				"studentId": studentID,
				"error":     err.Error(),
			})
		}
		return nil, false
	}

	var pr models.PredictionResult
	if err := json.Unmarshal(raw, &pr); err != nil {
		c.logger.Warn("cache entry corrupt, dropping", map[string]interface{}{
			"studentId": studentID,
			"error":     err.Error(),
		})
		c.Invalidate(ctx, studentID, userID)
		return nil, false
	}
	return &pr, true
}

// Set stores a result under its (studentId, userId) key. Only terminal
// results are worth caching; callers enforce that.
func (c *Cache) Set(ctx context.Context, pr *models.PredictionResult) {
	raw, err := json.Marshal(pr)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(pr.StudentID, pr.UserID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{
			"studentId": pr.StudentID,
			"error":     err.Error(),
		})
	}
}

// Invalidate removes the cached entry for a (studentId, userId) pair.
func (c *Cache) Invalidate(ctx context.Context, studentID string, userID *string) {
	if err := c.client.Del(ctx, cacheKey(studentID, userID)).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", map[string]interface{}{
			"studentId": studentID,
			"error":     err.Error(),
		})
	}
}
