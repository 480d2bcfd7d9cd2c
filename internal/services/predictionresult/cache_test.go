// internal/services/predictionresult/cache_test.go
package predictionresult

import (
	"context"
	"testing"
	"time"

	"admission-workers/internal/common/logger"
	"admission-workers/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCache(client, time.Minute, logger.NewTestLogger(t)), mr
}

func TestCache_RoundTrip(t *testing.T) {
	cache, _ := newMiniredisCache(t)
	ctx := context.Background()

	uid := "u-1"
	pr := &models.PredictionResult{
		ID:        "pr-1",
		StudentID: "s-1",
		UserID:    &uid,
		Status:    models.PredictionStatusCompleted,
		L1Results: []models.AdmissionScore{{AdmissionCode: "7480201", Score: 0.9}},
	}

	_, ok := cache.Get(ctx, "s-1", &uid)
	assert.False(t, ok)

	cache.Set(ctx, pr)

	got, ok := cache.Get(ctx, "s-1", &uid)
	require.True(t, ok)
	assert.Equal(t, pr.ID, got.ID)
	assert.Equal(t, pr.L1Results, got.L1Results)

	// guest key is distinct from the user key
	_, ok = cache.Get(ctx, "s-1", nil)
	assert.False(t, ok)

	cache.Invalidate(ctx, "s-1", &uid)
	_, ok = cache.Get(ctx, "s-1", &uid)
	assert.False(t, ok)
}

func TestCache_EntryExpires(t *testing.T) {
	cache, mr := newMiniredisCache(t)
	ctx := context.Background()

	pr := &models.PredictionResult{ID: "pr-1", StudentID: "s-1", Status: models.PredictionStatusCompleted}
	cache.Set(ctx, pr)

	mr.FastForward(2 * time.Minute)

	_, ok := cache.Get(ctx, "s-1", nil)
	assert.False(t, ok)
}

func TestCache_RedisFailureDegradesToMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewCache(client, time.Minute, logger.NewTestLogger(t))

	mock.ExpectGet("prediction:s-1:").SetErr(assert.AnError)

	_, ok := cache.Get(context.Background(), "s-1", nil)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_CorruptEntryDropped(t *testing.T) {
	cache, mr := newMiniredisCache(t)

	require.NoError(t, mr.Set("prediction:s-1:", "{not-json"))

	_, ok := cache.Get(context.Background(), "s-1", nil)
	assert.False(t, ok)
	// the bad entry is evicted
	assert.False(t, mr.Exists("prediction:s-1:"))
}
