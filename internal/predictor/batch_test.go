// internal/predictor/batch_test.go
package predictor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"admission-workers/internal/common/errors"
	"admission-workers/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func testConfig() BatchConfig {
	return BatchConfig{
		ChunkSize:   3,
		Concurrency: 2,
		MaxRetries:  2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func intItems(n int) []int {
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}
	return items
}

// ==========================
// Core Functionality Tests
// ==========================

func TestInvokeBatch_AllSucceed(t *testing.T) {
	// 10 items, chunkSize=3, concurrency=2: 4 chunks, all succeed.
	var calls int32
	call := func(ctx context.Context, chunk []int) ([]int, error) {
		atomic.AddInt32(&calls, 1)
		return chunk, nil
	}

	result := InvokeBatch(context.Background(), intItems(10), testConfig(), call, logger.NewTestLogger(t))

	assert.Len(t, result.Results, 10)
	assert.Empty(t, result.FailedChunks)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Equal(t, intItems(10), result.Results)
}

func TestInvokeBatch_EmptyInput(t *testing.T) {
	var calls int32
	call := func(ctx context.Context, chunk []int) ([]int, error) {
		atomic.AddInt32(&calls, 1)
		return chunk, nil
	}

	result := InvokeBatch(context.Background(), nil, testConfig(), call, logger.NewTestLogger(t))

	assert.Empty(t, result.Results)
	assert.Empty(t, result.FailedChunks)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestInvokeBatch_ChunkFailsExhaustingRetries(t *testing.T) {
	// Chunk 2 of 4 (items 3..5) always fails: exactly maxRetries+1 calls for
	// it, its items end up in FailedChunks, everything else in Results.
	var failingCalls int32
	call := func(ctx context.Context, chunk []int) ([]int, error) {
		if chunk[0] == 3 {
			atomic.AddInt32(&failingCalls, 1)
			return nil, errors.NewPredictionAPIError(503, "upstream overloaded")
		}
		return chunk, nil
	}

	cfg := testConfig()
	result := InvokeBatch(context.Background(), intItems(10), cfg, call, logger.NewTestLogger(t))

	assert.Equal(t, int32(cfg.MaxRetries+1), atomic.LoadInt32(&failingCalls))
	assert.ElementsMatch(t, []int{0, 1, 2, 6, 7, 8, 9}, result.Results)

	require.Len(t, result.FailedChunks, 1)
	assert.Equal(t, []int{3, 4, 5}, result.FailedChunks[0].Items)
	assert.Equal(t, errors.ErrCodePredictionAPIError, errors.CodeOf(result.FailedChunks[0].Err))
}

func TestInvokeBatch_RetryThenSucceed(t *testing.T) {
	// A chunk that fails k <= maxRetries times then succeeds lands in Results.
	var attempts int32
	call := func(ctx context.Context, chunk []int) ([]int, error) {
		if atomic.AddInt32(&attempts, 1) <= 2 {
			return nil, errors.NewPredictionTimeoutError(fmt.Errorf("deadline exceeded"))
		}
		return chunk, nil
	}

	cfg := testConfig()
	cfg.ChunkSize = 10 // single chunk
	result := InvokeBatch(context.Background(), intItems(5), cfg, call, logger.NewTestLogger(t))

	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.Equal(t, intItems(5), result.Results)
	assert.Empty(t, result.FailedChunks)
}

func TestInvokeBatch_NonRetryableShortCircuits(t *testing.T) {
	var calls int32
	call := func(ctx context.Context, chunk []int) ([]int, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.NewPredictionValidationError("body.students[0].gpa: value out of range")
	}

	cfg := testConfig()
	cfg.ChunkSize = 10
	result := InvokeBatch(context.Background(), intItems(4), cfg, call, logger.NewTestLogger(t))

	// One attempt only: schema rejections never retry.
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.Len(t, result.FailedChunks, 1)
	assert.False(t, errors.IsRetryable(result.FailedChunks[0].Err))
}

func TestInvokeBatch_ConcurrencyBound(t *testing.T) {
	var inFlight, maxInFlight int32
	call := func(ctx context.Context, chunk []int) ([]int, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			prev := atomic.LoadInt32(&maxInFlight)
			if cur <= prev || atomic.CompareAndSwapInt32(&maxInFlight, prev, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return chunk, nil
	}

	cfg := testConfig()
	cfg.ChunkSize = 1
	cfg.Concurrency = 2
	result := InvokeBatch(context.Background(), intItems(12), cfg, call, logger.NewTestLogger(t))

	assert.Len(t, result.Results, 12)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(2))
}

func TestInvokeBatch_ReconstructsAllItems(t *testing.T) {
	// Successful results plus failed-chunk items together cover every input
	// exactly once, whatever the failure pattern.
	tests := []struct {
		name      string
		itemCount int
		chunkSize int
		failWhen  func(chunk []int) bool
	}{
		{"no failures", 17, 4, func([]int) bool { return false }},
		{"every other chunk fails", 20, 3, func(chunk []int) bool { return (chunk[0]/3)%2 == 0 }},
		{"all chunks fail", 9, 2, func([]int) bool { return true }},
		{"single oversized chunk", 5, 100, func([]int) bool { return false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := func(ctx context.Context, chunk []int) ([]int, error) {
				if tt.failWhen(chunk) {
					return nil, errors.NewPredictionAPIError(500, "boom")
				}
				return chunk, nil
			}

			cfg := testConfig()
			cfg.ChunkSize = tt.chunkSize
			cfg.MaxRetries = 0
			result := InvokeBatch(context.Background(), intItems(tt.itemCount), cfg, call, logger.NewTestLogger(t))

			seen := append([]int{}, result.Results...)
			for _, fc := range result.FailedChunks {
				seen = append(seen, fc.Items...)
			}
			assert.ElementsMatch(t, intItems(tt.itemCount), seen)
		})
	}
}

func TestInvokeBatch_OrderPreservedAcrossCompletionOrder(t *testing.T) {
	// Slow down early chunks so later ones complete first; aggregation must
	// still return results in chunk order.
	var mu sync.Mutex
	completionOrder := []int{}

	call := func(ctx context.Context, chunk []int) ([]int, error) {
		if chunk[0] == 0 {
			time.Sleep(20 * time.Millisecond)
		}
		mu.Lock()
		completionOrder = append(completionOrder, chunk[0])
		mu.Unlock()
		return chunk, nil
	}

	cfg := testConfig()
	cfg.ChunkSize = 3
	cfg.Concurrency = 2
	result := InvokeBatch(context.Background(), intItems(9), cfg, call, logger.NewTestLogger(t))

	assert.Equal(t, intItems(9), result.Results)
	mu.Lock()
	assert.Len(t, completionOrder, 3)
	mu.Unlock()
}

// ==========================
// Chunking Tests
// ==========================

func TestChunkItems(t *testing.T) {
	tests := []struct {
		name     string
		items    []int
		size     int
		expected [][]int
	}{
		{"even split", []int{1, 2, 3, 4}, 2, [][]int{{1, 2}, {3, 4}}},
		{"uneven last chunk", []int{1, 2, 3, 4, 5}, 2, [][]int{{1, 2}, {3, 4}, {5}}},
		{"size exceeds length", []int{1, 2}, 10, [][]int{{1, 2}}},
		{"non-positive size", []int{1, 2, 3}, 0, [][]int{{1, 2, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, chunkItems(tt.items, tt.size))
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	cfg := BatchConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, backoffDelay(cfg, 0))
	assert.Equal(t, 200*time.Millisecond, backoffDelay(cfg, 1))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(cfg, 2))
	// capped
	assert.Equal(t, 500*time.Millisecond, backoffDelay(cfg, 3))
	assert.Equal(t, 500*time.Millisecond, backoffDelay(cfg, 10))
}

func TestInvokeBatch_RequestDelayBetweenDispatches(t *testing.T) {
	// Single worker, three chunks: the cooldown applies between consecutive
	// dispatches but never before the first one.
	const requestDelay = 50 * time.Millisecond

	cfg := BatchConfig{
		ChunkSize:    1,
		Concurrency:  1,
		MaxRetries:   0,
		RequestDelay: requestDelay,
	}

	var mu sync.Mutex
	var callTimes []time.Time
	call := func(ctx context.Context, chunk []int) ([]int, error) {
		mu.Lock()
		callTimes = append(callTimes, time.Now())
		mu.Unlock()
		return chunk, nil
	}

	start := time.Now()
	result := InvokeBatch(context.Background(), intItems(3), cfg, call, logger.NewTestLogger(t))

	assert.Len(t, result.Results, 3)
	require.Len(t, callTimes, 3)

	// first dispatch is immediate
	assert.Less(t, callTimes[0].Sub(start), requestDelay)
	// every following dispatch waited out the cooldown
	assert.GreaterOrEqual(t, callTimes[1].Sub(callTimes[0]), requestDelay)
	assert.GreaterOrEqual(t, callTimes[2].Sub(callTimes[1]), requestDelay)
}
