// internal/predictor/batch.go
package predictor

import (
	"context"
	"sync"
	"time"

	"admission-workers/internal/common/errors"
	"admission-workers/internal/common/logger"
	"admission-workers/internal/common/metrics"
)

// BatchConfig controls chunking, concurrency and the retry policy of one
// batch invocation.
type BatchConfig struct {
	// Stage labels retry metrics; empty disables them.
	Stage        string
	ChunkSize    int
	Concurrency  int
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	RequestDelay time.Duration
}

// FailedChunk carries the inputs of a chunk that exhausted its retry budget
// together with the last error observed. Inputs are never silently dropped;
// callers surface them as partial failures.
type FailedChunk[T any] struct {
	Items []T
	Err   error
}

// BatchResult aggregates the outcome of a batch invocation. Results are in
// input order; FailedChunks are in chunk order.
type BatchResult[T, R any] struct {
	Results      []R
	FailedChunks []FailedChunk[T]
}

// CallFunc executes one remote call for a chunk of inputs. Result order must
// correspond to chunk order.
type CallFunc[T, R any] func(ctx context.Context, chunk []T) ([]R, error)

// InvokeBatch splits items into chunks and processes them with a worker pool
// of min(Concurrency, chunk count). Each chunk call is retried up to
// MaxRetries times with exponential backoff (BaseDelay * 2^attempt, capped
// at MaxDelay) unless the error is marked non-retryable. A worker waits
// RequestDelay between consecutive dispatches so the remote service is not
// hammered. Chunks may complete in any order; aggregation reassembles
// results by chunk index.
func InvokeBatch[T, R any](ctx context.Context, items []T, cfg BatchConfig, call CallFunc[T, R], log logger.Logger) BatchResult[T, R] {
	if len(items) == 0 {
		return BatchResult[T, R]{}
	}

	chunks := chunkItems(items, cfg.ChunkSize)

	workers := cfg.Concurrency
	if workers <= 0 {
		workers = 1
	}
	if workers > len(chunks) {
		workers = len(chunks)
	}

	chunkResults := make([][]R, len(chunks))
	chunkErrs := make([]error, len(chunks))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first := true
			for idx := range jobs {
				if !first && cfg.RequestDelay > 0 {
					sleep(ctx, cfg.RequestDelay)
				}
				first = false
				chunkResults[idx], chunkErrs[idx] = callWithRetry(ctx, chunks[idx], cfg, call, log)
			}
		}()
	}

	for idx := range chunks {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	var out BatchResult[T, R]
	for idx := range chunks {
		if chunkErrs[idx] != nil {
			out.FailedChunks = append(out.FailedChunks, FailedChunk[T]{
				Items: chunks[idx],
				Err:   chunkErrs[idx],
			})
			continue
		}
		out.Results = append(out.Results, chunkResults[idx]...)
	}
	return out
}

// callWithRetry performs at most MaxRetries+1 calls for one chunk. A
// non-retryable error (predictor schema rejection, other 4xx) short-circuits
// the retry loop immediately.
func callWithRetry[T, R any](ctx context.Context, chunk []T, cfg BatchConfig, call CallFunc[T, R], log logger.Logger) ([]R, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			sleep(ctx, backoffDelay(cfg, attempt-1))
		}

		results, err := call(ctx, chunk)
		if err == nil {
			return results, nil
		}
		lastErr = err

		if !errors.IsRetryable(err) {
			log.Warn("chunk call failed with non-retryable error", map[string]interface{}{
				"chunkSize": len(chunk),
				"errorCode": string(errors.CodeOf(err)),
				"error":     err.Error(),
			})
			return nil, err
		}

		if attempt < cfg.MaxRetries {
			if cfg.Stage != "" {
				metrics.PredictionChunksRetried.WithLabelValues(cfg.Stage).Inc()
			}
			log.Warn("chunk call failed, retrying", map[string]interface{}{
				"chunkSize": len(chunk),
				"attempt":   attempt + 1,
				"maxTries":  cfg.MaxRetries + 1,
				"error":     err.Error(),
			})
		}

		if ctx.Err() != nil {
			break
		}
	}

	log.Error("chunk exhausted retry budget", map[string]interface{}{
		"chunkSize": len(chunk),
		"error":     lastErr.Error(),
	})
	return nil, lastErr
}

// chunkItems splits items into slices of at most size elements; the last
// chunk may be smaller. A non-positive size yields a single chunk.
func chunkItems[T any](items []T, size int) [][]T {
	if size <= 0 {
		return [][]T{items}
	}
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// backoffDelay computes BaseDelay * 2^attempt capped at MaxDelay.
func backoffDelay(cfg BatchConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay
	if delay <= 0 {
		return 0
	}
	for i := 0; i < attempt; i++ {
		delay *= 2
		if cfg.MaxDelay > 0 && delay >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return delay
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
