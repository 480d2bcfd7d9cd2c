// internal/predictor/observe.go
package predictor

import (
	"time"

	"admission-workers/internal/common/errors"
	"admission-workers/internal/common/metrics"
)

// ObserveBatch records the batch metrics shared by the stage orchestrators:
// duration, outcome and the error code of each exhausted chunk. The returned
// status ("completed" or "partial") feeds the otel recorder as well.
func ObserveBatch[T, R any](stage string, start time.Time, result BatchResult[T, R]) string {
	metrics.PredictionBatchDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())

	status := "completed"
	if len(result.FailedChunks) > 0 {
		status = "partial"
		for _, fc := range result.FailedChunks {
			metrics.PredictionChunksFailed.WithLabelValues(stage, string(errors.CodeOf(fc.Err))).Inc()
		}
	}
	metrics.PredictionBatchesTotal.WithLabelValues(stage, status).Inc()
	return status
}
