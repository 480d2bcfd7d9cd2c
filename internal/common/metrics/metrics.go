// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PredictionBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prediction_batches_total",
			Help: "Total number of prediction batches processed per stage",
		},
		[]string{"stage", "status"},
	)

	PredictionChunksRetried = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prediction_chunks_retried_total",
			Help: "Total number of chunk retry attempts per stage",
		},
		[]string{"stage"},
	)

	PredictionChunksFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prediction_chunks_failed_total",
			Help: "Total number of chunks that exhausted their retry budget",
		},
		[]string{"stage", "error_code"},
	)

	PredictionBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "prediction_batch_duration_seconds",
			Help: "Duration of batch prediction calls in seconds",
		},
		[]string{"stage"},
	)

	OcrRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_records_total",
			Help: "Total number of OCR result records by terminal status",
		},
		[]string{"status"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Total number of events dropped by the dispatcher",
		},
		[]string{"event", "reason"},
	)
)
