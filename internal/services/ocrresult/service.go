// internal/services/ocrresult/service.go

// Package ocrresult manages the per-file OCR result records through their
// state machine: PENDING at batch initiation, PROCESSING once the extraction
// batch is dispatched, then COMPLETED or FAILED per file. Every reconciled
// batch publishes an ocr.created event for the prediction triggers.
package ocrresult

import (
	"context"
	"time"

	"admission-workers/internal/common/logger"
	"admission-workers/internal/common/metrics"
	"admission-workers/internal/events"
	"admission-workers/internal/models"
	"admission-workers/internal/ocr"
	"admission-workers/internal/repository"
)

type Service struct {
	repo       *repository.OcrResultRepository
	extractor  ocr.Extractor
	dispatcher *events.Dispatcher
	logger     logger.Logger
}

func NewService(
	repo *repository.OcrResultRepository,
	extractor ocr.Extractor,
	dispatcher *events.Dispatcher,
	log logger.Logger,
) *Service {
	return &Service{
		repo:       repo,
		extractor:  extractor,
		dispatcher: dispatcher,
		logger:     log.WithFields(map[string]interface{}{"component": "ocr-result-service"}),
	}
}

// InitiateBatch creates one PENDING row per submitted file. Resubmitting a
// file for the same student resets its existing row instead of duplicating it.
func (s *Service) InitiateBatch(ctx context.Context, q repository.Querier, studentID string, processedBy *string, files []ocr.FileRef) ([]models.OcrResult, error) {
	rows := make([]models.OcrResult, 0, len(files))
	for _, f := range files {
		rows = append(rows, models.OcrResult{
			FileID:      f.FileID,
			StudentID:   studentID,
			ProcessedBy: processedBy,
			Scores:      []models.SubjectScore{},
		})
	}
	return s.repo.InsertPending(ctx, q, rows)
}

// ProcessBatch runs the full extraction flow for one submission: initiate
// PENDING rows, mark them PROCESSING, call the extraction service, reconcile
// the outcome per file and publish the ocr.created event. An extraction-level
// failure marks every row FAILED; no row is ever left in PROCESSING.
func (s *Service) ProcessBatch(ctx context.Context, q repository.Querier, studentID string, processedBy *string, files []ocr.FileRef) ([]models.OcrResult, error) {
	initial, err := s.InitiateBatch(ctx, q, studentID, processedBy, files)
	if err != nil {
		return nil, err
	}

	start := time.Now().UTC()

	processing := models.OcrStatusProcessing
	for i := range initial {
		initial[i] = models.ApplyOcrPatch(initial[i], models.OcrResultPatch{Status: &processing}, start)
		if err := s.repo.Update(ctx, q, initial[i]); err != nil {
			return nil, err
		}
	}

	s.logger.Info("extraction batch dispatched", map[string]interface{}{
		"studentId": studentID,
		"fileCount": len(files),
	})

	batch, err := s.extractor.ExtractBatch(ctx, files)
	if err != nil {
		s.logger.Error("extraction batch failed", map[string]interface{}{
			"studentId": studentID,
			"error":     err.Error(),
		})
		failed, markErr := s.MarkAsFailed(ctx, q, initial, err.Error(), start)
		if markErr != nil {
			return nil, markErr
		}
		s.publishCreated(ctx, failed, studentID, processedBy)
		return failed, nil
	}

	updated, err := s.UpdateResults(ctx, q, initial, batch, start)
	if err != nil {
		return nil, err
	}

	s.publishCreated(ctx, updated, studentID, processedBy)
	return updated, nil
}

// UpdateResults zips the initiated rows against the batch outcome by fileId.
// A matched success becomes COMPLETED with its scores; a matched failure
// becomes FAILED with the extraction error; a row with no corresponding batch
// entry becomes FAILED with a synthetic error so nothing stays in PROCESSING.
func (s *Service) UpdateResults(ctx context.Context, q repository.Querier, initialResults []models.OcrResult, batch models.BatchScoreExtractionResult, processingStartTime time.Time) ([]models.OcrResult, error) {
	byFile := make(map[string]models.FileScoreExtractionResult, len(batch.Results))
	for _, r := range batch.Results {
		byFile[r.FileID] = r
	}

	now := time.Now().UTC()
	elapsed := now.Sub(processingStartTime).Milliseconds()

	out := make([]models.OcrResult, 0, len(initialResults))
	for _, row := range initialResults {
		patch := models.OcrResultPatch{ElapsedMs: &elapsed}

		extracted, found := byFile[row.FileID]
		switch {
		case !found:
			patch.Status = statusPtr(models.OcrStatusFailed)
			patch.ErrorMessage = strPtr("no result returned from extraction batch")
		case extracted.Success:
			patch.Status = statusPtr(models.OcrStatusCompleted)
			patch.Scores = extracted.Scores
			if extracted.DocumentAnnotation != "" {
				patch.DocumentAnnotation = &extracted.DocumentAnnotation
			}
		default:
			patch.Status = statusPtr(models.OcrStatusFailed)
			msg := extracted.Error
			if msg == "" {
				msg = "extraction reported failure without detail"
			}
			patch.ErrorMessage = &msg
		}

		next := models.ApplyOcrPatch(row, patch, now)
		if err := s.repo.Update(ctx, q, next); err != nil {
			return nil, err
		}
		metrics.OcrRecordsTotal.WithLabelValues(string(next.Status)).Inc()
		out = append(out, next)
	}

	s.logger.Info("extraction batch reconciled", map[string]interface{}{
		"fileCount": len(out),
		"elapsedMs": elapsed,
	})
	return out, nil
}

// MarkAsFailed bulk-transitions rows to FAILED, stamping the error message
// and elapsed time. Rows already FAILED with the same message pass through
// untouched, so a repeat call is a strict no-op: no write, no re-stamped
// elapsed time.
func (s *Service) MarkAsFailed(ctx context.Context, q repository.Querier, results []models.OcrResult, errorMessage string, startTime time.Time) ([]models.OcrResult, error) {
	now := time.Now().UTC()
	elapsed := now.Sub(startTime).Milliseconds()
	failed := models.OcrStatusFailed

	out := make([]models.OcrResult, 0, len(results))
	for _, row := range results {
		if row.Status == models.OcrStatusFailed && row.ErrorMessage != nil && *row.ErrorMessage == errorMessage {
			out = append(out, row)
			continue
		}
		next := models.ApplyOcrPatch(row, models.OcrResultPatch{
			Status:       &failed,
			ErrorMessage: &errorMessage,
			ElapsedMs:    &elapsed,
		}, now)
		if err := s.repo.Update(ctx, q, next); err != nil {
			return nil, err
		}
		metrics.OcrRecordsTotal.WithLabelValues(string(next.Status)).Inc()
		out = append(out, next)
	}
	return out, nil
}

func (s *Service) publishCreated(ctx context.Context, rows []models.OcrResult, studentID string, processedBy *string) {
	if s.dispatcher == nil {
		return
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	s.dispatcher.Publish(ctx, events.EventOcrCreated, events.OcrCreatedEvent{
		OcrResultIDs: ids,
		StudentID:    studentID,
		UserID:       processedBy,
	})
}

func statusPtr(s models.OcrStatus) *models.OcrStatus { return &s }
func strPtr(s string) *string                        { return &s }
