// internal/services/predictionresult/service.go

// Package predictionresult owns the PredictionResult lifecycle: one row per
// (studentId, userId), PROCESSING until every stage reported, then COMPLETED,
// PARTIAL or FAILED, forward-only. A new prediction run overwrites a terminal
// row through the upsert.
package predictionresult

import (
	"context"
	"time"

	"admission-workers/internal/common/errors"
	"admission-workers/internal/common/logger"
	"admission-workers/internal/models"
	"admission-workers/internal/notify"
	"admission-workers/internal/repository"
)

type Service struct {
	repo     *repository.PredictionResultRepository
	students *repository.StudentRepository
	cache    *Cache
	notifier notify.Notifier
	logger   logger.Logger
}

// NewService wires the lifecycle service. cache and notifier may be nil when
// the corresponding subsystem is disabled.
func NewService(
	repo *repository.PredictionResultRepository,
	students *repository.StudentRepository,
	cache *Cache,
	notifier notify.Notifier,
	log logger.Logger,
) *Service {
	return &Service{
		repo:     repo,
		students: students,
		cache:    cache,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "prediction-result-service"}),
	}
}

// StartProcessing opens a fresh prediction run: the (studentId, userId) row is
// upserted to PROCESSING with all stage results cleared, overwriting any
// previous terminal record.
func (s *Service) StartProcessing(ctx context.Context, q repository.Querier, studentID string, userID *string) (models.PredictionResult, error) {
	pr := models.PredictionResult{
		StudentID: studentID,
		UserID:    userID,
		Status:    models.PredictionStatusProcessing,
		L1Results: []models.AdmissionScore{},
		L2Results: []models.AdmissionScore{},
		L3Results: []models.L3AdmissionResult{},
	}

	saved, err := s.repo.Upsert(ctx, q, pr)
	if err != nil {
		return pr, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, studentID, userID)
	}

	s.logger.Info("prediction run started", map[string]interface{}{
		"studentId": studentID,
		"guest":     userID == nil,
	})
	return saved, nil
}

// ApplyStagePatch merges one stage's outcome onto the stored row through the
// immutable patch builder and writes it back. When the patch carries a
// terminal status the row is cached and the student is notified.
func (s *Service) ApplyStagePatch(ctx context.Context, q repository.Querier, studentID string, userID *string, patch models.PredictionResultPatch) (models.PredictionResult, error) {
	saved, reachedTerminal, err := s.applyPatch(ctx, q, studentID, userID, patch)
	if err != nil {
		return saved, err
	}

	if reachedTerminal {
		s.OnTerminal(ctx, q, &saved)
	}
	return saved, nil
}

// ApplyStagePatchDeferred is ApplyStagePatch without the terminal-edge side
// effects, for callers settling a run on an uncommitted transaction: caching
// or notifying before the commit would expose a result that may never
// persist. The returned flag reports whether the row just reached a terminal
// status; such callers fire OnTerminal themselves after the commit.
func (s *Service) ApplyStagePatchDeferred(ctx context.Context, q repository.Querier, studentID string, userID *string, patch models.PredictionResultPatch) (models.PredictionResult, bool, error) {
	return s.applyPatch(ctx, q, studentID, userID, patch)
}

func (s *Service) applyPatch(ctx context.Context, q repository.Querier, studentID string, userID *string, patch models.PredictionResultPatch) (models.PredictionResult, bool, error) {
	current, err := s.repo.FindByStudent(ctx, q, studentID, userID)
	if err != nil {
		return models.PredictionResult{}, false, err
	}

	wasTerminal := current.Status.IsTerminal()
	next := models.ApplyPredictionPatch(*current, patch, time.Now().UTC())

	saved, err := s.repo.Upsert(ctx, q, next)
	if err != nil {
		return saved, false, err
	}

	return saved, !wasTerminal && saved.Status.IsTerminal(), nil
}

// GetResult reads the prediction row for an exact (studentId, userId) pair,
// serving terminal rows from the cache when possible.
func (s *Service) GetResult(ctx context.Context, q repository.Querier, studentID string, userID *string) (*models.PredictionResult, error) {
	if s.cache != nil {
		if pr, ok := s.cache.Get(ctx, studentID, userID); ok {
			return pr, nil
		}
	}

	pr, err := s.repo.FindByStudent(ctx, q, studentID, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && pr.Status.IsTerminal() {
		s.cache.Set(ctx, pr)
	}
	return pr, nil
}

// OnTerminal fires the terminal-edge side effects: cache fill and student
// notification. The querier must be a committed handle; transaction-scoped
// callers invoke this only after their commit succeeded.
func (s *Service) OnTerminal(ctx context.Context, q repository.Querier, pr *models.PredictionResult) {
	s.logger.Info("prediction run reached terminal status", map[string]interface{}{
		"studentId": pr.StudentID,
		"status":    string(pr.Status),
	})

	if s.cache != nil {
		s.cache.Set(ctx, pr)
	}

	if s.notifier == nil {
		return
	}

	student, err := s.students.FindByID(ctx, q, pr.StudentID)
	if err != nil {
		if !errors.IsNotFound(err) {
			s.logger.Warn("student lookup for notification failed", map[string]interface{}{
				"studentId": pr.StudentID,
				"error":     err.Error(),
			})
		}
		return
	}
	s.notifier.PredictionCompleted(ctx, pr, student.Email, student.Phone)
}
