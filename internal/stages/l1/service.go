// internal/stages/l1/service.go

// Package l1 is the coarse-filtering prediction stage: it maps a student's
// GPA, grade level and exam scores onto the predictor's L1 contract and ranks
// candidate admission codes.
package l1

import (
	"context"
	"time"

	"admission-workers/internal/common/errors"
	"admission-workers/internal/common/logger"
	"admission-workers/internal/common/observability"
	"admission-workers/internal/models"
	"admission-workers/internal/predictor"
	"admission-workers/internal/repository"
	"admission-workers/internal/services/predictionresult"
)

const stageName = "l1"

type Service struct {
	client  *predictor.Client
	results *predictionresult.Service
	obs     *observability.Observability
	config  *Config
	logger  logger.Logger
}

func NewService(client *predictor.Client, results *predictionresult.Service, obs *observability.Observability, config *Config, log logger.Logger) *Service {
	return &Service{
		client:  client,
		results: results,
		obs:     obs,
		config:  config,
		logger:  log.WithFields(map[string]interface{}{"stage": stageName}),
	}
}

// BuildInput maps a student profile onto the L1 request shape.
func BuildInput(student *models.Student) UserInput {
	return UserInput{
		StudentID:  student.ID,
		GPA:        student.GPA,
		GradeLevel: student.GradeLevel,
		ExamScores: student.ExamScores,
	}
}

// PredictMajorsBatch validates the inputs and runs them through the batch
// invoker against the L1 path. Chunk failures come back as data in
// FailedChunks, never as an error.
func (s *Service) PredictMajorsBatch(ctx context.Context, inputs []UserInput) (predictor.BatchResult[UserInput, PredictResult], error) {
	if err := ValidateInputs(inputs); err != nil {
		return predictor.BatchResult[UserInput, PredictResult]{}, errors.NewPredictionValidationError(err.Error())
	}

	cfg := predictor.BatchConfig{
		Stage:        stageName,
		ChunkSize:    s.config.ChunkSize,
		Concurrency:  s.config.Concurrency,
		MaxRetries:   s.config.MaxRetries,
		BaseDelay:    s.config.BaseDelay,
		MaxDelay:     s.config.MaxDelay,
		RequestDelay: s.config.RequestDelay,
	}

	call := func(ctx context.Context, chunk []UserInput) ([]PredictResult, error) {
		var out []PredictResult
		if err := s.client.Post(ctx, s.config.Path, chunk, &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	start := time.Now()
	result := predictor.InvokeBatch(ctx, inputs, cfg, call, s.logger)
	status := predictor.ObserveBatch(stageName, start, result)
	if s.obs != nil {
		s.obs.RecordBatchProcessed(ctx, stageName, status)
		s.obs.RecordBatchDuration(ctx, stageName, time.Since(start))
	}
	return result, nil
}

// ProcessStudent runs L1 for one student and merges the outcome onto the
// prediction row. The returned flag reports whether any chunk failed, so the
// run coordinator can downgrade the overall status to PARTIAL.
func (s *Service) ProcessStudent(ctx context.Context, q repository.Querier, student *models.Student) (bool, error) {
	batch, err := s.PredictMajorsBatch(ctx, []UserInput{BuildInput(student)})
	if err != nil {
		return false, err
	}

	scores := []models.AdmissionScore{}
	for _, r := range batch.Results {
		scores = append(scores, r.Admissions...)
	}

	if _, err := s.results.ApplyStagePatch(ctx, q, student.ID, student.UserID, models.PredictionResultPatch{
		L1Results: scores,
	}); err != nil {
		return false, err
	}
	return len(batch.FailedChunks) > 0, nil
}

// GetResults reads the persisted L1 ranking for an exact (studentId, userId)
// pair. A FAILED run or an empty ranking is a typed not-found condition.
func (s *Service) GetResults(ctx context.Context, q repository.Querier, studentID string, userID *string) ([]models.AdmissionScore, error) {
	pr, err := s.results.GetResult(ctx, q, studentID, userID)
	if err != nil {
		return nil, err
	}
	if pr.Status == models.PredictionStatusFailed || len(pr.L1Results) == 0 {
		return nil, errors.NewPredictionResultNotFoundError(studentID)
	}
	return pr.L1Results, nil
}
