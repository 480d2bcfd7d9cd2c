// internal/stages/l3/service.go

// Package l3 is the final transcript-based ranking stage. It only runs once
// enough OCR-extracted subject scores exist for a student, and its
// read-modify-write of the prediction row happens on a caller-supplied
// transaction handle so the trigger path stays atomic.
package l3

import (
	"context"
	"time"

	"admission-workers/internal/catalog"
	"admission-workers/internal/common/errors"
	"admission-workers/internal/common/logger"
	"admission-workers/internal/common/observability"
	"admission-workers/internal/models"
	"admission-workers/internal/predictor"
	"admission-workers/internal/repository"
	"admission-workers/internal/services/predictionresult"
)

const stageName = "l3"

type Service struct {
	client   *predictor.Client
	results  *predictionresult.Service
	students *repository.StudentRepository
	ocrRepo  *repository.OcrResultRepository
	prRepo   *repository.PredictionResultRepository
	catalog  catalog.Catalog
	obs      *observability.Observability
	config   *Config
	logger   logger.Logger
}

func NewService(
	client *predictor.Client,
	results *predictionresult.Service,
	students *repository.StudentRepository,
	ocrRepo *repository.OcrResultRepository,
	prRepo *repository.PredictionResultRepository,
	cat catalog.Catalog,
	obs *observability.Observability,
	config *Config,
	log logger.Logger,
) *Service {
	return &Service{
		client:   client,
		results:  results,
		students: students,
		ocrRepo:  ocrRepo,
		prRepo:   prRepo,
		catalog:  cat,
		obs:      obs,
		config:   config,
		logger:   log.WithFields(map[string]interface{}{"stage": stageName}),
	}
}

// BuildInput maps the student profile plus their completed OCR rows onto the
// L3 request shape. Subjects appearing across multiple transcripts are
// averaged.
func BuildInput(student *models.Student, ocrRows []models.OcrResult) UserInput {
	type agg struct {
		sum   float64
		count int
	}
	byName := make(map[string]*agg)
	var order []string
	for _, row := range ocrRows {
		for _, sub := range row.Scores {
			a, ok := byName[sub.SubjectName]
			if !ok {
				a = &agg{}
				byName[sub.SubjectName] = a
				order = append(order, sub.SubjectName)
			}
			a.sum += sub.Score
			a.count++
		}
	}

	scores := make([]models.SubjectScore, 0, len(order))
	for _, name := range order {
		a := byName[name]
		scores = append(scores, models.SubjectScore{
			SubjectName: name,
			Score:       a.sum / float64(a.count),
		})
	}

	return UserInput{
		StudentID:        student.ID,
		GPA:              student.GPA,
		GradeLevel:       student.GradeLevel,
		TargetMajors:     student.TargetMajors,
		TranscriptScores: scores,
	}
}

// PredictMajorsBatch validates the inputs and runs them through the batch
// invoker against the L3 path.
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

// ProcessInTransaction runs the full L3 flow on a caller-supplied handle:
// lock the prediction row, gather completed OCR scores, invoke the predictor,
// enrich the ranking through the program catalog and persist the outcome.
// Zero completed OCR rows is a precondition failure that aborts the whole
// operation. The terminal-edge side effects (cache, notification) are NOT
// fired here: the returned row, non-nil when the run just reached a terminal
// status, is handed back so the caller can fire them after its commit.
func (s *Service) ProcessInTransaction(ctx context.Context, q repository.Querier, studentID string, userID *string) (*models.PredictionResult, error) {
	student, err := s.students.FindByID(ctx, q, studentID)
	if err != nil {
		return nil, err
	}

	ocrRows, err := s.ocrRepo.FindCompletedByStudent(ctx, q, studentID)
	if err != nil {
		return nil, err
	}
	if len(ocrRows) == 0 {
		return nil, errors.NewOcrBatchEmptyError(studentID)
	}

	// Lock the row for the duration of the transaction; create it when this
	// trigger fires before any L1/L2 run.
	if _, err := s.prRepo.FindByStudentForUpdate(ctx, q, studentID, userID); err != nil {
		if !errors.IsNotFound(err) {
			return nil, err
		}
		if _, err := s.results.StartProcessing(ctx, q, studentID, userID); err != nil {
			return nil, err
		}
	}

	batch, err := s.PredictMajorsBatch(ctx, []UserInput{BuildInput(student, ocrRows)})
	if err != nil {
		return nil, err
	}

	var admissions []models.AdmissionScore
	for _, r := range batch.Results {
		admissions = append(admissions, r.Admissions...)
	}

	enriched := s.enrich(ctx, admissions)

	status := models.PredictionStatusCompleted
	if len(batch.FailedChunks) > 0 {
		status = models.PredictionStatusPartial
	}

	saved, reachedTerminal, err := s.results.ApplyStagePatchDeferred(ctx, q, studentID, userID, models.PredictionResultPatch{
		Status:    &status,
		L3Results: enriched,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("L3 prediction persisted", map[string]interface{}{
		"studentId":      studentID,
		"admissionCodes": len(enriched),
		"status":         string(status),
	})
	if !reachedTerminal {
		return nil, nil
	}
	return &saved, nil
}

// GetResults reads the persisted L3 ranking for an exact (studentId, userId)
// pair. A FAILED run or an empty ranking is a typed not-found condition.
func (s *Service) GetResults(ctx context.Context, q repository.Querier, studentID string, userID *string) ([]models.L3AdmissionResult, error) {
	pr, err := s.results.GetResult(ctx, q, studentID, userID)
	if err != nil {
		return nil, err
	}
	if pr.Status == models.PredictionStatusFailed || len(pr.L3Results) == 0 {
		return nil, errors.NewPredictionResultNotFoundError(studentID)
	}
	return pr.L3Results, nil
}

// enrich resolves each predicted admission code to its catalog programs. A
// catalog outage degrades to bare entries carrying only code and score.
func (s *Service) enrich(ctx context.Context, admissions []models.AdmissionScore) []models.L3AdmissionResult {
	out := make([]models.L3AdmissionResult, 0, len(admissions))

	codes := make([]string, 0, len(admissions))
	for _, a := range admissions {
		codes = append(codes, a.AdmissionCode)
	}

	var programs map[string][]models.ProgramDetail
	if s.catalog != nil {
		var err error
		programs, err = s.catalog.LookupPrograms(ctx, codes)
		if err != nil {
			s.logger.Warn("catalog enrichment unavailable, returning bare codes", map[string]interface{}{
				"error": err.Error(),
			})
			programs = nil
		}
	}

	for _, a := range admissions {
		matched := programs[a.AdmissionCode]
		if len(matched) == 0 {
			matched = []models.ProgramDetail{{
				AdmissionCode: a.AdmissionCode,
				Score:         a.Score,
			}}
		}
		out = append(out, models.L3AdmissionResult{
			AdmissionCode: a.AdmissionCode,
			Programs:      matched,
		})
	}
	return out
}
