// internal/listeners/transcript.go
package listeners

import (
	"context"
	"encoding/json"

	"admission-workers/internal/common/logger"
	"admission-workers/internal/events"
	"admission-workers/internal/models"
	"admission-workers/internal/repository"
	"admission-workers/internal/services/predictionresult"
)

// StageProcessor runs one prediction stage for a student and reports whether
// any chunk failed.
type StageProcessor interface {
	ProcessStudent(ctx context.Context, q repository.Querier, student *models.Student) (bool, error)
}

// StudentFinder loads the academic profile feeding the stage input builders.
type StudentFinder interface {
	FindByID(ctx context.Context, q repository.Querier, studentID string) (*models.Student, error)
}

// TranscriptListener reacts to transcript.updated events by recomputing the
// L1 and L2 stages for the student, sequentially, as a fresh run.
type TranscriptListener struct {
	querier  repository.Querier
	students StudentFinder
	results  *predictionresult.Service
	l1       StageProcessor
	l2       StageProcessor
	logger   logger.Logger
}

func NewTranscriptListener(
	querier repository.Querier,
	students StudentFinder,
	results *predictionresult.Service,
	l1Stage StageProcessor,
	l2Stage StageProcessor,
	log logger.Logger,
) *TranscriptListener {
	return &TranscriptListener{
		querier:  querier,
		students: students,
		results:  results,
		l1:       l1Stage,
		l2:       l2Stage,
		logger:   log.WithFields(map[string]interface{}{"listener": "transcript-updated"}),
	}
}

// Register attaches the listener to the dispatcher with its payload schema.
func (l *TranscriptListener) Register(d *events.Dispatcher) error {
	return d.Register(events.EventTranscriptUpdated, events.TranscriptUpdatedSchema, l.Handle)
}

// Handle opens a PROCESSING run, executes L1 then L2, and settles the row to
// COMPLETED, PARTIAL or FAILED.
func (l *TranscriptListener) Handle(ctx context.Context, payload json.RawMessage) error {
	var ev events.TranscriptUpdatedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}

	student, err := l.students.FindByID(ctx, l.querier, ev.StudentID)
	if err != nil {
		return err
	}

	if _, err := l.results.StartProcessing(ctx, l.querier, ev.StudentID, ev.UserID); err != nil {
		return err
	}

	l1Partial, err := l.l1.ProcessStudent(ctx, l.querier, student)
	if err != nil {
		return l.fail(ctx, ev, err)
	}

	l2Partial, err := l.l2.ProcessStudent(ctx, l.querier, student)
	if err != nil {
		return l.fail(ctx, ev, err)
	}

	status := models.PredictionStatusCompleted
	if l1Partial || l2Partial {
		status = models.PredictionStatusPartial
	}

	if _, err := l.results.ApplyStagePatch(ctx, l.querier, ev.StudentID, ev.UserID, models.PredictionResultPatch{
		Status: &status,
	}); err != nil {
		return err
	}

	l.logger.Info("transcript-driven prediction settled", map[string]interface{}{
		"studentId":    ev.StudentID,
		"transcriptId": ev.TranscriptID,
		"status":       string(status),
	})
	return nil
}

// fail settles the run as FAILED with the triggering error, then returns it.
func (l *TranscriptListener) fail(ctx context.Context, ev events.TranscriptUpdatedEvent, cause error) error {
	status := models.PredictionStatusFailed
	msg := cause.Error()
	if _, err := l.results.ApplyStagePatch(ctx, l.querier, ev.StudentID, ev.UserID, models.PredictionResultPatch{
		Status:       &status,
		ErrorMessage: &msg,
	}); err != nil {
		l.logger.Error("could not settle run as FAILED", map[string]interface{}{
			"studentId": ev.StudentID,
			"error":     err.Error(),
		})
	}
	return cause
}
