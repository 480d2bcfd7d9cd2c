// internal/listeners/ocr.go

// Package listeners holds the event-driven prediction triggers. Handlers
// never propagate failures across the event boundary; the dispatcher logs
// and drops whatever they return.
package listeners

import (
	"context"
	"database/sql"
	"encoding/json"

	"admission-workers/internal/common/logger"
	"admission-workers/internal/events"
	"admission-workers/internal/models"
	"admission-workers/internal/repository"
)

// Completed transcript submissions come in two valid sizes: a mid-year
// partial (3 files) or a full year (6 files). Any other completed-count means
// the student is still mid-upload and the event is dropped by policy.
var qualifyingOcrCounts = map[int]bool{3: true, 6: true}

// TxBeginner opens a transaction handle threaded through the L3 trigger so
// its read-modify-write stays atomic.
type TxBeginner interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
}

// L3Trigger is the slice of the L3 stage the listener drives. A non-nil row
// means the run just reached a terminal status and still owes its side
// effects, which must not fire before the transaction commits.
type L3Trigger interface {
	ProcessInTransaction(ctx context.Context, q repository.Querier, studentID string, userID *string) (*models.PredictionResult, error)
}

// RunFinalizer fires the terminal-edge side effects for a settled run.
type RunFinalizer interface {
	OnTerminal(ctx context.Context, q repository.Querier, pr *models.PredictionResult)
}

// OcrCompletedCounter reports how many COMPLETED OCR rows a student has.
type OcrCompletedCounter interface {
	CountCompletedByStudent(ctx context.Context, q repository.Querier, studentID string) (int, error)
}

// OcrListener reacts to ocr.created events with the 3-or-6 trigger policy.
type OcrListener struct {
	db        TxBeginner
	querier   repository.Querier
	counter   OcrCompletedCounter
	l3        L3Trigger
	finalizer RunFinalizer
	logger    logger.Logger
}

func NewOcrListener(db TxBeginner, querier repository.Querier, counter OcrCompletedCounter, l3 L3Trigger, finalizer RunFinalizer, log logger.Logger) *OcrListener {
	return &OcrListener{
		db:        db,
		querier:   querier,
		counter:   counter,
		l3:        l3,
		finalizer: finalizer,
		logger:    log.WithFields(map[string]interface{}{"listener": "ocr-created"}),
	}
}

// Register attaches the listener to the dispatcher with its payload schema.
func (l *OcrListener) Register(d *events.Dispatcher) error {
	return d.Register(events.EventOcrCreated, events.OcrCreatedSchema, l.Handle)
}

// Handle counts the student's completed OCR rows and, on a qualifying count,
// runs the L3 prediction inside a fresh transaction.
func (l *OcrListener) Handle(ctx context.Context, payload json.RawMessage) error {
	var ev events.OcrCreatedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}

	count, err := l.counter.CountCompletedByStudent(ctx, l.querier, ev.StudentID)
	if err != nil {
		return err
	}

	if !qualifyingOcrCounts[count] {
		l.logger.Info("completed-count outside trigger policy, dropping event", map[string]interface{}{
			"studentId":      ev.StudentID,
			"completedCount": count,
		})
		return nil
	}

	tx, err := l.db.BeginTx(ctx)
	if err != nil {
		return err
	}

	settled, err := l.l3.ProcessInTransaction(ctx, tx, ev.StudentID, ev.UserID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			l.logger.Error("rollback failed", map[string]interface{}{
				"studentId": ev.StudentID,
				"error":     rbErr.Error(),
			})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	// Side effects only once the row is durable; a failed commit must never
	// leave a cached or announced result behind.
	if settled != nil && l.finalizer != nil {
		l.finalizer.OnTerminal(ctx, l.querier, settled)
	}

	l.logger.Info("L3 prediction triggered", map[string]interface{}{
		"studentId":      ev.StudentID,
		"completedCount": count,
	})
	return nil
}
