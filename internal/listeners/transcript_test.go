// internal/listeners/transcript_test.go
package listeners

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"admission-workers/internal/common/logger"
	"admission-workers/internal/events"
	"admission-workers/internal/models"
	"admission-workers/internal/repository"
	"admission-workers/internal/services/predictionresult"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeStage struct {
	invocations int
	partial     bool
	err         error
}

func (f *fakeStage) ProcessStudent(ctx context.Context, q repository.Querier, student *models.Student) (bool, error) {
	f.invocations++
	return f.partial, f.err
}

type fakeStudents struct {
	student *models.Student
	err     error
}

func (f *fakeStudents) FindByID(ctx context.Context, q repository.Querier, studentID string) (*models.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.student, nil
}

func transcriptPayload(t *testing.T, studentID string) json.RawMessage {
	raw, err := json.Marshal(events.TranscriptUpdatedEvent{StudentID: studentID, TranscriptID: "t-1"})
	require.NoError(t, err)
	return raw
}

func predictionRow(mock sqlmock.Sqlmock, status string, now time.Time) {
	mock.ExpectQuery("SELECT (.+) FROM prediction_results").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "user_id", "status", "l1_results", "l2_results", "l3_results", "error_message", "created_at", "updated_at"}).
			AddRow("pr-1", "s-1", "", status, []byte(`[]`), []byte(`[]`), []byte(`[]`), nil, now, now))
}

func predictionUpsert(mock sqlmock.Sqlmock, now time.Time) {
	mock.ExpectQuery("INSERT INTO prediction_results").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("pr-1", now))
}

func newTranscriptListener(t *testing.T, db *sql.DB, l1, l2 *fakeStage) *TranscriptListener {
	results := predictionresult.NewService(
		repository.NewPredictionResultRepository(),
		repository.NewStudentRepository(),
		nil, nil, logger.NewTestLogger(t),
	)
	students := &fakeStudents{student: &models.Student{ID: "s-1", GPA: 8.0, GradeLevel: 12}}
	return NewTranscriptListener(db, students, results, l1, l2, logger.NewTestLogger(t))
}

// ==========================
// Run Coordination Tests
// ==========================

func TestTranscriptListener_RunsBothStagesAndCompletes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	predictionUpsert(mock, now) // StartProcessing
	predictionRow(mock, "PROCESSING", now)
	predictionUpsert(mock, now) // settle COMPLETED

	l1, l2 := &fakeStage{}, &fakeStage{}
	listener := newTranscriptListener(t, db, l1, l2)

	err = listener.Handle(context.Background(), transcriptPayload(t, "s-1"))

	require.NoError(t, err)
	assert.Equal(t, 1, l1.invocations)
	assert.Equal(t, 1, l2.invocations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptListener_PartialStageDowngradesRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	predictionUpsert(mock, now)
	predictionRow(mock, "PROCESSING", now)
	predictionUpsert(mock, now)

	l1, l2 := &fakeStage{}, &fakeStage{partial: true}
	listener := newTranscriptListener(t, db, l1, l2)

	err = listener.Handle(context.Background(), transcriptPayload(t, "s-1"))

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptListener_StageErrorSettlesFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	predictionUpsert(mock, now)            // StartProcessing
	predictionRow(mock, "PROCESSING", now) // fail() read
	predictionUpsert(mock, now)            // fail() write FAILED

	l1 := &fakeStage{err: assert.AnError}
	l2 := &fakeStage{}
	listener := newTranscriptListener(t, db, l1, l2)

	err = listener.Handle(context.Background(), transcriptPayload(t, "s-1"))

	assert.ErrorIs(t, err, assert.AnError)
	// L2 never runs once L1 failed
	assert.Zero(t, l2.invocations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptListener_UnknownStudentAborts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	results := predictionresult.NewService(
		repository.NewPredictionResultRepository(),
		repository.NewStudentRepository(),
		nil, nil, logger.NewTestLogger(t),
	)
	listener := NewTranscriptListener(db, &fakeStudents{err: assert.AnError}, results, &fakeStage{}, &fakeStage{}, logger.NewTestLogger(t))

	err = listener.Handle(context.Background(), transcriptPayload(t, "missing"))

	assert.Error(t, err)
	// no run was opened
	assert.NoError(t, mock.ExpectationsWereMet())
}
