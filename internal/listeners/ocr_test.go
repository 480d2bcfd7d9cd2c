// internal/listeners/ocr_test.go
package listeners

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"admission-workers/internal/common/logger"
	"admission-workers/internal/events"
	"admission-workers/internal/models"
	"admission-workers/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type txBeginnerFunc struct{ db *sql.DB }

func (b txBeginnerFunc) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return b.db.BeginTx(ctx, nil)
}

type fakeCounter struct {
	count int
	err   error
}

func (f *fakeCounter) CountCompletedByStudent(ctx context.Context, q repository.Querier, studentID string) (int, error) {
	return f.count, f.err
}

type fakeL3 struct {
	invocations int
	lastQuerier repository.Querier
	lastStudent string
	lastUser    *string
	settled     *models.PredictionResult
	err         error
}

func (f *fakeL3) ProcessInTransaction(ctx context.Context, q repository.Querier, studentID string, userID *string) (*models.PredictionResult, error) {
	f.invocations++
	f.lastQuerier = q
	f.lastStudent = studentID
	f.lastUser = userID
	return f.settled, f.err
}

type fakeFinalizer struct {
	calls       int
	lastQuerier repository.Querier
	last        *models.PredictionResult
}

func (f *fakeFinalizer) OnTerminal(ctx context.Context, q repository.Querier, pr *models.PredictionResult) {
	f.calls++
	f.lastQuerier = q
	f.last = pr
}

func settledRun(studentID string) *models.PredictionResult {
	return &models.PredictionResult{StudentID: studentID, Status: models.PredictionStatusCompleted}
}

func ocrPayload(t *testing.T, ids []string, studentID string) json.RawMessage {
	raw, err := json.Marshal(events.OcrCreatedEvent{OcrResultIDs: ids, StudentID: studentID})
	require.NoError(t, err)
	return raw
}

// ==========================
// Trigger Policy Tests
// ==========================

func TestOcrListener_NonQualifyingCountsNeverTrigger(t *testing.T) {
	tests := []struct {
		name  string
		count int
	}{
		{"no completed rows", 0},
		{"one completed row", 1},
		{"two completed rows", 2},
		{"four completed rows", 4},
		{"five completed rows", 5},
		{"seven completed rows", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			l3 := &fakeL3{}
			listener := NewOcrListener(txBeginnerFunc{db}, db, &fakeCounter{count: tt.count}, l3, &fakeFinalizer{}, logger.NewTestLogger(t))

			err = listener.Handle(context.Background(), ocrPayload(t, []string{"a"}, "s-1"))

			// dropped by policy, not an error
			assert.NoError(t, err)
			assert.Zero(t, l3.invocations)
		})
	}
}

func TestOcrListener_QualifyingCountTriggersOnceInTransaction(t *testing.T) {
	for _, count := range []int{3, 6} {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectCommit()

		l3 := &fakeL3{settled: settledRun("s-42")}
		finalizer := &fakeFinalizer{}
		listener := NewOcrListener(txBeginnerFunc{db}, db, &fakeCounter{count: count}, l3, finalizer, logger.NewTestLogger(t))

		err = listener.Handle(context.Background(), ocrPayload(t, []string{"a", "b"}, "s-42"))

		require.NoError(t, err)
		assert.Equal(t, 1, l3.invocations)
		assert.Equal(t, "s-42", l3.lastStudent)
		// the transaction handle is passed through, not the raw DB
		_, isTx := l3.lastQuerier.(*sql.Tx)
		assert.True(t, isTx)

		// side effects fire once, after the commit, on the plain DB handle
		assert.Equal(t, 1, finalizer.calls)
		assert.Equal(t, "s-42", finalizer.last.StudentID)
		_, finalizerOnTx := finalizer.lastQuerier.(*sql.Tx)
		assert.False(t, finalizerOnTx)

		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	}
}

func TestOcrListener_CommitFailureSkipsSideEffects(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(assert.AnError)

	finalizer := &fakeFinalizer{}
	listener := NewOcrListener(txBeginnerFunc{db}, db, &fakeCounter{count: 3}, &fakeL3{settled: settledRun("s-1")}, finalizer, logger.NewTestLogger(t))

	err = listener.Handle(context.Background(), ocrPayload(t, []string{"a"}, "s-1"))

	// the run never became durable, so nothing gets cached or announced
	assert.Error(t, err)
	assert.Zero(t, finalizer.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOcrListener_L3FailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	l3 := &fakeL3{err: assert.AnError}
	finalizer := &fakeFinalizer{}
	listener := NewOcrListener(txBeginnerFunc{db}, db, &fakeCounter{count: 6}, l3, finalizer, logger.NewTestLogger(t))

	err = listener.Handle(context.Background(), ocrPayload(t, []string{"a"}, "s-1"))

	assert.Error(t, err)
	assert.Equal(t, 1, l3.invocations)
	assert.Zero(t, finalizer.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOcrListener_CounterFailurePropagates(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l3 := &fakeL3{}
	listener := NewOcrListener(txBeginnerFunc{db}, db, &fakeCounter{err: assert.AnError}, l3, &fakeFinalizer{}, logger.NewTestLogger(t))

	err = listener.Handle(context.Background(), ocrPayload(t, []string{"a"}, "s-1"))

	assert.Error(t, err)
	assert.Zero(t, l3.invocations)
}
