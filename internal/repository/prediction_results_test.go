// internal/repository/prediction_results_test.go
package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"admission-workers/internal/common/errors"
	"admission-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func predictionColumns() []string {
	return []string{"id", "student_id", "user_id", "status", "l1_results", "l2_results", "l3_results", "error_message", "created_at", "updated_at"}
}

func TestPredictionResultRepository_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPredictionResultRepository()
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO prediction_results").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("pr-1", now))

	saved, err := repo.Upsert(context.Background(), db, models.PredictionResult{
		StudentID: "s-1",
		Status:    models.PredictionStatusProcessing,
	})

	require.NoError(t, err)
	assert.Equal(t, "pr-1", saved.ID)
	assert.Equal(t, now, saved.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPredictionResultRepository_FindByStudent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPredictionResultRepository()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM prediction_results").
		WithArgs("s-1", "u-1").
		WillReturnRows(sqlmock.NewRows(predictionColumns()).AddRow(
			"pr-1", "s-1", "u-1", "COMPLETED",
			[]byte(`[{"admissionCode":"7480201","score":0.9}]`),
			[]byte(`[]`), []byte(`[]`), nil, now, now,
		))

	uid := "u-1"
	pr, err := repo.FindByStudent(context.Background(), db, "s-1", &uid)

	require.NoError(t, err)
	assert.Equal(t, models.PredictionStatusCompleted, pr.Status)
	require.NotNil(t, pr.UserID)
	assert.Equal(t, "u-1", *pr.UserID)
	require.Len(t, pr.L1Results, 1)
	assert.Equal(t, "7480201", pr.L1Results[0].AdmissionCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPredictionResultRepository_FindByStudent_GuestUsesEmptyKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPredictionResultRepository()
	now := time.Now().UTC()

	// guest lookups must match only the empty-string sentinel
	mock.ExpectQuery("SELECT (.+) FROM prediction_results").
		WithArgs("s-1", "").
		WillReturnRows(sqlmock.NewRows(predictionColumns()).AddRow(
			"pr-2", "s-1", "", "PARTIAL",
			[]byte(`[]`), []byte(`[]`), []byte(`[]`), nil, now, now,
		))

	pr, err := repo.FindByStudent(context.Background(), db, "s-1", nil)

	require.NoError(t, err)
	assert.Nil(t, pr.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPredictionResultRepository_FindByStudent_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPredictionResultRepository()

	mock.ExpectQuery("SELECT (.+) FROM prediction_results").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FindByStudent(context.Background(), db, "missing", nil)

	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, errors.ErrCodePredictionResultNotFound, errors.CodeOf(err))
}
