// internal/repository/prediction_results.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"admission-workers/internal/common/errors"
	"admission-workers/internal/models"

	"github.com/google/uuid"
)

// PredictionResultRepository persists PredictionResult rows. Uniqueness is
// (student_id, user_id) with an empty-string user_id for the guest flow so
// the ON CONFLICT target stays deterministic.
type PredictionResultRepository struct{}

func NewPredictionResultRepository() *PredictionResultRepository {
	return &PredictionResultRepository{}
}

const predictionResultColumns = `id, student_id, user_id, status, l1_results, l2_results, l3_results, error_message, created_at, updated_at`

// Upsert inserts or overwrites the prediction result for the row's
// (studentId, userId) pair. A fresh prediction overwrites a terminal row.
func (r *PredictionResultRepository) Upsert(ctx context.Context, q Querier, pr models.PredictionResult) (models.PredictionResult, error) {
	if pr.ID == "" {
		pr.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if pr.CreatedAt.IsZero() {
		pr.CreatedAt = now
	}
	pr.UpdatedAt = now

	l1, err := json.Marshal(pr.L1Results)
	if err != nil {
		return pr, errors.NewQueryExecutionFailedError("upsert prediction result", err)
	}
	l2, err := json.Marshal(pr.L2Results)
	if err != nil {
		return pr, errors.NewQueryExecutionFailedError("upsert prediction result", err)
	}
	l3, err := json.Marshal(pr.L3Results)
	if err != nil {
		return pr, errors.NewQueryExecutionFailedError("upsert prediction result", err)
	}

	query := `
		INSERT INTO prediction_results (` + predictionResultColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (student_id, user_id) DO UPDATE SET
			status = EXCLUDED.status,
			l1_results = EXCLUDED.l1_results,
			l2_results = EXCLUDED.l2_results,
			l3_results = EXCLUDED.l3_results,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	err = q.QueryRowContext(ctx, query,
		pr.ID, pr.StudentID, pr.UserKey(), string(pr.Status),
		l1, l2, l3, pr.ErrorMessage, pr.CreatedAt, pr.UpdatedAt,
	).Scan(&pr.ID, &pr.CreatedAt)
	if err != nil {
		return pr, errors.NewQueryExecutionFailedError("upsert prediction result", err)
	}

	return pr, nil
}

// FindByStudent reads the prediction result for an exact (studentId, userId)
// pair, the nil userID matching only guest rows.
func (r *PredictionResultRepository) FindByStudent(ctx context.Context, q Querier, studentID string, userID *string) (*models.PredictionResult, error) {
	query := `
		SELECT ` + predictionResultColumns + `
		FROM prediction_results
		WHERE student_id = $1 AND user_id = $2`
	return r.scanOne(q.QueryRowContext(ctx, query, studentID, userKey(userID)), studentID)
}

// FindByStudentForUpdate is FindByStudent with a row lock, for use inside a
// transaction handle so the L3 read-modify-write is atomic.
func (r *PredictionResultRepository) FindByStudentForUpdate(ctx context.Context, q Querier, studentID string, userID *string) (*models.PredictionResult, error) {
	query := `
		SELECT ` + predictionResultColumns + `
		FROM prediction_results
		WHERE student_id = $1 AND user_id = $2
		FOR UPDATE`
	return r.scanOne(q.QueryRowContext(ctx, query, studentID, userKey(userID)), studentID)
}

func (r *PredictionResultRepository) scanOne(row *sql.Row, studentID string) (*models.PredictionResult, error) {
	var (
		pr         models.PredictionResult
		uid        string
		status     string
		l1, l2, l3 []byte
	)
	err := row.Scan(
		&pr.ID, &pr.StudentID, &uid, &status,
		&l1, &l2, &l3, &pr.ErrorMessage, &pr.CreatedAt, &pr.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewPredictionResultNotFoundError(studentID)
		}
		return nil, errors.NewQueryExecutionFailedError("find prediction result", err)
	}

	pr.UserID = nullableKey(uid)
	pr.Status = models.PredictionStatus(status)
	if err := json.Unmarshal(l1, &pr.L1Results); err != nil {
		return nil, errors.NewQueryExecutionFailedError("decode l1 results", err)
	}
	if err := json.Unmarshal(l2, &pr.L2Results); err != nil {
		return nil, errors.NewQueryExecutionFailedError("decode l2 results", err)
	}
	if err := json.Unmarshal(l3, &pr.L3Results); err != nil {
		return nil, errors.NewQueryExecutionFailedError("decode l3 results", err)
	}

	return &pr, nil
}
