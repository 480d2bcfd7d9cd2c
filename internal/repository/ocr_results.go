// internal/repository/ocr_results.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"admission-workers/internal/common/errors"
	"admission-workers/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// OcrResultRepository persists per-file OCR result rows, one per
// (student_id, file_id) pair.
type OcrResultRepository struct{}

func NewOcrResultRepository() *OcrResultRepository {
	return &OcrResultRepository{}
}

const ocrResultColumns = `id, file_id, student_id, processed_by, status, scores, document_annotation, error_message, elapsed_ms, created_at, updated_at`

// InsertPending creates PENDING rows for a freshly initiated batch. A repeat
// submission for the same (student, file) pair resets the existing row back
// to PENDING instead of violating the unique index.
func (r *OcrResultRepository) InsertPending(ctx context.Context, q Querier, results []models.OcrResult) ([]models.OcrResult, error) {
	now := time.Now().UTC()
	out := make([]models.OcrResult, 0, len(results))

	for _, res := range results {
		if res.ID == "" {
			res.ID = uuid.New().String()
		}
		res.Status = models.OcrStatusPending
		res.CreatedAt = now
		res.UpdatedAt = now

		scores, err := json.Marshal(res.Scores)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("insert ocr result", err)
		}

		query := `
			INSERT INTO ocr_results (` + ocrResultColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (student_id, file_id) DO UPDATE SET
				status = EXCLUDED.status,
				processed_by = EXCLUDED.processed_by,
				scores = EXCLUDED.scores,
				document_annotation = EXCLUDED.document_annotation,
				error_message = EXCLUDED.error_message,
				elapsed_ms = EXCLUDED.elapsed_ms,
				updated_at = EXCLUDED.updated_at
			RETURNING id, created_at`

		err = q.QueryRowContext(ctx, query,
			res.ID, res.FileID, res.StudentID, res.ProcessedBy, string(res.Status),
			scores, res.DocumentAnnotation, res.ErrorMessage, res.ElapsedMs,
			res.CreatedAt, res.UpdatedAt,
		).Scan(&res.ID, &res.CreatedAt)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("insert ocr result", err)
		}
		out = append(out, res)
	}

	return out, nil
}

// Update writes a single row back by id.
func (r *OcrResultRepository) Update(ctx context.Context, q Querier, res models.OcrResult) error {
	scores, err := json.Marshal(res.Scores)
	if err != nil {
		return errors.NewQueryExecutionFailedError("update ocr result", err)
	}

	query := `
		UPDATE ocr_results SET
			status = $2,
			scores = $3,
			document_annotation = $4,
			error_message = $5,
			elapsed_ms = $6,
			updated_at = $7
		WHERE id = $1`

	result, err := q.ExecContext(ctx, query,
		res.ID, string(res.Status), scores, res.DocumentAnnotation,
		res.ErrorMessage, res.ElapsedMs, res.UpdatedAt,
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("update ocr result", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.NewOcrResultNotFoundError(fmt.Sprintf("id: %s", res.ID))
	}

	return nil
}

// FindByIDs loads rows by id, in no particular order.
func (r *OcrResultRepository) FindByIDs(ctx context.Context, q Querier, ids []string) ([]models.OcrResult, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + ocrResultColumns + `
		FROM ocr_results
		WHERE id = ANY($1)`

	rows, err := q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("find ocr results", err)
	}
	defer rows.Close()

	return scanOcrRows(rows)
}

// CountCompletedByStudent counts COMPLETED rows for a student, the input to
// the 3-or-6 trigger policy.
func (r *OcrResultRepository) CountCompletedByStudent(ctx context.Context, q Querier, studentID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM ocr_results WHERE student_id = $1 AND status = $2`
	err := q.QueryRowContext(ctx, query, studentID, string(models.OcrStatusCompleted)).Scan(&count)
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("count completed ocr results", err)
	}
	return count, nil
}

// FindCompletedByStudent loads COMPLETED rows for a student ordered by
// creation time, feeding the L3 input builder.
func (r *OcrResultRepository) FindCompletedByStudent(ctx context.Context, q Querier, studentID string) ([]models.OcrResult, error) {
	query := `
		SELECT ` + ocrResultColumns + `
		FROM ocr_results
		WHERE student_id = $1 AND status = $2
		ORDER BY created_at ASC`

	rows, err := q.QueryContext(ctx, query, studentID, string(models.OcrStatusCompleted))
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("find completed ocr results", err)
	}
	defer rows.Close()

	return scanOcrRows(rows)
}

func scanOcrRows(rows *sql.Rows) ([]models.OcrResult, error) {
	var out []models.OcrResult
	for rows.Next() {
		var (
			res    models.OcrResult
			status string
			scores []byte
		)
		err := rows.Scan(
			&res.ID, &res.FileID, &res.StudentID, &res.ProcessedBy, &status,
			&scores, &res.DocumentAnnotation, &res.ErrorMessage, &res.ElapsedMs,
			&res.CreatedAt, &res.UpdatedAt,
		)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan ocr result", err)
		}
		res.Status = models.OcrStatus(status)
		if err := json.Unmarshal(scores, &res.Scores); err != nil {
			return nil, errors.NewQueryExecutionFailedError("decode ocr scores", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return out, nil
		}
		return nil, errors.NewQueryExecutionFailedError("iterate ocr results", err)
	}
	return out, nil
}
