// internal/repository/students.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"admission-workers/internal/common/errors"
	"admission-workers/internal/models"
)

// StudentRepository is the read model for student academic profiles.
type StudentRepository struct{}

func NewStudentRepository() *StudentRepository {
	return &StudentRepository{}
}

// FindByID loads a student profile with transcript subjects and exam scores.
func (r *StudentRepository) FindByID(ctx context.Context, q Querier, studentID string) (*models.Student, error) {
	query := `
		SELECT id, user_id, name, email, phone, gpa, grade_level, target_majors, transcript_subjects, exam_scores, created_at, updated_at
		FROM students
		WHERE id = $1`

	var (
		s          models.Student
		uid        string
		majors     []byte
		subjects   []byte
		examScores []byte
	)
	err := q.QueryRowContext(ctx, query, studentID).Scan(
		&s.ID, &uid, &s.Name, &s.Email, &s.Phone, &s.GPA, &s.GradeLevel,
		&majors, &subjects, &examScores, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewStudentNotFoundError(studentID)
		}
		return nil, errors.NewQueryExecutionFailedError("find student", err)
	}

	s.UserID = nullableKey(uid)
	if err := json.Unmarshal(majors, &s.TargetMajors); err != nil {
		return nil, errors.NewQueryExecutionFailedError("decode target majors", err)
	}
	if err := json.Unmarshal(subjects, &s.TranscriptSubjects); err != nil {
		return nil, errors.NewQueryExecutionFailedError("decode transcript subjects", err)
	}
	if err := json.Unmarshal(examScores, &s.ExamScores); err != nil {
		return nil, errors.NewQueryExecutionFailedError("decode exam scores", err)
	}

	return &s, nil
}
