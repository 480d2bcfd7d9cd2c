// internal/stages/l1/models.go
package l1

import "admission-workers/internal/models"

// UserInput is the coarse-filtering request shape sent to the predictor.
// Transient; never persisted.
type UserInput struct {
	StudentID  string             `json:"studentId"`
	GPA        float64            `json:"gpa"`
	GradeLevel int                `json:"gradeLevel"`
	ExamScores []models.ExamScore `json:"examScores"`
}

// PredictResult is one student's ordered admission-code ranking from the
// L1 stage.
type PredictResult struct {
	StudentID  string                  `json:"studentId"`
	Admissions []models.AdmissionScore `json:"admissions"`
}
