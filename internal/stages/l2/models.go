// internal/stages/l2/models.go
package l2

import "admission-workers/internal/models"

// UserInput is the refined-scoring request shape: L1's profile fields plus
// per-subject averages and the student's declared major preferences.
type UserInput struct {
	StudentID       string                `json:"studentId"`
	GPA             float64               `json:"gpa"`
	GradeLevel      int                   `json:"gradeLevel"`
	SubjectAverages []models.SubjectScore `json:"subjectAverages"`
	TargetMajors    []string              `json:"targetMajors"`
	ExamScores      []models.ExamScore    `json:"examScores"`
}

// PredictResult is one student's refined admission-code scoring from the
// L2 stage.
type PredictResult struct {
	StudentID  string                  `json:"studentId"`
	Admissions []models.AdmissionScore `json:"admissions"`
}
