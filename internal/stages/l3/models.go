// internal/stages/l3/models.go
package l3

import "admission-workers/internal/models"

// UserInput is the final transcript-based ranking request shape: the student
// profile plus the subject scores extracted from their uploaded transcripts.
type UserInput struct {
	StudentID        string                `json:"studentId"`
	GPA              float64               `json:"gpa"`
	GradeLevel       int                   `json:"gradeLevel"`
	TargetMajors     []string              `json:"targetMajors"`
	TranscriptScores []models.SubjectScore `json:"transcriptScores"`
}

// PredictResult is one student's final admission-code ranking from the
// L3 stage, before catalog enrichment.
type PredictResult struct {
	StudentID  string                  `json:"studentId"`
	Admissions []models.AdmissionScore `json:"admissions"`
}
