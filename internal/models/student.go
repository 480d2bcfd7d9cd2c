// internal/models/student.go
package models

import "time"

// ExamScore is one standardized exam result on a student's profile.
type ExamScore struct {
	ExamName string  `json:"examName"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"maxScore"`
	TakenAt  string  `json:"takenAt,omitempty"`
}

// Student is the academic profile read model feeding stage input builders.
type Student struct {
	ID                 string
	UserID             *string
	Name               string
	Email              string
	Phone              string
	GPA                float64
	GradeLevel         int
	TargetMajors       []string
	TranscriptSubjects []SubjectScore
	ExamScores         []ExamScore
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// UserKey returns the storage value for UserID (empty string for guests).
func (s Student) UserKey() string {
	if s.UserID == nil {
		return ""
	}
	return *s.UserID
}
