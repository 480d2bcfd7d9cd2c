// internal/stages/l3/validation.go
package l3

import (
	"fmt"
	"strings"
)

// ValidateInput checks one input record and returns a list of violations,
// empty when valid.
func ValidateInput(in UserInput) []string {
	var violations []string
	if strings.TrimSpace(in.StudentID) == "" {
		violations = append(violations, "studentId is required")
	}
	if in.GPA < 0 || in.GPA > 10 {
		violations = append(violations, fmt.Sprintf("gpa must be within [0, 10], got %.2f", in.GPA))
	}
	if len(in.TranscriptScores) == 0 {
		violations = append(violations, "transcriptScores must not be empty")
	}
	for i, sub := range in.TranscriptScores {
		if sub.SubjectName == "" {
			violations = append(violations, fmt.Sprintf("transcriptScores[%d].subjectName is required", i))
		}
		if sub.Score < 0 || sub.Score > 10 {
			violations = append(violations, fmt.Sprintf("transcriptScores[%d].score must be within [0, 10], got %.2f", i, sub.Score))
		}
	}
	return violations
}

// ValidateInputs aggregates violations across a batch, prefixing each with
// its input index.
func ValidateInputs(inputs []UserInput) error {
	var all []string
	for i, in := range inputs {
		for _, v := range ValidateInput(in) {
			all = append(all, fmt.Sprintf("inputs[%d]: %s", i, v))
		}
	}
	if len(all) > 0 {
		return fmt.Errorf("invalid L3 inputs: %s", strings.Join(all, "; "))
	}
	return nil
}
