// internal/stages/l1/validation.go
package l1

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
	if in.GradeLevel < 10 || in.GradeLevel > 12 {
		violations = append(violations, fmt.Sprintf("gradeLevel must be within [10, 12], got %d", in.GradeLevel))
	}
	for i, exam := range in.ExamScores {
		if exam.ExamName == "" {
			violations = append(violations, fmt.Sprintf("examScores[%d].examName is required", i))
		}
		if exam.MaxScore > 0 && exam.Score > exam.MaxScore {
			violations = append(violations, fmt.Sprintf("examScores[%d].score exceeds maxScore", i))
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
		return fmt.Errorf("invalid L1 inputs: %s", strings.Join(all, "; "))
	}
	return nil
}
