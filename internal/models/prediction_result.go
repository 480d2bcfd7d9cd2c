// internal/models/prediction_result.go
package models

import (
	"time"
)

// PredictionStatus is the lifecycle state of a PredictionResult.
type PredictionStatus string

const (
	PredictionStatusProcessing PredictionStatus = "PROCESSING"
	PredictionStatusCompleted  PredictionStatus = "COMPLETED"
	PredictionStatusFailed     PredictionStatus = "FAILED"
	PredictionStatusPartial    PredictionStatus = "PARTIAL"
)

// IsTerminal reports whether the status permits no further transitions.
func (s PredictionStatus) IsTerminal() bool {
	switch s {
	case PredictionStatusCompleted, PredictionStatusFailed, PredictionStatusPartial:
		return true
	}
	return false
}

// CanTransitionTo enforces forward-only transitions:
// PROCESSING -> {COMPLETED, FAILED, PARTIAL}. Terminal states are immutable;
// a fresh prediction overwrites the row via upsert instead.
func (s PredictionStatus) CanTransitionTo(next PredictionStatus) bool {
	if s == next {
		return true
	}
	return s == PredictionStatusProcessing && next.IsTerminal()
}

// AdmissionScore is one entry of an ordered L1/L2 result list.
type AdmissionScore struct {
	AdmissionCode string  `json:"admissionCode"`
	Score         float64 `json:"score"`
}

// ProgramDetail is one detailed program item in an L3 result.
type ProgramDetail struct {
	AdmissionCode  string  `json:"admissionCode"`
	UniversityName string  `json:"universityName"`
	ProgramName    string  `json:"programName"`
	Campus         string  `json:"campus,omitempty"`
	Score          float64 `json:"score"`
	Capacity       int     `json:"capacity,omitempty"`
	TuitionFee     float64 `json:"tuitionFee,omitempty"`
}

// L3AdmissionResult groups detailed program items under one admission code.
type L3AdmissionResult struct {
	AdmissionCode string          `json:"admissionCode"`
	Programs      []ProgramDetail `json:"programs"`
}

// PredictionResult holds the consolidated prediction for one student.
// Unique by (StudentID, UserID); a nil UserID is the guest flow and is
// stored as an empty-string sentinel so the unique index stays deterministic.
type PredictionResult struct {
	ID           string
	StudentID    string
	UserID       *string
	Status       PredictionStatus
	L1Results    []AdmissionScore
	L2Results    []AdmissionScore
	L3Results    []L3AdmissionResult
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PredictionResultPatch is a typed partial update applied through
// ApplyPredictionPatch rather than mutating the entity in place.
type PredictionResultPatch struct {
	Status       *PredictionStatus
	L1Results    []AdmissionScore
	L2Results    []AdmissionScore
	L3Results    []L3AdmissionResult
	ErrorMessage *string
}

// ApplyPredictionPatch returns a new entity value with the patch applied.
// An illegal status transition leaves the status untouched; result lists
// replace wholesale when present.
func ApplyPredictionPatch(pr PredictionResult, patch PredictionResultPatch, now time.Time) PredictionResult {
	out := pr
	if patch.Status != nil && pr.Status.CanTransitionTo(*patch.Status) {
		out.Status = *patch.Status
	}
	if patch.L1Results != nil {
		out.L1Results = patch.L1Results
	}
	if patch.L2Results != nil {
		out.L2Results = patch.L2Results
	}
	if patch.L3Results != nil {
		out.L3Results = patch.L3Results
	}
	if patch.ErrorMessage != nil {
		out.ErrorMessage = patch.ErrorMessage
	}
	out.UpdatedAt = now
	return out
}

// UserKey returns the storage value for UserID (empty string for guests).
func (pr PredictionResult) UserKey() string {
	if pr.UserID == nil {
		return ""
	}
	return *pr.UserID
}
