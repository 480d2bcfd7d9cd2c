// internal/models/ocr_result.go
package models

import (
	"time"
)

// OcrStatus is the lifecycle state of a per-file OCR result record.
type OcrStatus string

const (
	OcrStatusPending    OcrStatus = "PENDING"
	OcrStatusProcessing OcrStatus = "PROCESSING"
	OcrStatusCompleted  OcrStatus = "COMPLETED"
	OcrStatusFailed     OcrStatus = "FAILED"
	OcrStatusPartial    OcrStatus = "PARTIAL"
)

// IsTerminal reports whether the status permits no further transitions.
func (s OcrStatus) IsTerminal() bool {
	switch s {
	case OcrStatusCompleted, OcrStatusFailed, OcrStatusPartial:
		return true
	}
	return false
}

// CanTransitionTo enforces PENDING -> PROCESSING -> {COMPLETED, FAILED, PARTIAL}.
// Re-applying the current terminal status is legal so bulk failure marking
// stays idempotent. PENDING may fail directly (batch never dispatched).
func (s OcrStatus) CanTransitionTo(next OcrStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case OcrStatusPending:
		return next == OcrStatusProcessing || next == OcrStatusFailed
	case OcrStatusProcessing:
		return next.IsTerminal()
	}
	return false
}

// SubjectScore is one extracted subject/score pair. Scores are on a 0..10 scale.
type SubjectScore struct {
	SubjectName string  `json:"subjectName"`
	Score       float64 `json:"score"`
}

// OcrResult tracks the extraction outcome for one uploaded transcript file.
// Exactly one row exists per (StudentID, FileID); created PENDING when the
// batch is initiated and updated in place as extraction completes.
type OcrResult struct {
	ID                 string
	FileID             string
	StudentID          string
	ProcessedBy        *string
	Status             OcrStatus
	Scores             []SubjectScore
	DocumentAnnotation *string
	ErrorMessage       *string
	ElapsedMs          int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OcrResultPatch is a typed partial update applied through ApplyOcrPatch.
type OcrResultPatch struct {
	Status             *OcrStatus
	Scores             []SubjectScore
	DocumentAnnotation *string
	ErrorMessage       *string
	ElapsedMs          *int64
}

// ApplyOcrPatch returns a new entity value with the patch applied. Illegal
// status transitions are ignored so a second terminal update is a no-op.
func ApplyOcrPatch(o OcrResult, patch OcrResultPatch, now time.Time) OcrResult {
	out := o
	if patch.Status != nil && o.Status.CanTransitionTo(*patch.Status) {
		out.Status = *patch.Status
	}
	if patch.Scores != nil {
		out.Scores = patch.Scores
	}
	if patch.DocumentAnnotation != nil {
		out.DocumentAnnotation = patch.DocumentAnnotation
	}
	if patch.ErrorMessage != nil {
		out.ErrorMessage = patch.ErrorMessage
	}
	if patch.ElapsedMs != nil {
		out.ElapsedMs = *patch.ElapsedMs
	}
	out.UpdatedAt = now
	return out
}

// FileScoreExtractionResult carries one file's outcome inside a batch
// extraction response. Transient, never persisted directly.
type FileScoreExtractionResult struct {
	FileID             string         `json:"fileId"`
	Success            bool           `json:"success"`
	Scores             []SubjectScore `json:"scores,omitempty"`
	DocumentAnnotation string         `json:"documentAnnotation,omitempty"`
	Error              string         `json:"error,omitempty"`
}

// BatchScoreExtractionResult aggregates per-file extraction outcomes for
// reconciliation against the persisted OcrResult rows.
type BatchScoreExtractionResult struct {
	Results []FileScoreExtractionResult `json:"results"`
}
