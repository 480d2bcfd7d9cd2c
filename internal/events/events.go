// internal/events/events.go
package events

// Event names routed by the dispatcher.
const (
	EventOcrCreated        = "ocr.created"
	EventTranscriptUpdated = "transcript.updated"
)

// OcrCreatedEvent fires after an OCR extraction batch has been reconciled
// onto its result rows.
type OcrCreatedEvent struct {
	OcrResultIDs []string `json:"ocrResultIds"`
	StudentID    string   `json:"studentId"`
	UserID       *string  `json:"userId,omitempty"`
}

// TranscriptUpdatedEvent fires when a student's transcript record changes.
type TranscriptUpdatedEvent struct {
	StudentID    string  `json:"studentId"`
	TranscriptID string  `json:"transcriptId"`
	UserID       *string `json:"userId,omitempty"`
}

// OcrCreatedSchema validates OcrCreatedEvent payloads before dispatch.
const OcrCreatedSchema = `{
	"type": "object",
	"required": ["ocrResultIds", "studentId"],
	"properties": {
		"ocrResultIds": {
			"type": "array",
			"items": {"type": "string", "minLength": 1}
		},
		"studentId": {"type": "string", "minLength": 1},
		"userId": {"type": "string"}
	},
	"additionalProperties": false
}`

// TranscriptUpdatedSchema validates TranscriptUpdatedEvent payloads.
const TranscriptUpdatedSchema = `{
	"type": "object",
	"required": ["studentId", "transcriptId"],
	"properties": {
		"studentId": {"type": "string", "minLength": 1},
		"transcriptId": {"type": "string", "minLength": 1},
		"userId": {"type": "string"}
	},
	"additionalProperties": false
}`
