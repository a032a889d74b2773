package models

import (
	"time"

	"github.com/google/uuid"
)

// DetectionEvent is one confirmed match, appended whenever the matcher
// confirms an identity in an uploaded frame. Logging is independent of
// whether a notification fired.
type DetectionEvent struct {
	ID          uuid.UUID `json:"id" db:"id"`
	IdentityID  uuid.UUID `json:"identity_id" db:"identity_id"`
	Name        string    `json:"name" db:"name"`
	Category    Category  `json:"category" db:"category"`
	SourceID    string    `json:"source_id" db:"source_id"`
	Distance    float64   `json:"distance" db:"distance"`
	EvidenceKey string    `json:"evidence_key" db:"evidence_key"`
	DetectedAt  time.Time `json:"detected_at" db:"detected_at"`
}

// Match is the per-face outcome returned to the uploader.
type Match struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
}
