package dto

import "github.com/google/uuid"

type DetectionResponse struct {
	ID          uuid.UUID `json:"id"`
	IdentityID  uuid.UUID `json:"identity_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	SourceID    string    `json:"source_id"`
	Distance    float64   `json:"distance"`
	EvidenceURL string    `json:"evidence_url,omitempty"`
	DetectedAt  string    `json:"detected_at"`
}

type DetectionListResponse struct {
	Detections []DetectionResponse `json:"detections"`
	Total      int                 `json:"total"`
}

// WSEvent is a WebSocket message for real-time detection delivery.
type WSEvent struct {
	Type     string            `json:"type"` // identity_detected
	SourceID string            `json:"source_id"`
	Data     DetectionResponse `json:"data,omitempty"`
}
