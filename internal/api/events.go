package api

import (
	"time"

	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/pkg/dto"
)

// DetectionWSEvent converts a stored detection into the WebSocket payload.
func DetectionWSEvent(ev *models.DetectionEvent) *dto.WSEvent {
	r := dto.DetectionResponse{
		ID:         ev.ID,
		IdentityID: ev.IdentityID,
		Name:       ev.Name,
		Category:   string(ev.Category),
		SourceID:   ev.SourceID,
		Distance:   ev.Distance,
		DetectedAt: ev.DetectedAt.Format(time.RFC3339),
	}
	if ev.EvidenceKey != "" {
		r.EvidenceURL = "/v1/detections/" + ev.ID.String() + "/evidence"
	}

	return &dto.WSEvent{
		Type:     "identity_detected",
		SourceID: ev.SourceID,
		Data:     r,
	}
}
