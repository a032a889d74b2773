package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facewatch/internal/storage"
	"github.com/your-org/facewatch/pkg/dto"
)

type DetectionHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
}

func NewDetectionHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *DetectionHandler {
	return &DetectionHandler{db: db, minio: minio}
}

func (h *DetectionHandler) List(c *gin.Context) {
	var from, to *time.Time
	if fromStr := c.Query("from"); fromStr != "" {
		if t, err := time.Parse(time.RFC3339, fromStr); err == nil {
			from = &t
		}
	}
	if toStr := c.Query("to"); toStr != "" {
		if t, err := time.Parse(time.RFC3339, toStr); err == nil {
			to = &t
		}
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, total, err := h.db.QueryDetections(c.Request.Context(),
		c.Query("source_id"), c.Query("category"), from, to, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.DetectionResponse, 0, len(events))
	for _, ev := range events {
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
		resp = append(resp, r)
	}

	c.JSON(http.StatusOK, dto.DetectionListResponse{Detections: resp, Total: total})
}

// Evidence serves the frame image the detection was confirmed in.
func (h *DetectionHandler) Evidence(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid detection id"})
		return
	}

	ev, err := h.db.GetDetection(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ev == nil || ev.EvidenceKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "evidence not found"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), ev.EvidenceKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "evidence not found"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}
