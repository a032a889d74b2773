package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facewatch/internal/frames"
	"github.com/your-org/facewatch/internal/pipeline"
	"github.com/your-org/facewatch/pkg/dto"
)

// maxFrameBytes caps a single uploaded frame.
const maxFrameBytes = 10 << 20

type FrameHandler struct {
	coordinator *pipeline.Coordinator
	frames      *frames.Store
}

func NewFrameHandler(coordinator *pipeline.Coordinator, store *frames.Store) *FrameHandler {
	return &FrameHandler{coordinator: coordinator, frames: store}
}

// Upload accepts one still image for a source and returns the identities
// matched in it. The multipart field is "frame"; a raw body works too.
func (h *FrameHandler) Upload(c *gin.Context) {
	sourceID := c.Param("source_id")

	frameData, err := readFrame(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Status: "error", Message: err.Error()})
		return
	}

	matches, err := h.coordinator.Process(c.Request.Context(), sourceID, frameData)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrDecode) {
			status = http.StatusBadRequest
		}
		c.JSON(status, dto.ErrorResponse{Status: "error", Message: err.Error()})
		return
	}

	detections := make([]dto.Detection, 0, len(matches))
	for _, m := range matches {
		detections = append(detections, dto.Detection{Name: m.Name, Category: string(m.Category)})
	}

	c.JSON(http.StatusOK, dto.UploadFrameResponse{
		Status:     "frame processed",
		Detections: detections,
	})
}

func readFrame(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFrameBytes)

	if file, _, err := c.Request.FormFile("frame"); err == nil {
		defer file.Close()
		return io.ReadAll(file)
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("frame image required")
	}
	return data, nil
}

// Feed streams the latest frame for a source as an MJPEG multipart stream.
// It stalls silently while the source has not uploaded yet and runs until
// the client disconnects.
func (h *FrameHandler) Feed(c *gin.Context) {
	sourceID := c.Param("source_id")

	c.Writer.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			frame, ok := h.frames.Get(sourceID)
			if !ok {
				continue
			}
			if _, err := c.Writer.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")); err != nil {
				return
			}
			if _, err := c.Writer.Write(frame); err != nil {
				return
			}
			if _, err := c.Writer.Write([]byte("\r\n\r\n")); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

// Sources lists source ids that have uploaded at least one frame.
func (h *FrameHandler) Sources(c *gin.Context) {
	ids := h.frames.Sources()
	c.JSON(http.StatusOK, dto.SourceListResponse{Sources: ids, Total: len(ids)})
}
