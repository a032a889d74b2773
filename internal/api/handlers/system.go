package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facewatch/internal/queue"
	"github.com/your-org/facewatch/internal/storage"
)

// readyzTimeout bounds the combined dependency pings so a hung backend
// cannot stall the probe.
const readyzTimeout = 3 * time.Second

type SystemHandler struct {
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer *queue.Producer
}

func NewSystemHandler(db *storage.PostgresStore, minio *storage.MinIOStore, producer *queue.Producer) *SystemHandler {
	return &SystemHandler{db: db, minio: minio, producer: producer}
}

// Healthz reports process liveness only; it never touches a dependency.
func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "facewatch"})
}

// Readyz pings the registry database, the evidence store and the detection
// stream. Any failure flips the response to 503 so the instance is pulled
// from rotation before uploads start failing.
func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyzTimeout)
	defer cancel()

	probes := []struct {
		name string
		ping func() error
	}{
		{"postgres", func() error { return h.db.Ping(ctx) }},
		{"minio", func() error { return h.minio.Ping(ctx) }},
		{"nats", func() error { return h.producer.Ping() }},
	}

	checks := gin.H{}
	ready := true
	for _, p := range probes {
		if err := p.ping(); err != nil {
			checks[p.name] = err.Error()
			ready = false
			continue
		}
		checks[p.name] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}

	c.JSON(status, gin.H{"status": state, "checks": checks})
}
