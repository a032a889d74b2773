package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facewatch/internal/api/handlers"
	"github.com/your-org/facewatch/internal/api/ws"
	"github.com/your-org/facewatch/internal/auth"
	"github.com/your-org/facewatch/internal/frames"
	"github.com/your-org/facewatch/internal/pipeline"
	"github.com/your-org/facewatch/internal/queue"
	"github.com/your-org/facewatch/internal/registry"
	"github.com/your-org/facewatch/internal/storage"
)

type RouterConfig struct {
	APIKey      string
	DB          *storage.PostgresStore
	MinIO       *storage.MinIOStore
	Producer    *queue.Producer
	Hub         *ws.Hub
	Registry    *registry.Registry
	Coordinator *pipeline.Coordinator
	Frames      *frames.Store
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Frame ingest and live preview. Client devices push frames here, so
	// these stay outside the management API group.
	frameH := handlers.NewFrameHandler(cfg.Coordinator, cfg.Frames)
	r.POST("/upload_frame/:source_id", frameH.Upload)
	r.GET("/video_feed/:source_id", frameH.Feed)

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Identities (enrollment)
	identityH := handlers.NewIdentityHandler(cfg.Registry, cfg.DB, cfg.MinIO)
	v1.POST("/identities", identityH.Enroll)
	v1.GET("/identities", identityH.List)
	v1.GET("/identities/:id", identityH.Get)
	v1.DELETE("/identities/:id", identityH.Delete)

	// Detections
	detectionH := handlers.NewDetectionHandler(cfg.DB, cfg.MinIO)
	v1.GET("/detections", detectionH.List)
	v1.GET("/detections/:id/evidence", detectionH.Evidence)

	// Sources
	v1.GET("/sources", frameH.Sources)

	return r
}
