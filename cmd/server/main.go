package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facewatch/internal/alert"
	"github.com/your-org/facewatch/internal/api"
	"github.com/your-org/facewatch/internal/api/ws"
	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/frames"
	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/observability"
	"github.com/your-org/facewatch/internal/pipeline"
	"github.com/your-org/facewatch/internal/queue"
	"github.com/your-org/facewatch/internal/registry"
	"github.com/your-org/facewatch/internal/storage"
	"github.com/your-org/facewatch/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting facewatch server",
		"port", cfg.Server.Port,
		"workers", cfg.Vision.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
	)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Initialize ONNX Runtime and the embedding provider
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	extractor, err := vision.NewONNXExtractor(cfg.Vision)
	if err != nil {
		slog.Error("init extractor", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	pool := pipeline.NewPool(extractor, cfg.Vision.WorkerCount)
	defer pool.Close()

	// Assemble the matching/alert pipeline
	reg := registry.New(db, minioStore, extractor)
	frameStore := frames.NewStore()
	gate := alert.NewGate(cfg.Alerts.Cooldown)
	notifier := alert.NewNotifier(cfg.Alerts)

	coordinator := pipeline.NewCoordinator(
		pool, reg, db, minioStore, frameStore, producer, gate, notifier,
		pipeline.Config{
			MatchTolerance: cfg.Vision.MatchTolerance,
			Recipients:     cfg.Alerts.Recipients,
		},
	)

	// WebSocket hub fed from the DETECTIONS stream
	hub := ws.NewHub()
	go hub.Run()

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create detection consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeDetections(ctx, "server-detections", func(ctx context.Context, msg jetstream.Msg) error {
		var ev models.DetectionEvent
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			return err
		}

		hub.BroadcastDetection(api.DetectionWSEvent(&ev))
		return nil
	})
	if err != nil {
		slog.Warn("start detection consumer", "error", err)
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:      cfg.Server.APIKey,
		DB:          db,
		MinIO:       minioStore,
		Producer:    producer,
		Hub:         hub,
		Registry:    reg,
		Coordinator: coordinator,
		Frames:      frameStore,
	})

	// Start HTTP server. The video feed is long-lived, so no write timeout.
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
