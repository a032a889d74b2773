package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "frames_processed_total",
		Help:      "Total number of uploaded frames processed",
	}, []string{"source_id"})

	FramesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "frames_rejected_total",
		Help:      "Total number of uploaded frames rejected (decode failures)",
	}, []string{"source_id"})

	FacesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "faces_detected_total",
		Help:      "Total number of faces extracted from frames",
	}, []string{"source_id"})

	FacesMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "faces_matched_total",
		Help:      "Total number of faces matched to an enrolled identity",
	}, []string{"source_id", "category"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "notifications_sent_total",
		Help:      "Total number of alert notifications delivered",
	}, []string{"category"})

	NotificationsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facewatch",
		Name:      "notifications_suppressed_total",
		Help:      "Total number of alerts suppressed by the cooldown window",
	}, []string{"category"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facewatch",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	ExtractionQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facewatch",
		Name:      "extraction_queue_depth",
		Help:      "Number of frames waiting for an extraction worker",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facewatch",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facewatch",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
