// Package pipeline turns one uploaded frame into zero or more identity
// matches: decode, cache the frame, extract faces, match, log, and alert.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // frames may arrive PNG-encoded
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facewatch/internal/alert"
	"github.com/your-org/facewatch/internal/match"
	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/observability"
)

// ErrDecode marks malformed image bytes. The frame is not stored and no
// detection is recorded.
var ErrDecode = errors.New("decode frame")

// CandidateSource yields a fresh snapshot of enrolled (identity, embedding)
// pairs. Re-fetched per upload; no caching across requests.
type CandidateSource interface {
	Candidates(ctx context.Context) ([]models.Candidate, error)
}

// DetectionLog appends confirmed detections.
type DetectionLog interface {
	CreateDetection(ctx context.Context, ev *models.DetectionEvent) error
}

// EvidenceStore keeps the frame image a detection was confirmed in.
type EvidenceStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// FrameStore caches the latest frame per source for the live preview.
type FrameStore interface {
	Put(sourceID string, frame []byte)
}

// EventPublisher fans confirmed detections out to live consumers.
type EventPublisher interface {
	PublishDetection(ctx context.Context, sourceID string, ev *models.DetectionEvent) error
}

// Gate decides whether a detection may notify.
type Gate interface {
	TryAcquire(key string, now time.Time) bool
	Release(key string, acquired time.Time)
}

type Config struct {
	MatchTolerance float64
	// Recipients maps category -> destination. Categories without an entry
	// never notify.
	Recipients map[string]string
}

type Coordinator struct {
	pool       *Pool
	candidates CandidateSource
	log        DetectionLog
	evidence   EvidenceStore
	frames     FrameStore
	publisher  EventPublisher
	gate       Gate
	notifier   alert.Notifier
	cfg        Config
	now        func() time.Time
}

func NewCoordinator(
	pool *Pool,
	candidates CandidateSource,
	log DetectionLog,
	evidence EvidenceStore,
	frames FrameStore,
	publisher EventPublisher,
	gate Gate,
	notifier alert.Notifier,
	cfg Config,
) *Coordinator {
	if cfg.MatchTolerance == 0 {
		cfg.MatchTolerance = match.DefaultTolerance
	}
	return &Coordinator{
		pool:       pool,
		candidates: candidates,
		log:        log,
		evidence:   evidence,
		frames:     frames,
		publisher:  publisher,
		gate:       gate,
		notifier:   notifier,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Process handles one uploaded frame for a source. It returns the matches
// found, regardless of whether any notification was sent. A decode failure
// returns ErrDecode and leaves the frame store untouched; failures past
// decode are isolated per face and never abort the sibling faces.
func (c *Coordinator) Process(ctx context.Context, sourceID string, frameData []byte) ([]models.Match, error) {
	img, _, err := image.Decode(bytes.NewReader(frameData))
	if err != nil {
		observability.FramesRejected.WithLabelValues(sourceID).Inc()
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	// The live preview reflects the most recent upload even when matching
	// fails later.
	c.frames.Put(sourceID, encodeJPEG(img))
	observability.FramesProcessed.WithLabelValues(sourceID).Inc()

	faces, err := c.pool.Extract(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("extract faces: %w", err)
	}
	if len(faces) == 0 {
		return []models.Match{}, nil
	}
	observability.FacesDetected.WithLabelValues(sourceID).Add(float64(len(faces)))

	cands, err := c.candidates.Candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	var evidenceKey string // lazily stored once per frame
	matches := make([]models.Match, 0, len(faces))

	for _, face := range faces {
		res, ok := match.Best(face.Embedding, cands, c.cfg.MatchTolerance)
		if !ok {
			continue
		}

		matches = append(matches, models.Match{
			Name:     res.Candidate.Name,
			Category: res.Candidate.Category,
		})
		observability.FacesMatched.WithLabelValues(sourceID, string(res.Candidate.Category)).Inc()

		if evidenceKey == "" {
			evidenceKey = c.storeEvidence(ctx, sourceID, frameData, img)
		}

		ev := &models.DetectionEvent{
			IdentityID:  res.Candidate.IdentityID,
			Name:        res.Candidate.Name,
			Category:    res.Candidate.Category,
			SourceID:    sourceID,
			Distance:    res.Distance,
			EvidenceKey: evidenceKey,
		}
		// Log-write failure must not suppress the alert check, and an
		// alert failure never undoes the log entry.
		if err := c.log.CreateDetection(ctx, ev); err != nil {
			slog.Error("log detection", "error", err, "identity", ev.IdentityID, "source", sourceID)
		}

		c.maybeNotify(ctx, ev)

		if c.publisher != nil {
			if err := c.publisher.PublishDetection(ctx, sourceID, ev); err != nil {
				slog.Warn("publish detection", "error", err, "source", sourceID)
			}
		}
	}

	return matches, nil
}

// maybeNotify consults the alert gate and sends at most one notification per
// (category, source) per cooldown window. A failed send releases the gate so
// the next qualifying detection may retry; missed alerts are never queued.
func (c *Coordinator) maybeNotify(ctx context.Context, ev *models.DetectionEvent) {
	destination, ok := c.cfg.Recipients[string(ev.Category)]
	if !ok {
		return
	}

	key := alert.Key(string(ev.Category), ev.SourceID)
	now := c.now()
	if !c.gate.TryAcquire(key, now) {
		observability.NotificationsSuppressed.WithLabelValues(string(ev.Category)).Inc()
		slog.Debug("alert suppressed by cooldown", "key", key, "name", ev.Name)
		return
	}

	text := fmt.Sprintf("ALERT: %s person detected - %s at %s on %s",
		ev.Category, ev.Name, ev.SourceID, now.Format("2006-01-02 15:04:05"))

	if err := c.notifier.Send(ctx, destination, text); err != nil {
		c.gate.Release(key, now)
		slog.Error("send alert", "error", err, "key", key, "name", ev.Name)
		return
	}

	observability.NotificationsSent.WithLabelValues(string(ev.Category)).Inc()
	slog.Info("alert sent", "category", ev.Category, "name", ev.Name, "source", ev.SourceID)
}

// storeEvidence uploads the frame the detection was confirmed in. On failure
// the detection is still logged, just without an evidence key.
func (c *Coordinator) storeEvidence(ctx context.Context, sourceID string, raw []byte, img image.Image) string {
	key := fmt.Sprintf("evidence/%s/%s.jpg", sourceID, uuid.New())

	data := raw
	if !isJPEG(raw) {
		data = encodeJPEG(img)
	}
	if err := c.evidence.PutObject(ctx, key, data, "image/jpeg"); err != nil {
		slog.Warn("store evidence frame", "error", err, "source", sourceID)
		return ""
	}
	return key
}

func isJPEG(data []byte) bool {
	return len(data) > 2 && data[0] == 0xff && data[1] == 0xd8
}

func encodeJPEG(img image.Image) []byte {
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	return buf.Bytes()
}
